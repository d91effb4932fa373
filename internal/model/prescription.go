package model

import "time"

// PrescriptionFilesPath は処方箋ファイル取得URLのプレフィックス。
// Prescription.URLは常に PrescriptionFilesPath + Upload.ID の形式で作成される。
const PrescriptionFilesPath = "/api/prescriptions/files/"

// Upload はアップロードされたファイル本体。データはbase64文字列で保存する。
type Upload struct {
	ID         string
	UserID     string
	FileName   string
	FileType   string
	FileData   string
	UploadedAt time.Time
}

// Prescription は処方箋のメタデータ。URLがUploadを指す。
type Prescription struct {
	ID     string
	UserID string
	Name   string
	URL    string
	Date   time.Time
}

// PrescriptionFilter は処方箋一覧の期間条件。ゼロ値は無制限を表す。
type PrescriptionFilter struct {
	Since time.Time
	Until time.Time
}
