// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/elderease/internal/model"
)

// ErrDuplicateEmail は一意制約(users_email_key)違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーをオンボーディング情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// CompleteOnboarding はプロフィールのUPSERTと完了フラグの更新を同一トランザクションで行う。
	// ユーザーが存在しない場合はfalseを返す。
	CompleteOnboarding(ctx context.Context, userID string, profile *model.OnboardingProfile) (bool, error)

	// SaveOnboardingProfile はプロフィールを上書き保存する。完了フラグは変更しない。
	SaveOnboardingProfile(ctx context.Context, userID string, profile *model.OnboardingProfile) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateData はセッションのキャッシュデータを置き換える。
	UpdateData(ctx context.Context, id string, data model.SessionData) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// MoodRepository は気分記録の永続化インターフェース。
type MoodRepository interface {
	// Create は気分記録を作成する。
	Create(ctx context.Context, mood *model.Mood) error
	// ListByUserID はユーザーの気分記録をtimestamp降順で最大limit件返す。
	// filterのSince/Untilはdate_isoに対する包含的な辞書順比較で適用する。
	ListByUserID(ctx context.Context, userID string, filter model.MoodFilter, limit int) ([]*model.Mood, error)
	// DeleteByIDAndUserID は所有者が一致する気分記録を削除する。削除した場合はtrueを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error)
}

// ReminderRepository はリマインダーの永続化インターフェース。
type ReminderRepository interface {
	// ListByUserID はユーザーのリマインダーを(date, time)の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Reminder, error)
	// FindByIDAndUserID は所有者が一致するリマインダーを取得する。見つからない場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Reminder, error)
	// Create はリマインダーを作成する。
	Create(ctx context.Context, reminder *model.Reminder) error
	// Update はリマインダーの可変フィールド（title, time, date, done）を更新する。
	Update(ctx context.Context, reminder *model.Reminder) error
	// DeleteByIDAndUserID は所有者が一致するリマインダーを削除する。削除した場合はtrueを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error)
}

// PrescriptionRepository は処方箋とアップロードファイルの永続化インターフェース。
type PrescriptionRepository interface {
	// CreateWithUpload はUploadとPrescriptionを同一トランザクションで作成する。
	CreateWithUpload(ctx context.Context, upload *model.Upload, prescription *model.Prescription) error
	// ListByUserID はユーザーの処方箋をdate降順で最大limit件返す。file_dataは読み込まない。
	ListByUserID(ctx context.Context, userID string, filter model.PrescriptionFilter, limit int) ([]*model.Prescription, error)
	// FindByID は指定IDの処方箋を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Prescription, error)
	// FindUploadByID は指定IDのアップロードを取得する。見つからない場合はnilを返す。
	FindUploadByID(ctx context.Context, id string) (*model.Upload, error)
	// DeleteWithUpload は処方箋を削除する。uploadIDが空でなければ同一トランザクションでUploadも削除する。
	DeleteWithUpload(ctx context.Context, prescriptionID, uploadID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
