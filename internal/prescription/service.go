// Package prescription は処方箋ファイルのアップロードと取得のドメインロジックを提供する。
package prescription

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
)

// ListLimit は一覧で返す最大件数。
const ListLimit = 500

// AllowedFileTypes はアップロードを受け付けるMIMEタイプ。
var AllowedFileTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// fileURLPattern は処方箋URLからアップロードIDを取り出す。
var fileURLPattern = regexp.MustCompile(`^` + regexp.QuoteMeta(model.PrescriptionFilesPath) + `([0-9a-f-]{36})$`)

// UploadInput はアップロードされたファイル。
type UploadInput struct {
	FileName string
	FileType string
	Data     []byte
}

// UploadResult はアップロードで作成された2つのレコード。
type UploadResult struct {
	Upload       *model.Upload
	Prescription *model.Prescription
}

// File は取得したファイル本体。
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service は処方箋のサービス層。
type Service struct {
	repo      repository.PrescriptionRepository
	sanitizer security.TextSanitizerService
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.PrescriptionRepository,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// Upload はファイルをbase64で保存し、それを指す処方箋を同一トランザクションで作成する。
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (*UploadResult, error) {
	if len(in.Data) == 0 {
		return nil, model.NewValidationError("No file provided")
	}
	fileType := normalizeMediaType(in.FileType)
	if !AllowedFileTypes[fileType] {
		return nil, model.NewValidationError("Unsupported file type")
	}

	name := s.sanitizer.Sanitize(path.Base(strings.ReplaceAll(in.FileName, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "prescription"
	}
	if err := model.CheckTextLengths(model.Short("fileName", name)); err != nil {
		return nil, err
	}

	now := time.Now()
	upload := &model.Upload{
		ID:         uuid.New().String(),
		UserID:     userID,
		FileName:   name,
		FileType:   fileType,
		FileData:   base64.StdEncoding.EncodeToString(in.Data),
		UploadedAt: now,
	}
	prescription := &model.Prescription{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   name,
		URL:    model.PrescriptionFilesPath + upload.ID,
		Date:   now,
	}

	if err := s.repo.CreateWithUpload(ctx, upload, prescription); err != nil {
		return nil, fmt.Errorf("failed to store prescription: %w", err)
	}

	s.metrics.RecordUpload(fileType, len(in.Data))
	slog.Info("prescription uploaded",
		slog.String("user_id", userID),
		slog.String("upload_id", upload.ID),
		slog.String("file_type", fileType),
		slog.Int("size", len(in.Data)),
	)

	return &UploadResult{Upload: upload, Prescription: prescription}, nil
}

// List は処方箋を新しい順に返す。since/untilはYYYY-MM-DDで、untilはその日の終わりまでを含む。
func (s *Service) List(ctx context.Context, userID, since, until string) ([]*model.Prescription, error) {
	var filter model.PrescriptionFilter
	if since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return nil, model.NewValidationError("since must be in YYYY-MM-DD format")
		}
		filter.Since = t
	}
	if until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			return nil, model.NewValidationError("until must be in YYYY-MM-DD format")
		}
		filter.Until = t.Add(24*time.Hour - time.Nanosecond)
	}

	list, err := s.repo.ListByUserID(ctx, userID, filter, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return list, nil
}

// GetFile はアップロードのバイト列を返す。所有者以外はForbiddenになる。
func (s *Service) GetFile(ctx context.Context, userID, uploadID string) (*File, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, model.NewNotFoundError("File")
	}

	upload, err := s.repo.FindUploadByID(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find upload: %w", err)
	}
	if upload == nil {
		return nil, model.NewNotFoundError("File")
	}
	if upload.UserID != userID {
		return nil, model.NewForbiddenError()
	}

	data, err := base64.StdEncoding.DecodeString(upload.FileData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode upload %s: %w", uploadID, err)
	}

	return &File{
		Name:        upload.FileName,
		ContentType: upload.FileType,
		Data:        data,
	}, nil
}

// Delete は処方箋を削除する。URLがアップロードを指していればそのアップロードも削除する。
func (s *Service) Delete(ctx context.Context, userID, prescriptionID string) error {
	if _, err := uuid.Parse(prescriptionID); err != nil {
		return model.NewNotFoundError("Prescription")
	}

	p, err := s.repo.FindByID(ctx, prescriptionID)
	if err != nil {
		return fmt.Errorf("failed to find prescription: %w", err)
	}
	if p == nil {
		return model.NewNotFoundError("Prescription")
	}
	if p.UserID != userID {
		return model.NewForbiddenError()
	}

	uploadID := UploadIDFromURL(p.URL)
	if err := s.repo.DeleteWithUpload(ctx, prescriptionID, uploadID); err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}

	slog.Info("prescription deleted",
		slog.String("user_id", userID),
		slog.String("prescription_id", prescriptionID),
		slog.Bool("upload_deleted", uploadID != ""),
	)
	return nil
}

// UploadIDFromURL は処方箋URLからアップロードIDを取り出す。形式が一致しない場合は空文字列。
func UploadIDFromURL(url string) string {
	m := fileURLPattern.FindStringSubmatch(strings.ToLower(url))
	if m == nil {
		return ""
	}
	if _, err := uuid.Parse(m[1]); err != nil {
		return ""
	}
	return m[1]
}

// normalizeMediaType はContent-Typeのパラメータを除き小文字化する。
func normalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
