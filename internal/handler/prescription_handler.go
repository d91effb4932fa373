package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/middleware"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/prescription"
)

// DefaultUploadMaxBytes はアップロードの最大サイズ（10MB）。
const DefaultUploadMaxBytes int64 = 10 << 20

// multipartOverhead はファイル以外のマルチパート部分の許容量。
const multipartOverhead int64 = 1 << 20

// uploadFormField はファイルを受け取るフォームフィールド名。
const uploadFormField = "file"

// PrescriptionServiceInterface は処方箋ハンドラーが必要とするサービスインターフェース。
type PrescriptionServiceInterface interface {
	Upload(ctx context.Context, userID string, in prescription.UploadInput) (*prescription.UploadResult, error)
	List(ctx context.Context, userID, since, until string) ([]*model.Prescription, error)
	GetFile(ctx context.Context, userID, uploadID string) (*prescription.File, error)
	Delete(ctx context.Context, userID, prescriptionID string) error
}

// PrescriptionHandler は処方箋のHTTPハンドラー。
type PrescriptionHandler struct {
	service  PrescriptionServiceInterface
	maxBytes int64
}

// NewPrescriptionHandler はPrescriptionHandlerを生成する。maxBytesが0以下の場合はDefaultUploadMaxBytes。
func NewPrescriptionHandler(service PrescriptionServiceInterface, maxBytes int64) *PrescriptionHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &PrescriptionHandler{
		service:  service,
		maxBytes: maxBytes,
	}
}

// uploadResponse はアップロード結果。
type uploadResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	URL            string    `json:"url"`
	PrescriptionID string    `json:"prescriptionId"`
}

// prescriptionResponse は処方箋一覧の1件。ファイル本体は含まない。
type prescriptionResponse struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
	URL  string    `json:"url"`
}

// Upload は処方箋ファイルを受け取り保存する。
// POST /api/prescriptions/upload (multipart/form-data, field "file")
func (h *PrescriptionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewValidationError("File is too large"))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("No file provided"))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("No file provided"))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewValidationError("File is too large"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	result, err := h.service.Upload(r.Context(), userID, prescription.UploadInput{
		FileName: header.Filename,
		FileType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok": true,
		"upload": uploadResponse{
			ID:             result.Upload.ID,
			Name:           result.Upload.FileName,
			Date:           result.Upload.UploadedAt,
			URL:            result.Prescription.URL,
			PrescriptionID: result.Prescription.ID,
		},
	})
}

// List は処方箋を新しい順に返す。
// GET /api/prescriptions?since=YYYY-MM-DD&until=YYYY-MM-DD
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	list, err := h.service.List(r.Context(), userID, q.Get("since"), q.Get("until"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]prescriptionResponse, len(list))
	for i, p := range list {
		items[i] = prescriptionResponse{ID: p.ID, Name: p.Name, Date: p.Date, URL: p.URL}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"prescriptions": items,
	})
}

// File はアップロードされたファイルのバイト列を保存時のMIMEタイプで返す。
// GET /api/prescriptions/files/{id}
func (h *PrescriptionHandler) File(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	f, err := h.service.GetFile(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Data); err != nil {
		slog.Warn("failed to write file response", slog.String("error", err.Error()))
	}
}

// Delete は処方箋と、それが指すアップロードを削除する。
// DELETE /api/prescriptions/{id}
func (h *PrescriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
