package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/mood"
)

// MoodServiceInterface は気分記録ハンドラーが必要とするサービスインターフェース。
type MoodServiceInterface interface {
	Add(ctx context.Context, userID string, in mood.AddInput) (*model.Mood, error)
	List(ctx context.Context, userID, since, until string) ([]*model.Mood, error)
	Delete(ctx context.Context, userID, moodID string) error
}

// MoodHandler は気分記録のHTTPハンドラー。
type MoodHandler struct {
	service MoodServiceInterface
}

// NewMoodHandler はMoodHandlerを生成する。
func NewMoodHandler(service MoodServiceInterface) *MoodHandler {
	return &MoodHandler{service: service}
}

// moodRequest は気分記録作成リクエストのボディ。
type moodRequest struct {
	MoodLabel string     `json:"moodLabel"`
	MoodEmoji string     `json:"moodEmoji"`
	DateISO   string     `json:"dateISO"`
	Time      string     `json:"time"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Tags      []string   `json:"tags"`
	Notes     string     `json:"notes"`
}

type moodResponse struct {
	OK   bool        `json:"ok"`
	Mood *model.Mood `json:"mood"`
}

type moodListResponse struct {
	OK    bool          `json:"ok"`
	Moods []*model.Mood `json:"moods"`
}

// Add は気分記録を追加する。
// POST /api/moods
func (h *MoodHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req moodRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	in := mood.AddInput{
		MoodLabel: req.MoodLabel,
		MoodEmoji: req.MoodEmoji,
		DateISO:   req.DateISO,
		Time:      req.Time,
		Tags:      req.Tags,
		Notes:     req.Notes,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	created, err := h.service.Add(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, moodResponse{OK: true, Mood: created})
}

// List は気分記録を新しい順に返す。
// GET /api/moods?since=YYYY-MM-DD&until=YYYY-MM-DD
func (h *MoodHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	moods, err := h.service.List(r.Context(), userID, q.Get("since"), q.Get("until"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if moods == nil {
		moods = []*model.Mood{}
	}

	writeJSON(w, http.StatusOK, moodListResponse{OK: true, Moods: moods})
}

// Delete は気分記録を削除する。
// DELETE /api/moods/{id}
func (h *MoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
