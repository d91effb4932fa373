package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/reminder"
)

// ReminderServiceInterface はリマインダーハンドラーが必要とするサービスインターフェース。
type ReminderServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Reminder, error)
	Create(ctx context.Context, userID string, in reminder.CreateInput) (*model.Reminder, error)
	Update(ctx context.Context, userID, reminderID string, patch model.ReminderPatch) (*model.Reminder, error)
	Delete(ctx context.Context, userID, reminderID string) error
}

// ReminderHandler はリマインダーのHTTPハンドラー。
type ReminderHandler struct {
	service ReminderServiceInterface
}

// NewReminderHandler はReminderHandlerを生成する。
func NewReminderHandler(service ReminderServiceInterface) *ReminderHandler {
	return &ReminderHandler{service: service}
}

type reminderResponse struct {
	Success  bool            `json:"success"`
	Reminder *model.Reminder `json:"reminder"`
}

type reminderListResponse struct {
	Success   bool              `json:"success"`
	Reminders []*model.Reminder `json:"reminders"`
}

// List はリマインダーを日付・時刻順に返す。
// GET /api/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	reminders, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}

	writeJSON(w, http.StatusOK, reminderListResponse{Success: true, Reminders: reminders})
}

// Create はリマインダーを作成する。
// POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in reminder.CreateInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	created, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reminderResponse{Success: true, Reminder: created})
}

// Update はリマインダーを部分更新する。title, time, date, done以外のキーは拒否する。
// PATCH /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var raw map[string]json.RawMessage
	if !decodeJSONBody(w, r, &raw) {
		return
	}

	patch, err := reminder.ParsePatch(raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reminderResponse{Success: true, Reminder: updated})
}

// Delete はリマインダーを削除する。
// DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Reminder deleted successfully",
	})
}
