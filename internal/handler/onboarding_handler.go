package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/elderease/internal/middleware"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/onboarding"
)

// OnboardingServiceInterface はオンボーディングハンドラーが必要とするサービスインターフェース。
type OnboardingServiceInterface interface {
	Complete(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.User, error)
	GetStatus(ctx context.Context, userID string) (*onboarding.Status, error)
	Update(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.OnboardingProfile, error)
}

// OnboardingHandler はオンボーディングのHTTPハンドラー。
type OnboardingHandler struct {
	service OnboardingServiceInterface
}

// NewOnboardingHandler はOnboardingHandlerを生成する。
func NewOnboardingHandler(service OnboardingServiceInterface) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

// onboardingUserResponse はオンボーディング完了時のユーザー情報。
type onboardingUserResponse struct {
	ID                  string                   `json:"id"`
	Email               string                   `json:"email"`
	Name                string                   `json:"name"`
	OnboardingCompleted bool                     `json:"onboardingCompleted"`
	OnboardingData      *model.OnboardingProfile `json:"onboardingData"`
}

type onboardingCompleteResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    onboardingUserResponse `json:"user"`
}

type onboardingStatusResponse struct {
	Success             bool                     `json:"success"`
	OnboardingCompleted bool                     `json:"onboardingCompleted"`
	OnboardingData      *model.OnboardingProfile `json:"onboardingData"`
}

type onboardingUpdateResponse struct {
	Success        bool                     `json:"success"`
	Message        string                   `json:"message"`
	OnboardingData *model.OnboardingProfile `json:"onboardingData"`
}

// Complete はオンボーディングを完了する。
// POST /api/onboarding/complete
func (h *OnboardingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in onboarding.Input
	if !decodeJSONBody(w, r, &in) {
		return
	}

	user, err := h.service.Complete(r.Context(), userID, currentSessionID(r), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, onboardingCompleteResponse{
		Success: true,
		Message: "Onboarding completed successfully",
		User: onboardingUserResponse{
			ID:                  user.ID,
			Email:               user.Email,
			Name:                user.DisplayName(),
			OnboardingCompleted: user.OnboardingCompleted,
			OnboardingData:      user.Onboarding,
		},
	})
}

// Status はオンボーディングの状態を返す。
// GET /api/onboarding/status
func (h *OnboardingHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, onboardingStatusResponse{
		Success:             true,
		OnboardingCompleted: status.OnboardingCompleted,
		OnboardingData:      status.Data,
	})
}

// Update はオンボーディング内容を部分更新する。
// PUT /api/onboarding/update
func (h *OnboardingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in onboarding.Input
	if !decodeJSONBody(w, r, &in) {
		return
	}

	profile, err := h.service.Update(r.Context(), userID, currentSessionID(r), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, onboardingUpdateResponse{
		Success:        true,
		Message:        "Onboarding data updated successfully",
		OnboardingData: profile,
	})
}

// currentSessionID はコンテキストのセッションIDを返す。
func currentSessionID(r *http.Request) string {
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		return session.ID
	}
	return ""
}
