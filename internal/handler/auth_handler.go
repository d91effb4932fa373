// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/elderease/internal/auth"
	"github.com/hitoshi/elderease/internal/middleware"
	"github.com/hitoshi/elderease/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Session, error)
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetProfile(session *model.Session) *model.PublicUser
	SessionStatus(ctx context.Context, sessionID string) (model.SessionData, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookie  CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログインのレスポンス。
type authResponse struct {
	Message string            `json:"message"`
	User    *model.PublicUser `json:"user"`
}

// sessionCheckResponse はセッション確認のレスポンス。
type sessionCheckResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *model.PublicUser `json:"user"`
}

// Register はアカウントを作成してログイン状態にする。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, h.cookie, session.ID)
	writeJSON(w, http.StatusCreated, authResponse{Message: "User created", User: session.Data.User})
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, h.cookie, session.ID)
	writeJSON(w, http.StatusOK, authResponse{Message: "Logged in", User: session.Data.User})
}

// Logout はセッションを破棄する。セッションがなくても成功する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), sessionIDFromRequest(r, h.cookie)); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Logout failed"})
		return
	}

	clearSessionCookie(w, h.cookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Profile はセッションにキャッシュされたユーザー情報を返す。
// GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]*model.PublicUser{"user": h.service.GetProfile(session)})
}

// SessionCheck はセッションの認証状態を返す。認証不要。
// GET /api/session-check
func (h *AuthHandler) SessionCheck(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.SessionStatus(r.Context(), sessionIDFromRequest(r, h.cookie))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionCheckResponse{
		Authenticated: data.Authenticated,
		User:          data.User,
	})
}
