package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/auth"
	"github.com/hitoshi/elderease/internal/middleware"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/mood"
	"github.com/hitoshi/elderease/internal/onboarding"
	"github.com/hitoshi/elderease/internal/prescription"
	"github.com/hitoshi/elderease/internal/reminder"
	"github.com/hitoshi/elderease/internal/sos"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn      func(ctx context.Context, in auth.RegisterInput) (*model.Session, error)
	loginFn         func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn        func(ctx context.Context, sessionID string) error
	sessionStatusFn func(ctx context.Context, sessionID string) (model.SessionData, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetProfile(session *model.Session) *model.PublicUser {
	if session == nil {
		return nil
	}
	return session.Data.User
}

func (m *mockAuthService) SessionStatus(ctx context.Context, sessionID string) (model.SessionData, error) {
	if m.sessionStatusFn != nil {
		return m.sessionStatusFn(ctx, sessionID)
	}
	return model.SessionData{}, nil
}

type mockOnboardingService struct {
	completeFn  func(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.User, error)
	getStatusFn func(ctx context.Context, userID string) (*onboarding.Status, error)
	updateFn    func(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.OnboardingProfile, error)
}

func (m *mockOnboardingService) Complete(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.User, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, userID, sessionID, in)
	}
	return nil, nil
}

func (m *mockOnboardingService) GetStatus(ctx context.Context, userID string) (*onboarding.Status, error) {
	if m.getStatusFn != nil {
		return m.getStatusFn(ctx, userID)
	}
	return &onboarding.Status{}, nil
}

func (m *mockOnboardingService) Update(ctx context.Context, userID, sessionID string, in onboarding.Input) (*model.OnboardingProfile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, sessionID, in)
	}
	return nil, nil
}

type mockMoodService struct {
	addFn    func(ctx context.Context, userID string, in mood.AddInput) (*model.Mood, error)
	listFn   func(ctx context.Context, userID, since, until string) ([]*model.Mood, error)
	deleteFn func(ctx context.Context, userID, moodID string) error
}

func (m *mockMoodService) Add(ctx context.Context, userID string, in mood.AddInput) (*model.Mood, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockMoodService) List(ctx context.Context, userID, since, until string) ([]*model.Mood, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, since, until)
	}
	return nil, nil
}

func (m *mockMoodService) Delete(ctx context.Context, userID, moodID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, moodID)
	}
	return nil
}

type mockReminderService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Reminder, error)
	createFn func(ctx context.Context, userID string, in reminder.CreateInput) (*model.Reminder, error)
	updateFn func(ctx context.Context, userID, reminderID string, patch model.ReminderPatch) (*model.Reminder, error)
	deleteFn func(ctx context.Context, userID, reminderID string) error
}

func (m *mockReminderService) List(ctx context.Context, userID string) ([]*model.Reminder, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockReminderService) Create(ctx context.Context, userID string, in reminder.CreateInput) (*model.Reminder, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockReminderService) Update(ctx context.Context, userID, reminderID string, patch model.ReminderPatch) (*model.Reminder, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, reminderID, patch)
	}
	return nil, nil
}

func (m *mockReminderService) Delete(ctx context.Context, userID, reminderID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, reminderID)
	}
	return nil
}

type mockPrescriptionService struct {
	uploadFn  func(ctx context.Context, userID string, in prescription.UploadInput) (*prescription.UploadResult, error)
	listFn    func(ctx context.Context, userID, since, until string) ([]*model.Prescription, error)
	getFileFn func(ctx context.Context, userID, uploadID string) (*prescription.File, error)
	deleteFn  func(ctx context.Context, userID, prescriptionID string) error
}

func (m *mockPrescriptionService) Upload(ctx context.Context, userID string, in prescription.UploadInput) (*prescription.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockPrescriptionService) List(ctx context.Context, userID, since, until string) ([]*model.Prescription, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, since, until)
	}
	return nil, nil
}

func (m *mockPrescriptionService) GetFile(ctx context.Context, userID, uploadID string) (*prescription.File, error) {
	if m.getFileFn != nil {
		return m.getFileFn(ctx, userID, uploadID)
	}
	return nil, nil
}

func (m *mockPrescriptionService) Delete(ctx context.Context, userID, prescriptionID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, prescriptionID)
	}
	return nil
}

type mockSOSDispatcher struct {
	sendFn func(ctx context.Context, userID, locationLink string) (*sos.Result, error)
}

func (m *mockSOSDispatcher) Send(ctx context.Context, userID, locationLink string) (*sos.Result, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, userID, locationLink)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, session *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), session))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディを任意の型にデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}

// testSession はテスト用の認証済みセッションを生成する。
func testSession(id, userID string) *model.Session {
	return &model.Session{
		ID:     id,
		UserID: userID,
		Data: model.SessionData{
			Authenticated: true,
			User:          &model.PublicUser{ID: userID, Name: "Asha", Email: "asha@example.com"},
		},
	}
}
