package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/elderease/internal/model"
)

// decodeErrorBody はエラーレスポンスを構造体と生のマップの両方にデコードする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) (ErrorResponseBody, map[string]any) {
	t.Helper()
	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v\nraw: %s", err, w.Body.String())
	}
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	return body, raw
}

func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		err          *model.APIError
		wantCode     string
		wantCategory string
		wantDetails  bool
	}{
		{
			name:         "緊急連絡先未登録",
			status:       http.StatusBadRequest,
			err:          model.NewValidationError("No emergency contact found. Complete onboarding first."),
			wantCode:     model.ErrCodeValidation,
			wantCategory: "validation",
		},
		{
			name:         "未ログイン",
			status:       http.StatusUnauthorized,
			err:          model.NewUnauthorizedError(),
			wantCode:     model.ErrCodeUnauthorized,
			wantCategory: "auth",
		},
		{
			name:         "他人の処方箋",
			status:       http.StatusForbidden,
			err:          model.NewForbiddenError(),
			wantCode:     model.ErrCodeForbidden,
			wantCategory: "auth",
		},
		{
			name:         "リマインダーなし",
			status:       http.StatusNotFound,
			err:          model.NewNotFoundError("Reminder"),
			wantCode:     model.ErrCodeNotFound,
			wantCategory: "resource",
		},
		{
			name:         "メールアドレス重複",
			status:       http.StatusConflict,
			err:          model.NewConflictError("User already exists"),
			wantCode:     model.ErrCodeConflict,
			wantCategory: "resource",
		},
		{
			name:         "SMSゲートウェイ失敗",
			status:       http.StatusInternalServerError,
			err:          model.NewUpstreamError("Failed to send SMS via MSG91", `{"type":"error","message":"Invalid authkey"}`),
			wantCode:     model.ErrCodeUpstream,
			wantCategory: "sos",
			wantDetails:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			body, raw := decodeErrorBody(t, w)
			if body.Success {
				t.Error("success should be false")
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Category != tt.wantCategory {
				t.Errorf("category = %q, want %q", body.Category, tt.wantCategory)
			}
			if body.Message != tt.err.Message || body.Error != tt.err.Message {
				t.Errorf("message = %q, error = %q, want both %q", body.Message, body.Error, tt.err.Message)
			}
			if body.Action == "" {
				t.Error("action should not be empty")
			}
			if _, ok := raw["details"]; ok != tt.wantDetails {
				t.Errorf("details present = %v, want %v", ok, tt.wantDetails)
			}
			if tt.wantDetails && body.Details != tt.err.Details {
				t.Errorf("details = %q, want %q", body.Details, tt.err.Details)
			}
		})
	}
}

func TestWriteInternalServerError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body, raw := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
	for _, field := range []string{"success", "code", "message", "error", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field: %s", field)
		}
	}
	if _, ok := raw["details"]; ok {
		t.Error("internal errors must not expose details")
	}
}
