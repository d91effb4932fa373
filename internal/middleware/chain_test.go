package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/model"
)

type statusCounter struct {
	metrics.Nop
	statuses []int
}

func (s *statusCounter) RecordHTTPStatus(code int) { s.statuses = append(s.statuses, code) }

// TestMetricsMiddleware_RecordsStatus はレスポンスのステータスコードが記録されることを検証する。
func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	counter := &statusCounter{}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"暗黙の200", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) }, http.StatusOK},
		{"201", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }, http.StatusCreated},
		{"404", func(w http.ResponseWriter, r *http.Request) {
			WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("Reminder"))
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter.statuses = nil
			NewMetricsMiddleware(counter)(tt.handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if len(counter.statuses) != 1 || counter.statuses[0] != tt.want {
				t.Errorf("statuses = %v, want [%d]", counter.statuses, tt.want)
			}
		})
	}
}

// TestRecoveryMiddleware_PanicReturns500 はpanicが統一フォーマットの500になることを検証する。
func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods", nil))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(model.ErrCodeInternal)) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// TestSecurityHeadersMiddleware_SetsHeaders はパスと環境に応じたセキュリティヘッダーを検証する。
func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	tests := []struct {
		name      string
		hsts      bool
		path      string
		wantCache string
		wantHSTS  string
	}{
		{name: "API配下はキャッシュ禁止", path: "/api/moods", wantCache: "no-store"},
		{name: "ヘルスチェックはキャッシュ指定なし", path: "/health"},
		{name: "本番環境ではHSTSを付与", hsts: true, path: "/health", wantHSTS: "max-age=31536000; includeSubDomains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSecurityHeadersMiddleware(tt.hsts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			h := w.Result().Header
			if got := h.Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
			}
			if got := h.Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("X-Frame-Options = %q, want DENY", got)
			}
			if got := h.Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCache)
			}
			if got := h.Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("Strict-Transport-Security = %q, want %q", got, tt.wantHSTS)
			}
		})
	}
}

// TestRecoveryMiddleware_LogsUserID はpanicログに後段で判明したユーザーIDが含まれることを検証する。
func TestRecoveryMiddleware_LogsUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return authenticatedSession(id, "user-panic"), nil
		},
	}
	inner := NewSessionMiddleware(repo, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	handler := NewRecoveryMiddleware(logger)(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/sos/send", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"user_id":"user-panic"`)) {
		t.Errorf("log = %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"panic recovered"`)) {
		t.Errorf("log = %s", buf.String())
	}
}

// TestMiddlewareChain_FullStack はログ、リカバリ、メトリクス、セッションを連結した動作を検証する。
func TestMiddlewareChain_FullStack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	counter := &statusCounter{}

	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			s := authenticatedSession(id, "user-chain-test")
			s.ExpiresAt = time.Now().Add(time.Hour)
			return s, nil
		},
	}

	inner := NewSessionMiddleware(repo, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler := NewLoggingMiddleware(logger)(NewRecoveryMiddleware(nil)(NewMetricsMiddleware(counter)(inner)))

	req := httptest.NewRequest(http.MethodDelete, "/api/moods/1", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if len(counter.statuses) != 1 || counter.statuses[0] != http.StatusNoContent {
		t.Errorf("statuses = %v", counter.statuses)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"status":204`)) {
		t.Errorf("log = %s", buf.String())
	}
}
