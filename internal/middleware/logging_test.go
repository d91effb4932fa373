package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/elderease/internal/model"
)

// serveLogged はロギングミドルウェア経由でリクエストを処理し、1行分のログを返す。
func serveLogged(t *testing.T, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewLoggingMiddleware(logger)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_StatusAndLevel(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{name: "成功はINFO", path: "/api/moods", status: http.StatusOK, wantLevel: "INFO"},
		{name: "作成はINFO", path: "/api/reminders", status: http.StatusCreated, wantLevel: "INFO"},
		{name: "入力エラーはWARN", path: "/api/sos/send", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "レート制限はWARN", path: "/api/sos/send", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "ゲートウェイ失敗はERROR", path: "/api/sos/send", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "ヘルスチェックはDEBUG", path: "/health", status: http.StatusOK, wantLevel: "DEBUG"},
		{name: "DB停止中のヘルスチェックはERROR", path: "/health", status: http.StatusServiceUnavailable, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			entry := serveLogged(t, h, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if got := int(entry["status"].(float64)); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
			if entry["path"] != tt.path {
				t.Errorf("path = %v, want %s", entry["path"], tt.path)
			}
			if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
				t.Errorf("duration_ms = %v", entry["duration_ms"])
			}
		})
	}
}

func TestLoggingMiddleware_ImplicitOKAndBytes(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"moods":[]}`))
	})
	entry := serveLogged(t, h, httptest.NewRequest(http.MethodGet, "/api/moods", nil))

	if got := int(entry["status"].(float64)); got != http.StatusOK {
		t.Errorf("status = %d, want 200", got)
	}
	if got := int(entry["bytes"].(float64)); got != len(`{"moods":[]}`) {
		t.Errorf("bytes = %d", got)
	}
}

func TestLoggingMiddleware_RoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Delete("/api/moods/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/moods/7f0c", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	if entry["path"] != "/api/moods/7f0c" {
		t.Errorf("path = %v", entry["path"])
	}
	if entry["route"] != "/api/moods/{id}" {
		t.Errorf("route = %v, want /api/moods/{id}", entry["route"])
	}
}

func TestLoggingMiddleware_UserID(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("コンテキストのユーザーID", func(t *testing.T) {
		entry := serveLogged(t, ok, requestAs(http.MethodGet, "/api/moods", "user-123"))
		if entry["user_id"] != "user-123" {
			t.Errorf("user_id = %v, want user-123", entry["user_id"])
		}
	})

	t.Run("未認証では出力しない", func(t *testing.T) {
		entry := serveLogged(t, ok, httptest.NewRequest(http.MethodGet, "/api/session-check", nil))
		if v, found := entry["user_id"]; found {
			t.Errorf("user_id = %v, want absent", v)
		}
	})

	t.Run("後段のセッションミドルウェアで判明したユーザーID", func(t *testing.T) {
		repo := &mockSessionRepository{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return authenticatedSession(id, "user-456"), nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/api/reminders", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})

		entry := serveLogged(t, NewSessionMiddleware(repo, nil)(ok), req)
		if entry["user_id"] != "user-456" {
			t.Errorf("user_id = %v, want user-456", entry["user_id"])
		}
	})
}
