package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// quietPaths はコンテナのヘルスチェック等で頻繁に叩かれるため、Debugレベルで記録するパス。
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// logInfoContextKey は後段のミドルウェアがログ項目を書き戻すためのキー。
var logInfoContextKey = contextKey("log_info")

// requestLogInfo は後段で判明したリクエストの属性を保持する。
type requestLogInfo struct {
	userID string
}

// withLogInfo はリクエストのログ属性ホルダーを返す。未設定なら新たに注入する。
func withLogInfo(r *http.Request) (*http.Request, *requestLogInfo) {
	if info, ok := r.Context().Value(logInfoContextKey).(*requestLogInfo); ok {
		return r, info
	}
	info := &requestLogInfo{}
	return r.WithContext(context.WithValue(r.Context(), logInfoContextKey, info)), info
}

// annotateUserID はロギングミドルウェア配下であればユーザーIDを記録する。
func annotateUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(logInfoContextKey).(*requestLogInfo); ok {
		info.userID = userID
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はWriteHeaderが未呼び出しの場合に200を記録してから書き込む。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、route（chiのルートパターン）、status、bytes、duration_ms、
// 認証済みの場合はuser_idを含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			var info *requestLogInfo
			r, info = withLogInfo(r)

			next.ServeHTTP(rec, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}

			userID, _ := UserIDFromContext(r.Context())
			if userID == "" {
				userID = info.userID
			}
			if userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			logger.Log(r.Context(), requestLogLevel(r.URL.Path, rec.statusCode), "http_request", attrs...)
		})
	}
}

// requestLogLevel はステータスコードとパスからログレベルを決める。
func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	if _, quiet := quietPaths[path]; quiet {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
