package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/elderease/internal/model"
)

// NewCSRFMiddleware は状態変更リクエストのOriginを検証するミドルウェアを返す。
// プリフライトを伴わない単純リクエスト（フォーム送信やmultipart）は
// CORSでは止まらないため、Originヘッダーが付いていて許可リストにない場合は403を返す。
// Originヘッダーのないリクエスト（ブラウザ以外のクライアント）は通過させる。
func NewCSRFMiddleware(policy *OriginPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && !policy.Allows(origin) {
				slog.Warn("CSRF validation failed: origin not allowed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
