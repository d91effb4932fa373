package handler

import (
	"net/http"

	"github.com/hitoshi/elderease/internal/middleware"
)

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool // 本番環境ではtrue。SameSite=Noneになる
	MaxAge int  // セッションCookieの有効期間（秒）
	// Signer はCookie値の署名に使う。nilの場合は署名しない
	Signer *middleware.CookieSigner
}

func (c CookieConfig) sameSite() http.SameSite {
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func setSessionCookie(w http.ResponseWriter, config CookieConfig, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    config.Signer.Sign(sessionID),
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: config.sameSite(),
	})
}

// clearSessionCookie はセッションCookieを削除する。
func clearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: config.sameSite(),
	})
}

// sessionIDFromRequest はCookieのセッションIDを返す。ないか署名が不正な場合は空文字列。
func sessionIDFromRequest(r *http.Request, config CookieConfig) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	sessionID, ok := config.Signer.Verify(cookie.Value)
	if !ok {
		return ""
	}
	return sessionID
}
