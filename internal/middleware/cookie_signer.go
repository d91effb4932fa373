package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// CookieSigner はセッションCookieの値にHMAC-SHA256署名を付与・検証する。
// 署名済みの値は "<value>.<base64url(署名)>" の形式。
// nilのCookieSignerは署名せず値をそのまま扱う。
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner はSESSION_SECRETからCookieSignerを生成する。
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Sign は値に署名を付与する。
func (s *CookieSigner) Sign(value string) string {
	if s == nil {
		return value
	}
	return value + "." + s.mac(value)
}

// Verify は署名済みの値を検証し、元の値を返す。
// 署名が一致しない場合はfalseを返す。
func (s *CookieSigner) Verify(signed string) (string, bool) {
	if s == nil {
		return signed, signed != ""
	}
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(value))) {
		return "", false
	}
	return value, true
}

func (s *CookieSigner) mac(value string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
