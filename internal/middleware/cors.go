package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy はCORSで許可するオリジンの判定規則。
// 任意ポートのhttp://localhostと、設定されたオリジンを許可する。
// 設定値が"*."で始まる場合はホスト名のサフィックス一致として扱う。
type OriginPolicy struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewOriginPolicy は許可オリジンのリストからOriginPolicyを生成する。
func NewOriginPolicy(allowed []string) *OriginPolicy {
	p := &OriginPolicy{exact: make(map[string]struct{})}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			p.suffixes = append(p.suffixes, strings.ToLower(entry[1:]))
			continue
		}
		p.exact[strings.ToLower(strings.TrimRight(entry, "/"))] = struct{}{}
	}
	return p
}

// Allows はオリジンが許可されているかを判定する。
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	if u.Scheme == "http" && host == "localhost" {
		return true
	}
	if _, ok := p.exact[strings.ToLower(origin)]; ok {
		return true
	}
	if u.Scheme != "https" {
		return false
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// NewCORSMiddleware は許可オリジンをエコーするCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は返さない。
// 許可されたオリジンのOPTIONSプリフライトには204、それ以外には403で応答する。
func NewCORSMiddleware(policy *OriginPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := policy.Allows(origin)

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			w.Header().Add("Vary", "Origin")

			// OPTIONSプリフライトリクエストには後続を呼ばずに応答
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
