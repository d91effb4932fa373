// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// MaxLocationLinkLength はSMS本文に埋め込む位置情報リンクの最大長。
const MaxLocationLinkLength = 512

// 位置情報リンクの検証エラー。
var (
	ErrEmptyLink            = errors.New("location link is empty")
	ErrLinkTooLong          = errors.New("location link is too long")
	ErrLinkControlCharacter = errors.New("location link must be a single line without control characters")
)

// SSRFGuardService はアウトバウンド通信とSOSで共有するURLの安全性を扱う。
type SSRFGuardService interface {
	// NewSafeClient はSMSゲートウェイ向けのHTTPクライアントを生成する。
	// allowedHostsを指定した場合、それ以外のホストへの接続は拒否される。
	NewSafeClient(timeout time.Duration, allowedHosts ...string) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	ValidateURL(rawURL string) error

	// ValidateLocationLink は緊急連絡先に送る位置情報リンクを検証する。
	ValidateLocationLink(link string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は内部ネットワークを指すアドレス範囲。
// クラウドメタデータ(169.254.169.254)はリンクローカルに含まれる。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// safeurlはDialerのControlフックで解決後のIPも検証するため、DNS再バインディングも防げる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, allowedHosts ...string) *http.Client {
	builder := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443)
	if len(allowedHosts) > 0 {
		builder = builder.SetAllowedHosts(allowedHosts...)
	}

	return safeurl.Client(builder.Build()).Client
}

// ValidateURL はスキーム、ホスト、IPアドレスを静的に検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}

	if _, blocked := blockedHostnames[strings.ToLower(strings.TrimSuffix(host, "."))]; blocked {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// ValidateLocationLink は位置情報リンクを検証する。
// リンクはSMS本文にそのまま埋め込まれ、サーバーからアクセスすることはない。
// 緊急通知を落とさないよう、形式は問わず1行の文字列であればよい。
// "geo:"や座標の平文も受け付ける。
func (g *ssrfGuard) ValidateLocationLink(link string) error {
	if link == "" {
		return ErrEmptyLink
	}
	if len(link) > MaxLocationLinkLength {
		return ErrLinkTooLong
	}
	for _, r := range link {
		if r < 0x20 || r == 0x7f {
			return ErrLinkControlCharacter
		}
	}
	return nil
}

// isBlockedAddr はアドレスが内部ネットワーク範囲に含まれるかを判定する。
// IPv4射影IPv6アドレスはIPv4として扱う。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
