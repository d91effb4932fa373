package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvProduction はAPP_ENVが本番環境を示す値。
const EnvProduction = "production"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Environment
	AppEnv string

	// SMS (MSG91)
	MSG91AuthKey    string
	MSG91SenderID   string
	MSG91Route      string
	MSG91TemplateID string
	MSG91Endpoint   string
	SMSTimeout      time.Duration

	// SOS
	SOSCountryCode string

	// Upload
	UploadMaxBytes int64

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitSOS     int

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*24*60*60)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)

	cfg.MSG91AuthKey = os.Getenv("MSG91_AUTH_KEY")
	cfg.MSG91SenderID = getEnvString("MSG91_SENDER_ID", "MSGIND")
	cfg.MSG91Route = getEnvString("MSG91_ROUTE", "4")
	cfg.MSG91TemplateID = os.Getenv("MSG91_TEMPLATE_ID")
	cfg.MSG91Endpoint = getEnvString("MSG91_ENDPOINT", "https://control.msg91.com/api/v5/flow/")
	cfg.SMSTimeout = getEnvDuration("SMS_TIMEOUT", 10*time.Second)

	cfg.SOSCountryCode = getEnvString("SOS_COUNTRY_CODE", "91")
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 10<<20)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSOS = getEnvInt("RATE_LIMIT_SOS", 5)

	// PaaSが注入するPORTはSERVER_PORT未設定時のみ使用する
	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", "5000"))

	cfg.CookieSecure = cfg.AppEnv == EnvProduction
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"*.vercel.app"})

	return cfg, nil
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// SMSConfigured はSMSプロバイダーの認証情報が設定されているかを返す。
func (c *Config) SMSConfigured() bool {
	return c.MSG91AuthKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// 数値の設定値はすべて正の値のみ有効とし、0以下や不正値はデフォルト値に戻す。

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数をスライスとして返す。空要素は除外する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
