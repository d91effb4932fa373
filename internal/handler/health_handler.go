package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/elderease/internal/notify"
	"github.com/hitoshi/elderease/internal/sos"
)

// healthPingTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthPingTimeout = 2 * time.Second

// Pinger はデータベースの疎通確認インターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SMSStatus はSMSゲートウェイの設定状態。
type SMSStatus interface {
	HasCredential() bool
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db  Pinger
	sms SMSStatus
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger, sms SMSStatus) *HealthHandler {
	return &HealthHandler{db: db, sms: sms}
}

type healthResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	SMSConfigured bool   `json:"smsConfigured"`
	SMSProvider   string `json:"smsProvider"`
	Database      string `json:"database"`
}

// Health はサービスの稼働状態を返す。DBに接続できない場合は503。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "OK",
		Message:     "ElderEase Backend Running",
		SMSProvider: sos.MockProvider,
		Database:    "Connected",
	}
	if h.sms != nil && h.sms.HasCredential() {
		resp.SMSConfigured = true
		resp.SMSProvider = notify.ProviderName
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Warn("health check database ping failed", slog.String("error", err.Error()))
			resp.Status = "DEGRADED"
			resp.Database = "Disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
