// Package sos は緊急連絡先へのSOS送信を提供する。
// 電話番号の正規化、本文の組み立て、送信経路のフォールバックを行う。
package sos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/elderease/internal/metrics"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/notify"
)

// ResultKind は送信結果の種類。
type ResultKind string

const (
	// ResultDelivered はゲートウェイが送信を受け付けたことを示す。
	ResultDelivered ResultKind = "delivered"
	// ResultUnconfigured は認証情報がなくログ出力のみ行ったことを示す。
	ResultUnconfigured ResultKind = "mock"
)

// MockProvider は認証情報がない場合の送信元名。
const MockProvider = "Mock"

// timeLayout はSOS本文に埋め込む時刻の形式。
const timeLayout = "02 Jan 2006, 3:04:05 PM"

// Sender はSMSゲートウェイの送信インターフェース。
type Sender interface {
	HasCredential() bool
	HasFlowTemplate() bool
	SendFlow(ctx context.Context, mobile, message string) (*notify.Response, error)
	SendDirect(ctx context.Context, to, message string) (*notify.Response, error)
}

// UserFinder はユーザー取得インターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// LinkValidator は位置情報リンクの検証インターフェース。
type LinkValidator interface {
	ValidateLocationLink(link string) error
}

// Config はディスパッチャの設定。
type Config struct {
	CountryCode string
	Location    *time.Location // nilの場合はtime.Local
}

// Result は1回のSOS送信の結果。
type Result struct {
	Kind     ResultKind
	Provider string
	Channel  string // "flow" または "direct"。モックでは空
	To       string
	Message  string
	Response json.RawMessage
}

// Dispatcher はSOS送信のパイプライン。リクエスト間で状態を持たない。
type Dispatcher struct {
	users     UserFinder
	sender    Sender
	validator LinkValidator
	metrics   metrics.MetricsCollector
	cfg       Config
	now       func() time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(
	users UserFinder,
	sender Sender,
	validator LinkValidator,
	collector metrics.MetricsCollector,
	cfg Config,
) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Dispatcher{
		users:     users,
		sender:    sender,
		validator: validator,
		metrics:   collector,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ComposeMessage はSOS本文を組み立てる。
func ComposeMessage(name, locationLink string, at time.Time) string {
	return fmt.Sprintf("EMERGENCY: %s needs help NOW. Location: %s Time: %s",
		name, locationLink, at.Format(timeLayout))
}

// Send はユーザーの緊急連絡先へSOSを送信する。
// flow送信の失敗は直接送信へフォールバックし、直接送信の失敗はUpstreamErrorになる。
// 認証情報がない場合はネットワークを使わずResultUnconfiguredを返す。
func (d *Dispatcher) Send(ctx context.Context, userID, locationLink string) (*Result, error) {
	if locationLink == "" {
		return nil, model.NewValidationError("locationLink is required in body")
	}
	if d.validator != nil {
		if err := d.validator.ValidateLocationLink(locationLink); err != nil {
			return nil, model.NewValidationError("locationLink must be a single line of at most 512 characters")
		}
	}

	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}
	if !user.OnboardingCompleted || user.Onboarding == nil || user.Onboarding.EmergencyContact == "" {
		return nil, model.NewValidationError("No emergency contact found. Complete onboarding first.")
	}

	recipient, err := DispatchNumber(user.Onboarding.EmergencyContact, d.cfg.CountryCode)
	if err != nil {
		return nil, err
	}
	national, to := recipient.National, recipient.International
	message := ComposeMessage(user.DisplayName(), locationLink, d.now().In(d.cfg.Location))

	logger := slog.With(slog.String("user_id", userID), slog.String("to", maskNumber(to)))
	logger.Info("sos dispatch requested")

	if d.sender.HasFlowTemplate() {
		resp, err := d.timed(func() (*notify.Response, error) {
			return d.sender.SendFlow(ctx, national, message)
		})
		if err == nil {
			d.metrics.RecordSOSDispatch(notify.ProviderName, "delivered")
			logger.Info("sos delivered", slog.String("channel", "flow"))
			return d.delivered("flow", to, message, resp), nil
		}
		d.metrics.RecordSOSDispatch(notify.ProviderName, "flow_failed")
		logger.Warn("sos flow send failed, falling back to direct send", slog.String("error", err.Error()))
	}

	if d.sender.HasCredential() {
		resp, err := d.timed(func() (*notify.Response, error) {
			return d.sender.SendDirect(ctx, to, message)
		})
		if err != nil {
			d.metrics.RecordSOSDispatch(notify.ProviderName, "failed")
			logger.Error("sos direct send failed", slog.String("error", err.Error()))
			return nil, model.NewUpstreamError("Failed to send SMS via MSG91", upstreamDetails(err))
		}
		d.metrics.RecordSOSDispatch(notify.ProviderName, "delivered")
		logger.Info("sos delivered", slog.String("channel", "direct"))
		return d.delivered("direct", to, message, resp), nil
	}

	d.metrics.RecordSOSDispatch(MockProvider, string(ResultUnconfigured))
	logger.Info("sos logged in mock mode, sms gateway not configured", slog.String("message", message))
	return &Result{
		Kind:     ResultUnconfigured,
		Provider: MockProvider,
		To:       to,
		Message:  message,
	}, nil
}

func (d *Dispatcher) delivered(channel, to, message string, resp *notify.Response) *Result {
	r := &Result{
		Kind:     ResultDelivered,
		Provider: notify.ProviderName,
		Channel:  channel,
		To:       to,
		Message:  message,
	}
	if resp != nil {
		r.Response = resp.Body
	}
	return r
}

func (d *Dispatcher) timed(call func() (*notify.Response, error)) (*notify.Response, error) {
	start := time.Now()
	resp, err := call()
	d.metrics.RecordGatewayLatency(time.Since(start))
	return resp, err
}

// upstreamDetails はゲートウェイの応答本文、なければエラーメッセージを返す。
func upstreamDetails(err error) string {
	var gwErr *notify.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Body
	}
	return err.Error()
}

// maskNumber はログ用に末尾4桁以外を伏せる。
func maskNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	masked := make([]byte, len(n))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(n)-4:], n[len(n)-4:])
	return string(masked)
}
