// Package notify はSMSゲートウェイ（MSG91）への送信クライアントを提供する。
// テンプレートを使うflow送信と、本文を直接指定するSMS送信の2経路を持つ。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// DefaultEndpoint はMSG91 flow APIのエンドポイント。
	DefaultEndpoint = "https://control.msg91.com/api/v5/flow/"
	// DefaultSenderID は送信者IDが未設定の場合の値。
	DefaultSenderID = "MSGIND"
	// DefaultRoute はルートが未設定の場合の値（トランザクション）。
	DefaultRoute = "4"
	// ProviderName はレスポンスやメトリクスに使う送信元の名前。
	ProviderName = "MSG91"

	// maxResponseBytes はゲートウェイ応答の読み取り上限。
	maxResponseBytes = 1 << 20
)

// Config はゲートウェイの認証情報と送信パラメータ。
type Config struct {
	AuthKey     string
	SenderID    string
	Route       string
	TemplateID  string
	CountryCode string
	Endpoint    string
}

// Response はゲートウェイの成功応答。
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// GatewayError はゲートウェイがエラーを返したことを表す。Bodyは応答本文そのもの。
type GatewayError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *GatewayError) Error() string {
	return fmt.Sprintf("sms gateway returned status %d: %s", e.StatusCode, e.Body)
}

// ErrNotConfigured は認証キーが設定されていないことを表す。
var ErrNotConfigured = errors.New("sms gateway is not configured")

// Client はMSG91のクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きのクライアントを渡す。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	if cfg.SenderID == "" {
		cfg.SenderID = DefaultSenderID
	}
	if cfg.Route == "" {
		cfg.Route = DefaultRoute
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
		endpoint:   endpoint,
	}
}

// HasCredential は認証キーが設定されているかを返す。
func (c *Client) HasCredential() bool {
	return c.cfg.AuthKey != ""
}

// HasFlowTemplate はflow送信に必要なテンプレートIDと認証キーが揃っているかを返す。
func (c *Client) HasFlowTemplate() bool {
	return c.cfg.AuthKey != "" && c.cfg.TemplateID != ""
}

// flowPayload はテンプレート送信のリクエストボディ。
type flowPayload struct {
	FlowID  string `json:"flow_id"`
	Sender  string `json:"sender"`
	Mobiles string `json:"mobiles"`
	Message string `json:"message"`
}

// directMessage はSMS配列の1要素。
type directMessage struct {
	Message string   `json:"message"`
	To      []string `json:"to"`
}

// directPayload は本文指定送信のリクエストボディ。
type directPayload struct {
	Sender  string          `json:"sender"`
	Route   string          `json:"route"`
	Country string          `json:"country"`
	SMS     []directMessage `json:"sms"`
}

// SendFlow はテンプレート（flow）で送信する。mobileは国番号を含まない番号。
// テンプレート変数messageに本文を渡す。
func (c *Client) SendFlow(ctx context.Context, mobile, message string) (*Response, error) {
	if !c.HasFlowTemplate() {
		return nil, ErrNotConfigured
	}
	return c.post(ctx, "flow", flowPayload{
		FlowID:  c.cfg.TemplateID,
		Sender:  c.cfg.SenderID,
		Mobiles: c.cfg.CountryCode + mobile,
		Message: message,
	})
}

// SendDirect は本文を直接指定して送信する。toは国番号付きの番号。
func (c *Client) SendDirect(ctx context.Context, to, message string) (*Response, error) {
	if !c.HasCredential() {
		return nil, ErrNotConfigured
	}
	return c.post(ctx, "direct", directPayload{
		Sender:  c.cfg.SenderID,
		Route:   c.cfg.Route,
		Country: c.cfg.CountryCode,
		SMS: []directMessage{
			{Message: message, To: []string{to}},
		},
	})
}

// post はJSONをPOSTし、2xx以外またはtype=errorの応答をGatewayErrorとして返す。
func (c *Client) post(ctx context.Context, channel string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("authkey", c.cfg.AuthKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("sms gateway request failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || isErrorBody(raw) {
		c.logger.Error("sms gateway returned error",
			slog.String("channel", channel),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Info("sms gateway accepted message",
		slog.String("channel", channel),
		slog.Int("http_status", resp.StatusCode),
	)
	return &Response{StatusCode: resp.StatusCode, Body: asJSON(raw)}, nil
}

// isErrorBody はMSG91が200で返すエラー応答（{"type":"error"}）を判定する。
func isErrorBody(raw []byte) bool {
	var body struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return body.Type == "error"
}

// asJSON は応答本文をJSON値として返す。JSONでなければ文字列として包む。
func asJSON(raw []byte) json.RawMessage {
	if len(raw) > 0 && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	encoded, _ := json.Marshal(string(raw))
	return encoded
}
