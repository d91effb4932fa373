package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/elderease/internal/sos"
)

// SOSDispatcherInterface はSOSハンドラーが必要とする送信インターフェース。
type SOSDispatcherInterface interface {
	Send(ctx context.Context, userID, locationLink string) (*sos.Result, error)
}

// SOSHandler はSOS送信のHTTPハンドラー。
type SOSHandler struct {
	dispatcher SOSDispatcherInterface
}

// NewSOSHandler はSOSHandlerを生成する。
func NewSOSHandler(dispatcher SOSDispatcherInterface) *SOSHandler {
	return &SOSHandler{dispatcher: dispatcher}
}

type sosRequest struct {
	LocationLink string `json:"locationLink"`
}

// sosResponse はSOS送信結果。モック時はMessagePreviewを、送信時はResponseを含む。
type sosResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Provider       string          `json:"provider"`
	Mode           string          `json:"mode,omitempty"`
	Channel        string          `json:"channel,omitempty"`
	To             string          `json:"to"`
	MessagePreview string          `json:"messagePreview,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// Send は緊急連絡先にSOSを送信する。
// POST /api/sos/send {"locationLink": "..."}
func (h *SOSHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req sosRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.dispatcher.Send(r.Context(), userID, req.LocationLink)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := sosResponse{
		Success:  true,
		Provider: result.Provider,
		To:       result.To,
	}
	switch result.Kind {
	case sos.ResultUnconfigured:
		resp.Message = "SOS logged (mock mode - SMS not sent)."
		resp.Mode = string(sos.ResultUnconfigured)
		resp.MessagePreview = result.Message
	default:
		resp.Message = "SOS sent via " + result.Provider
		resp.Channel = result.Channel
		resp.Response = result.Response
	}

	writeJSON(w, http.StatusOK, resp)
}
