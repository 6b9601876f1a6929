package httpapi

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/service"

	"go.uber.org/zap"
)

// StripeSignatureHeader 网关签名头
const StripeSignatureHeader = "Stripe-Signature"

// WebhookAPI 回调处理
type WebhookAPI interface {
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (*service.WebhookResult, error)
}

type WebhookHandler struct {
	Webhooks WebhookAPI
	Logger   *zap.Logger
}

func NewWebhookHandler(webhooks WebhookAPI, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Webhooks: webhooks, Logger: logger}
}

// HandleStripe POST /api/webhooks/stripe
// 200: 已接收（含重复、忽略、副作用失败）；400: 签名无效；500: 账本未能提交，由网关重投
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge", "webhook payload too large")
			return
		}
		writeProblem(w, http.StatusBadRequest, string(service.CodeInvalidRequest), "failed to read body")
		return
	}

	res, err := h.Webhooks.HandleEvent(r.Context(), payload, r.Header.Get(StripeSignatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			writeProblem(w, http.StatusBadRequest, "InvalidSignature", "webhook signature verification failed")
			return
		}
		h.Logger.Error("Webhook event not committed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
