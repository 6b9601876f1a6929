package httpapi

import (
	"context"
	"net/http"

	"storefront/internal/service"

	"go.uber.org/zap"
)

// CheckoutAPI 前台用到的结账 / 订单读取能力
type CheckoutAPI interface {
	CreateCheckoutSession(ctx context.Context, req service.CreateCheckoutSessionRequest) (*service.CreateCheckoutSessionResponse, error)
	GetOrder(ctx context.Context, hostname, orderID string) (*service.OrderView, error)
}

type StorefrontHandler struct {
	Checkout CheckoutAPI
	Logger   *zap.Logger
}

func NewStorefrontHandler(checkout CheckoutAPI, logger *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{Checkout: checkout, Logger: logger}
}

// CreateCheckoutSession POST /api/storefront/checkout/session
func (h *StorefrontHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCheckoutSessionRequest
	if err := readBodyJSON(r, maxJSONBodyBytes, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, string(service.CodeInvalidRequest), "invalid JSON body")
		return
	}
	req.Hostname = r.Host

	resp, err := h.Checkout.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder GET /api/storefront/orders/{orderId}
func (h *StorefrontHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/api/storefront/orders/")
	if len(parts) != 1 {
		writeProblem(w, http.StatusNotFound, string(service.CodeOrderNotFound), "order not found")
		return
	}
	view, err := h.Checkout.GetOrder(r.Context(), r.Host, parts[0])
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
