package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// CheckoutLineItem 托管结账页上的一行
type CheckoutLineItem struct {
	Name       string
	UnitAmount int64
	Currency   string
	Quantity   int
}

// CheckoutSessionRequest 创建托管结账会话的参数
type CheckoutSessionRequest struct {
	LineItems         []CheckoutLineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// CheckoutSession 网关返回的会话
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// PaymentGateway 支付网关
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

// StripeGateway Stripe Checkout Sessions API 客户端
type StripeGateway struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripeGateway 创建 Stripe 客户端
func NewStripeGateway(baseURL, secretKey string, logger *zap.Logger) *StripeGateway {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetAuthToken(secretKey).
		SetHeader("Accept", "application/json")

	return &StripeGateway{httpClient: client, logger: logger}
}

// CreateCheckoutSession POST /v1/checkout/sessions (form-encoded).
// The client reference doubles as the idempotency key so retries never
// create a second session for the same order.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	form := encodeCheckoutSessionForm(req)

	var session stripeSessionResponse
	var apiErr stripeErrorResponse
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "checkout-"+req.ClientReferenceID).
		SetFormDataFromValues(form).
		SetResult(&session).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		g.logger.Error("Stripe API call failed",
			zap.String("order_id", req.ClientReferenceID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to call Stripe API: %w", err)
	}
	if resp.IsError() {
		g.logger.Error("Stripe API returned error",
			zap.String("order_id", req.ClientReferenceID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error_type", apiErr.Error.Type),
			zap.String("error_message", apiErr.Error.Message),
		)
		return nil, fmt.Errorf("stripe API error: %s (status: %d)", apiErr.Error.Message, resp.StatusCode())
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("stripe API returned an incomplete session")
	}

	g.logger.Info("Stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", req.ClientReferenceID),
	)
	return &CheckoutSession{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

func encodeCheckoutSessionForm(req CheckoutSessionRequest) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.ClientReferenceID)

	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", req.Metadata[k])
		// payment_intent 事件（失败/退款）只携带 PaymentIntent 的 metadata
		form.Set("payment_intent_data[metadata]["+k+"]", req.Metadata[k])
	}

	for i, item := range req.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}
	return form
}
