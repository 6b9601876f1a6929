package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSessionRequest() CheckoutSessionRequest {
	return CheckoutSessionRequest{
		LineItems: []CheckoutLineItem{
			{Name: "T-shirt", UnitAmount: 1500, Currency: "EUR", Quantity: 2},
		},
		SuccessURL:        "http://acme.localtest.me:5003/checkout/success?orderId=o-1",
		CancelURL:         "http://acme.localtest.me:5003/cart",
		ClientReferenceID: "o-1",
		Metadata:          map[string]string{"tenant_id": "t-1", "order_id": "o-1", "store_name": "Acme"},
	}
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "checkout-o-1", r.Header.Get("Idempotency-Key"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "o-1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "1500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "T-shirt", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "t-1", r.PostForm.Get("metadata[tenant_id]"))
		assert.Equal(t, "o-1", r.PostForm.Get("payment_intent_data[metadata][order_id]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_123", zap.NewNop())
	session, err := gw.CreateCheckoutSession(context.Background(), testSessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.CheckoutURL)
}

func TestStripeGateway_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_123", zap.NewNop())
	_, err := gw.CreateCheckoutSession(context.Background(), testSessionRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid currency")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStripeGateway_ServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_2","url":"https://checkout.stripe.com/c/pay/cs_test_2"}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_123", zap.NewNop())
	session, err := gw.CreateCheckoutSession(context.Background(), testSessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", session.SessionID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
