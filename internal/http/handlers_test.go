package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	testSecret   = "whsec_http_test"
	testVariant  = "bbbbbbbb-0000-4000-8000-000000000001"
	otherVariant = "bbbbbbbb-0000-4000-8000-000000000002"
)

type stubGateway struct{ err error }

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req service.CheckoutSessionRequest) (*service.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &service.CheckoutSession{
		SessionID:   "cs_" + req.ClientReferenceID,
		CheckoutURL: "https://pay.example.test/" + req.ClientReferenceID,
	}, nil
}

type apiFixture struct {
	store   *repository.MemoryStore
	gateway *stubGateway
	router  *Router
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	st := repository.NewMemoryStore()
	resolver := service.NewTenantResolver(st.Tenants(), store.NewMemoryKV(), 0, logger)
	gw := &stubGateway{}

	checkout := service.NewCheckoutService(st, resolver, gw, service.CheckoutURLs{
		Scheme: "http", Port: 5003, SuccessPath: "/checkout/success", CancelPath: "/cart",
	}, logger)
	provisioning := service.NewProvisioningService(st, resolver, "localtest.me", logger)
	webhooks := service.NewWebhookService(st, testSecret, service.DefaultSignatureTolerance, nil, logger)
	orders := service.NewOrderAdminService(st, logger)

	r := NewRouter(logger)
	r.RegisterStorefrontRoutes(NewStorefrontHandler(checkout, logger))
	r.RegisterWebhookRoutes(NewWebhookHandler(webhooks, logger))
	r.RegisterAdminStoreRoutes(NewAdminStoresHandler(provisioning, logger))
	r.RegisterAdminOrderRoutes(NewAdminOrdersHandler(orders, logger))
	r.RegisterOpsRoutes()
	return &apiFixture{store: st, gateway: gw, router: r}
}

func (f *apiFixture) do(t *testing.T, method, target, host string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if host != "" {
		req.Host = host
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// provisionLiveStore 走 admin 接口开通并发布店铺，并放入一个商品规格；返回 tenant id
func (f *apiFixture) provisionLiveStore(t *testing.T, name, subdomain, variantID string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/admin/stores", "", map[string]string{"storeName": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[service.StoreResponse](t, rec)
	assert.Equal(t, "Draft", created.Status)

	rec = f.do(t, http.MethodPut, "/api/admin/stores/"+created.TenantID+"/config", "",
		map[string]string{"subdomain": subdomain, "currency": "eur"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/admin/stores/"+created.TenantID+"/domains", "",
		map[string]string{"hostname": subdomain + ".localtest.me"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/admin/stores/"+created.TenantID+"/publish", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	published := decode[service.PublishStoreResponse](t, rec)
	assert.Equal(t, "Live", published.Status)
	assert.Equal(t, subdomain+".localtest.me", published.Hostname)

	f.store.PutVariant(domain.Variant{
		VariantID: variantID, TenantID: created.TenantID, ProductID: "p-1", ProductTitle: "Tote",
		ProductStatus: domain.ProductActive, Name: "One size", SKU: "TOTE-1", PriceAmount: 1500, Currency: "EUR",
	})
	return created.TenantID
}

func signedEvent(t *testing.T, id, typ string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"id": id, "type": typ, "data": map[string]any{"object": object}})
	require.NoError(t, err)
	return payload, service.SignPayload(payload, testSecret, time.Now())
}

func (f *apiFixture) deliverWebhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set(StripeSignatureHeader, signature)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestStorefrontFlow_CheckoutWebhookAndReads(t *testing.T) {
	f := newAPIFixture(t)
	tenantID := f.provisionLiveStore(t, "Tote Shop", "totes", testVariant)

	rec := f.do(t, http.MethodPost, "/api/storefront/checkout/session", "totes.localtest.me:5003", map[string]any{
		"items":         []map[string]any{{"variantId": testVariant, "quantity": 2}},
		"customerEmail": "buyer@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[service.CreateCheckoutSessionResponse](t, rec)
	assert.Equal(t, "https://pay.example.test/"+session.OrderID, session.CheckoutURL)

	payload, sig := signedEvent(t, "evt_http_1", "checkout.session.completed", map[string]any{
		"id": "cs_" + session.OrderID, "object": "checkout.session",
		"client_reference_id": session.OrderID, "payment_intent": "pi_http_1",
	})
	rec = f.deliverWebhook(t, payload, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.WebhookOutcomeProcessed, decode[service.WebhookResult](t, rec).Outcome)

	rec = f.deliverWebhook(t, payload, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.WebhookOutcomeDuplicate, decode[service.WebhookResult](t, rec).Outcome)

	rec = f.do(t, http.MethodGet, "/api/storefront/orders/"+session.OrderID, "totes.localtest.me", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode[service.OrderView](t, rec)
	assert.Equal(t, "Paid", order.Status)
	assert.Equal(t, int64(3000), order.TotalAmount)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Tote - One size", order.Items[0].Title)

	rec = f.do(t, http.MethodGet, "/api/admin/orders?tenantId="+tenantID+"&status=Paid", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[service.OrderListResponse](t, rec)
	assert.Equal(t, 1, list.Total)

	rec = f.do(t, http.MethodGet, "/api/admin/orders/"+session.OrderID+"?tenantId="+tenantID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/orders/export?tenantId="+tenantID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCheckoutSession_ProblemResponses(t *testing.T) {
	f := newAPIFixture(t)
	f.provisionLiveStore(t, "Tote Shop", "totes", testVariant)

	cases := []struct {
		name   string
		host   string
		body   any
		status int
		code   string
	}{
		{"unknown host", "nowhere.localtest.me", map[string]any{"items": []map[string]any{{"variantId": testVariant, "quantity": 1}}}, http.StatusNotFound, "StoreNotFound"},
		{"empty cart", "totes.localtest.me", map[string]any{"items": []any{}}, http.StatusBadRequest, "EmptyCart"},
		{"unknown product", "totes.localtest.me", map[string]any{"items": []map[string]any{{"variantId": "bbbbbbbb-0000-4000-8000-0000000000ff", "quantity": 1}}}, http.StatusNotFound, "ProductsNotFound"},
		{"bad quantity", "totes.localtest.me", map[string]any{"items": []map[string]any{{"variantId": testVariant, "quantity": 0}}}, http.StatusBadRequest, "InvalidQuantity"},
		{"malformed json", "totes.localtest.me", []byte("{"), http.StatusBadRequest, "InvalidRequest"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/storefront/checkout/session", tc.host, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			p := decode[Problem](t, rec)
			assert.Equal(t, tc.code, p.Code)
			assert.Equal(t, tc.status, p.Status)
		})
	}
}

func TestCheckoutSession_GatewayFailureIs502(t *testing.T) {
	f := newAPIFixture(t)
	f.provisionLiveStore(t, "Tote Shop", "totes", testVariant)
	f.gateway.err = errors.New("gateway down")

	rec := f.do(t, http.MethodPost, "/api/storefront/checkout/session", "totes.localtest.me", map[string]any{
		"items": []map[string]any{{"variantId": testVariant, "quantity": 1}},
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "GatewayError", decode[Problem](t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "gateway down")
}

func TestStorefrontOrder_NotVisibleFromOtherTenant(t *testing.T) {
	f := newAPIFixture(t)
	f.provisionLiveStore(t, "Tote Shop", "totes", testVariant)
	f.provisionLiveStore(t, "Cup Shop", "cups", otherVariant)

	rec := f.do(t, http.MethodPost, "/api/storefront/checkout/session", "totes.localtest.me", map[string]any{
		"items": []map[string]any{{"variantId": testVariant, "quantity": 1}},
	})
	// cups 的商品在 totes 不可见
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ProductsNotFound", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/storefront/checkout/session", "cups.localtest.me", map[string]any{
		"items": []map[string]any{{"variantId": otherVariant, "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orderID := decode[service.CreateCheckoutSessionResponse](t, rec).OrderID

	rec = f.do(t, http.MethodGet, "/api/storefront/orders/"+orderID, "totes.localtest.me", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "OrderNotFound", decode[Problem](t, rec).Code)
}

func TestWebhook_InvalidSignatureIs400(t *testing.T) {
	f := newAPIFixture(t)
	payload, _ := signedEvent(t, "evt_bad", "checkout.session.completed", map[string]any{"id": "cs_1"})

	rec := f.deliverWebhook(t, payload, "t=1,v1=deadbeef")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidSignature", decode[Problem](t, rec).Code)

	rec = f.deliverWebhook(t, payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := f.store.WebhookEvents().GetByExternalID(context.Background(), "evt_bad")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWebhook_UnhandledEventIs200(t *testing.T) {
	f := newAPIFixture(t)
	payload, sig := signedEvent(t, "evt_other", "customer.created", map[string]any{"id": "cus_1"})
	rec := f.deliverWebhook(t, payload, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.WebhookOutcomeProcessed, decode[service.WebhookResult](t, rec).Outcome)
}

type failingWebhooks struct{ err error }

func (w failingWebhooks) HandleEvent(context.Context, []byte, string) (*service.WebhookResult, error) {
	return nil, w.err
}

func TestWebhook_StorageFailureIs500(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.RegisterWebhookRoutes(NewWebhookHandler(failingWebhooks{err: fmt.Errorf("commit: %w", errors.New("db gone"))}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db gone")
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.deliverWebhook(t, bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1), "t=1,v1=00")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAdminStores_Errors(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/stores", "", map[string]string{"storeName": "ab"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SlugTooShort", decode[Problem](t, rec).Code)

	tenantID := f.provisionLiveStore(t, "Tote Shop", "totes", testVariant)

	rec = f.do(t, http.MethodPost, "/api/admin/stores", "", map[string]string{"storeName": "Tote Shop"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateSlug", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/admin/stores/"+tenantID+"/publish", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AlreadyPublished", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/admin/stores/"+tenantID+"/domains", "", map[string]string{"hostname": "TOTES.localtest.me."})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateHostname", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodPut, "/api/admin/stores/"+tenantID+"/config", "", map[string]string{"subdomain": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ReservedSubdomain", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodGet, "/api/admin/stores/"+tenantID+"/publish", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/stores/"+tenantID+"/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOrders_Validation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/admin/orders?tenantId=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodGet, "/api/admin/orders?tenantId="+testVariant+"&page=9223372036854775807", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", decode[Problem](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/admin/orders", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/orders/a/b", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInstrument_RecoversPanic(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Handle("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPathSegments(t *testing.T) {
	assert.Equal(t, []string{"abc"}, pathSegments("/api/storefront/orders/abc", "/api/storefront/orders/"))
	assert.Equal(t, []string{"t1", "config"}, pathSegments("/api/admin/stores/t1/config/", "/api/admin/stores/"))
	assert.Nil(t, pathSegments("/api/admin/stores/", "/api/admin/stores/"))
}
