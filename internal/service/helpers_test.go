package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	acmeTenantID  = "11111111-1111-4111-8111-111111111111"
	otherTenantID = "22222222-2222-4222-8222-222222222222"
	draftTenantID = "33333333-3333-4333-8333-333333333333"

	variantEUR        = "aaaaaaaa-0000-4000-8000-000000000001"
	variantEUR2       = "aaaaaaaa-0000-4000-8000-000000000002"
	variantUSD        = "aaaaaaaa-0000-4000-8000-000000000003"
	variantDraft      = "aaaaaaaa-0000-4000-8000-000000000004"
	variantOther      = "aaaaaaaa-0000-4000-8000-000000000005"
	variantUnknown    = "aaaaaaaa-0000-4000-8000-0000000000ff"
	acmeHost          = "acme.localtest.me"
	otherHost         = "other.localtest.me"
	draftHost         = "draft.localtest.me"
	testWebhookSecret = "whsec_test"
)

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []CheckoutSessionRequest
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &CheckoutSession{
		SessionID:   "cs_test_" + req.ClientReferenceID,
		CheckoutURL: "https://checkout.stripe.test/pay/cs_test_" + req.ClientReferenceID,
	}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func seedStore(t *testing.T, st *repository.MemoryStore, tenantID, slug, hostname string, live bool) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, st.Tenants().CreateTenant(ctx,
		&domain.Tenant{TenantID: tenantID, Name: slug, Slug: slug, IsActive: true, CreatedAt: now, UpdatedAt: now},
		&domain.StorefrontConfig{ConfigID: tenantID, TenantID: tenantID, StoreName: slug, Subdomain: slug,
			Currency: "EUR", Locale: DefaultLocale, Theme: DefaultTheme, Status: domain.StorefrontDraft,
			CreatedAt: now, UpdatedAt: now},
	))
	require.NoError(t, st.Tenants().CreateDomain(ctx, &domain.DomainBinding{
		DomainID: tenantID, TenantID: tenantID, Hostname: hostname, IsActive: true, CreatedAt: now,
	}))
	if live {
		require.NoError(t, st.Tenants().MarkPublished(ctx, tenantID, now))
	}
}

func seedCatalog(st *repository.MemoryStore) {
	variant := func(id, tenantID, title string, price int64, currency string, status domain.ProductStatus) domain.Variant {
		return domain.Variant{
			VariantID: id, TenantID: tenantID, ProductID: "p-" + id, ProductTitle: title,
			ProductStatus: status, Name: "M", SKU: "SKU-" + id[len(id)-2:], PriceAmount: price, Currency: currency,
		}
	}
	st.PutVariant(variant(variantEUR, acmeTenantID, "T-shirt", 1500, "EUR", domain.ProductActive))
	st.PutVariant(variant(variantEUR2, acmeTenantID, "Mug", 899, "EUR", domain.ProductActive))
	st.PutVariant(variant(variantUSD, acmeTenantID, "Cap", 1200, "USD", domain.ProductActive))
	st.PutVariant(variant(variantDraft, acmeTenantID, "Hoodie", 4000, "EUR", domain.ProductDraft))
	st.PutVariant(variant(variantOther, otherTenantID, "Poster", 500, "EUR", domain.ProductActive))
}

type checkoutFixture struct {
	store    *repository.MemoryStore
	gateway  *fakeGateway
	resolver *TenantResolver
	checkout *CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	st := repository.NewMemoryStore()
	seedStore(t, st, acmeTenantID, "acme", acmeHost, true)
	seedStore(t, st, otherTenantID, "other", otherHost, true)
	seedStore(t, st, draftTenantID, "draft", draftHost, false)
	seedCatalog(st)

	gw := &fakeGateway{}
	resolver := NewTenantResolver(st.Tenants(), store.NewMemoryKV(), 0, zap.NewNop())
	svc := NewCheckoutService(st, resolver, gw, CheckoutURLs{
		Scheme: "http", Port: 5003, SuccessPath: "/checkout/success", CancelPath: "/cart",
	}, zap.NewNop())
	return &checkoutFixture{store: st, gateway: gw, resolver: resolver, checkout: svc}
}

func assertCheckoutCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var cerr *CheckoutError
	require.True(t, errors.As(err, &cerr), "expected *CheckoutError, got %v", err)
	assert.Equal(t, code, cerr.Code)
}

func assertProvisioningCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var perr *ProvisioningError
	require.True(t, errors.As(err, &perr), "expected *ProvisioningError, got %v", err)
	assert.Equal(t, code, perr.Code)
}
