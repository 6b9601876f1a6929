package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutURLs 结账成功/取消跳转配置
type CheckoutURLs struct {
	Scheme      string
	Port        int
	SuccessPath string
	CancelPath  string
}

// TenantLookup Host → tenant
type TenantLookup interface {
	Resolve(ctx context.Context, host string) (string, bool)
}

// CheckoutService 结账流程：校验购物车 → 写订单 → 创建托管支付会话
type CheckoutService struct {
	store    repository.Store
	tenants  TenantLookup
	gateway  PaymentGateway
	urls     CheckoutURLs
	logger   *zap.Logger
	now      func() time.Time
	newOrder func() string
}

func NewCheckoutService(store repository.Store, tenants TenantLookup, gateway PaymentGateway, urls CheckoutURLs, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		store:    store,
		tenants:  tenants,
		gateway:  gateway,
		urls:     urls,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newOrder: uuid.NewString,
	}
}

// MaxItemQuantity 单个规格的最大数量（order_items.quantity 为 INTEGER）
const MaxItemQuantity = math.MaxInt32

// CartItem 购物车行
type CartItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// CreateCheckoutSessionRequest 结账请求
type CreateCheckoutSessionRequest struct {
	Hostname      string     `json:"-"`
	Items         []CartItem `json:"items"`
	CustomerEmail string     `json:"customerEmail,omitempty"`
}

// CreateCheckoutSessionResponse 结账响应
type CreateCheckoutSessionResponse struct {
	OrderID     string `json:"orderId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// CreateCheckoutSession validates the cart against the tenant's catalog,
// persists a Pending order and opens a hosted gateway session for it.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (*CreateCheckoutSessionResponse, error) {
	resp, err := s.createCheckoutSession(ctx, req)
	outcome := "created"
	if err != nil {
		var cerr *CheckoutError
		if errors.As(err, &cerr) {
			outcome = string(cerr.Code)
		} else {
			outcome = "error"
		}
	}
	metrics.CheckoutSessionsTotal.WithLabelValues(outcome).Inc()
	return resp, err
}

func (s *CheckoutService) createCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (*CreateCheckoutSessionResponse, error) {
	hostname := NormalizeHostname(req.Hostname)

	// 1. tenant
	tenantID, ok := s.tenants.Resolve(ctx, hostname)
	if !ok {
		return nil, checkoutErr(CodeStoreNotFound, "store not found")
	}

	// 2. storefront must be Live
	cfg, err := s.store.Tenants().GetStorefrontConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, checkoutErr(CodeStoreNotPublished, "store not published")
		}
		return nil, fmt.Errorf("failed to load storefront config: %w", err)
	}
	if !cfg.IsLive() {
		return nil, checkoutErr(CodeStoreNotPublished, "store not published")
	}

	// 3. cart
	lines, err := mergeCart(req.Items)
	if err != nil {
		return nil, err
	}

	// 4. variants, tenant scoped
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VariantID)
	}
	variants, err := s.store.Catalog().GetVariantsByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	if len(variants) != len(ids) {
		return nil, checkoutErr(CodeProductsNotFound, "some products not found")
	}
	byID := make(map[string]domain.Variant, len(variants))
	for _, v := range variants {
		byID[v.VariantID] = v
	}

	// 5-7. availability, currency, totals
	currency := strings.ToUpper(cfg.Currency)
	orderID := s.newOrder()
	now := s.now()
	order := &domain.Order{
		OrderID:       orderID,
		TenantID:      tenantID,
		Status:        domain.OrderPending,
		Currency:      currency,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, l := range lines {
		v, ok := byID[l.VariantID]
		if !ok {
			return nil, checkoutErr(CodeProductsNotFound, "some products not found")
		}
		if v.ProductStatus != domain.ProductActive {
			return nil, checkoutErr(CodeProductNotAvailable, "some products are not available")
		}
		if strings.ToUpper(v.Currency) != currency {
			return nil, checkoutErr(CodeCurrencyMismatch, "currency mismatch")
		}
		lineTotal, err := multiplyAmount(v.PriceAmount, l.Quantity)
		if err != nil {
			return nil, checkoutErr(CodeInvalidQuantity, err.Error())
		}
		subtotal := order.SubtotalAmount + lineTotal
		if subtotal < order.SubtotalAmount {
			return nil, checkoutErr(CodeInvalidQuantity, "order total overflows")
		}
		order.SubtotalAmount = subtotal
		order.Items = append(order.Items, domain.OrderItem{
			OrderItemID:     uuid.NewString(),
			OrderID:         orderID,
			TenantID:        tenantID,
			ProductID:       v.ProductID,
			VariantID:       v.VariantID,
			TitleSnapshot:   itemTitle(v),
			SKUSnapshot:     v.SKU,
			UnitPriceAmount: v.PriceAmount,
			Quantity:        l.Quantity,
			Currency:        currency,
			LineTotalAmount: lineTotal,
			CreatedAt:       now,
		})
	}
	order.TotalAmount = order.SubtotalAmount

	// 8. order + items, one transaction
	if err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Orders().CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.AuditLogs().Append(ctx, newAudit(tenantID, "Create", "Order", orderID, nil,
			map[string]any{"status": order.Status, "totalAmount": order.TotalAmount, "currency": currency}, now))
	}); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// 9. hosted session
	lineItems := make([]CheckoutLineItem, 0, len(order.Items))
	for _, it := range order.Items {
		lineItems = append(lineItems, CheckoutLineItem{
			Name:       it.TitleSnapshot,
			UnitAmount: it.UnitPriceAmount,
			Currency:   it.Currency,
			Quantity:   it.Quantity,
		})
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		LineItems:         lineItems,
		SuccessURL:        s.successURL(hostname, orderID),
		CancelURL:         s.cancelURL(hostname),
		ClientReferenceID: orderID,
		Metadata: map[string]string{
			"tenant_id":  tenantID,
			"order_id":   orderID,
			"store_name": cfg.StoreName,
		},
	})
	if err != nil {
		// Pending order without a session id stays for reconciliation
		s.logger.Error("Gateway session creation failed, order left pending",
			zap.String("tenant_id", tenantID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, &CheckoutError{Code: CodeGatewayError, Message: "payment gateway unavailable", Err: err}
	}

	// 10. session id
	if err := s.store.Orders().AttachCheckoutSession(ctx, tenantID, orderID, session.SessionID); err != nil {
		s.logger.Error("Failed to attach checkout session to order",
			zap.String("order_id", orderID),
			zap.String("session_id", session.SessionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to attach checkout session: %w", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", orderID),
		zap.String("session_id", session.SessionID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.String("currency", currency),
	)

	// 11.
	return &CreateCheckoutSessionResponse{OrderID: orderID, CheckoutURL: session.CheckoutURL}, nil
}

// mergeCart rejects empty carts and bad quantities and folds duplicate
// variant ids into one line, preserving first-seen order.
func mergeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, checkoutErr(CodeEmptyCart, "cart is empty")
	}
	index := make(map[string]int, len(items))
	lines := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, checkoutErr(CodeInvalidQuantity, "quantity must be at least 1")
		}
		if it.Quantity > MaxItemQuantity {
			return nil, checkoutErr(CodeInvalidQuantity, fmt.Sprintf("quantity must be at most %d", MaxItemQuantity))
		}
		id, err := uuid.Parse(strings.TrimSpace(it.VariantID))
		if err != nil {
			return nil, checkoutErr(CodeProductsNotFound, "some products not found")
		}
		key := id.String()
		if i, ok := index[key]; ok {
			if lines[i].Quantity > MaxItemQuantity-it.Quantity {
				return nil, checkoutErr(CodeInvalidQuantity, fmt.Sprintf("quantity must be at most %d", MaxItemQuantity))
			}
			lines[i].Quantity += it.Quantity
			continue
		}
		index[key] = len(lines)
		lines = append(lines, CartItem{VariantID: key, Quantity: it.Quantity})
	}
	return lines, nil
}

func multiplyAmount(unit int64, qty int) (int64, error) {
	if unit < 0 {
		return 0, fmt.Errorf("negative unit price")
	}
	if qty < 1 {
		return 0, fmt.Errorf("quantity must be at least 1")
	}
	q := int64(qty)
	if unit != 0 && q > (1<<63-1)/unit {
		return 0, fmt.Errorf("line total overflows")
	}
	return unit * q, nil
}

func itemTitle(v domain.Variant) string {
	if v.Name == "" || v.Name == v.ProductTitle {
		return v.ProductTitle
	}
	return v.ProductTitle + " - " + v.Name
}

func (s *CheckoutService) storefrontBase(hostname string) string {
	scheme := s.urls.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := hostname
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if s.urls.Port > 0 {
		host += ":" + strconv.Itoa(s.urls.Port)
	}
	return scheme + "://" + host
}

func (s *CheckoutService) successURL(hostname, orderID string) string {
	return s.storefrontBase(hostname) + s.urls.SuccessPath + "?orderId=" + url.QueryEscape(orderID)
}

func (s *CheckoutService) cancelURL(hostname string) string {
	return s.storefrontBase(hostname) + s.urls.CancelPath
}

// OrderItemView 订单明细（只读）
type OrderItemView struct {
	ProductID       string `json:"productId"`
	VariantID       string `json:"variantId"`
	Title           string `json:"title"`
	SKU             string `json:"sku,omitempty"`
	UnitPriceAmount int64  `json:"unitPriceAmount"`
	Quantity        int    `json:"quantity"`
	Currency        string `json:"currency"`
	LineTotalAmount int64  `json:"lineTotalAmount"`
}

// OrderView 订单（只读）
type OrderView struct {
	OrderID           string          `json:"orderId"`
	TenantID          string          `json:"tenantId"`
	Status            string          `json:"status"`
	Currency          string          `json:"currency"`
	SubtotalAmount    int64           `json:"subtotalAmount"`
	TotalAmount       int64           `json:"totalAmount"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	CheckoutSessionID string          `json:"checkoutSessionId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Items             []OrderItemView `json:"items"`
}

func toOrderView(o *domain.Order) *OrderView {
	v := &OrderView{
		OrderID:           o.OrderID,
		TenantID:          o.TenantID,
		Status:            string(o.Status),
		Currency:          o.Currency,
		SubtotalAmount:    o.SubtotalAmount,
		TotalAmount:       o.TotalAmount,
		CustomerEmail:     o.CustomerEmail,
		CheckoutSessionID: o.CheckoutSessionID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Items:             make([]OrderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Title:           it.TitleSnapshot,
			SKU:             it.SKUSnapshot,
			UnitPriceAmount: it.UnitPriceAmount,
			Quantity:        it.Quantity,
			Currency:        it.Currency,
			LineTotalAmount: it.LineTotalAmount,
		})
	}
	return v
}

// GetOrder 按 Host 解析出的 tenant 读取订单
func (s *CheckoutService) GetOrder(ctx context.Context, hostname, orderID string) (*OrderView, error) {
	tenantID, ok := s.tenants.Resolve(ctx, hostname)
	if !ok {
		return nil, checkoutErr(CodeStoreNotFound, "store not found")
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, checkoutErr(CodeOrderNotFound, "order not found")
	}
	o, err := s.store.Orders().GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, checkoutErr(CodeOrderNotFound, "order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrderView(o), nil
}
