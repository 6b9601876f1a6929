package repository

import (
	"context"

	"storefront/internal/domain"
)

// OrderFilters 订单查询过滤器
type OrderFilters struct {
	Status string // 可选
}

// OrdersRepository 订单 + 订单明细
type OrdersRepository interface {
	// CreateOrder inserts the order and all its items. Callers wrap it in
	// Store.WithinTx so a partial order is never visible.
	CreateOrder(ctx context.Context, order *domain.Order) error

	AttachCheckoutSession(ctx context.Context, tenantID, orderID, sessionID string) error

	// GetOrder 按 tenant 范围读取订单（含明细）
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	// GetOrderByID 不带 tenant 范围（回调处理使用），不含明细
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	FindOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)

	// TransitionStatus moves the order from → to only if it currently holds
	// from. Non-empty sessionID / paymentIntentID are stored alongside.
	// It reports whether a row changed.
	TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, sessionID, paymentIntentID string) (bool, error)

	ListOrders(ctx context.Context, tenantID string, filter OrderFilters, page, size int) ([]*domain.Order, int, error)
}
