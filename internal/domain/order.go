package domain

import "time"

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderPending  OrderStatus = "Pending"
	OrderPaid     OrderStatus = "Paid"
	OrderFailed   OrderStatus = "Failed"
	OrderRefunded OrderStatus = "Refunded"
	OrderCanceled OrderStatus = "Canceled"
)

// legalTransitions lists, for each target status, the only prior status an
// order may be in. Canceled has no automatic path.
var legalTransitions = map[OrderStatus]OrderStatus{
	OrderPaid:     OrderPending,
	OrderFailed:   OrderPending,
	OrderRefunded: OrderPaid,
}

// RequiredPriorStatus returns the status an order must hold to move to next.
func RequiredPriorStatus(next OrderStatus) (OrderStatus, bool) {
	from, ok := legalTransitions[next]
	return from, ok
}

// CanTransition reports whether from → to is a legal order transition.
func CanTransition(from, to OrderStatus) bool {
	required, ok := legalTransitions[to]
	return ok && required == from
}

// Order 订单，对应 orders 表；金额均为 minor units
type Order struct {
	OrderID           string      `db:"order_id"`
	TenantID          string      `db:"tenant_id"`
	Status            OrderStatus `db:"status"`
	Currency          string      `db:"currency"`
	SubtotalAmount    int64       `db:"subtotal_amount"`
	TotalAmount       int64       `db:"total_amount"`
	CustomerEmail     string      `db:"customer_email"`             // nullable
	CheckoutSessionID string      `db:"stripe_checkout_session_id"` // nullable
	PaymentIntentID   string      `db:"stripe_payment_intent_id"`   // nullable
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
	Items             []OrderItem `db:"-"`
}

// OrderItem 下单时的商品快照，创建后不可变
type OrderItem struct {
	OrderItemID     string    `db:"order_item_id"`
	OrderID         string    `db:"order_id"`
	TenantID        string    `db:"tenant_id"`
	ProductID       string    `db:"product_id"`
	VariantID       string    `db:"variant_id"`
	TitleSnapshot   string    `db:"title_snapshot"`
	SKUSnapshot     string    `db:"sku_snapshot"`
	UnitPriceAmount int64     `db:"unit_price_amount"`
	Quantity        int       `db:"quantity"`
	Currency        string    `db:"currency"`
	LineTotalAmount int64     `db:"line_total_amount"`
	CreatedAt       time.Time `db:"created_at"`
}

// ItemsTotal sums the line totals of the order's items.
func (o *Order) ItemsTotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.LineTotalAmount
	}
	return sum
}
