package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/lib/pq"
)

// PostgresOrdersRepository 订单Repository实现
type PostgresOrdersRepository struct {
	db DBTX
}

func NewPostgresOrdersRepository(db DBTX) *PostgresOrdersRepository {
	return &PostgresOrdersRepository{db: db}
}

var _ OrdersRepository = (*PostgresOrdersRepository)(nil)

const orderColumns = `order_id::text, tenant_id::text, status, currency, subtotal_amount, total_amount,
	COALESCE(customer_email, ''), COALESCE(stripe_checkout_session_id, ''), COALESCE(stripe_payment_intent_id, ''),
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status string
	if err := row.Scan(&o.OrderID, &o.TenantID, &status, &o.Currency, &o.SubtotalAmount, &o.TotalAmount,
		&o.CustomerEmail, &o.CheckoutSessionID, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// CreateOrder 写入订单与明细
func (r *PostgresOrdersRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, tenant_id, status, currency, subtotal_amount, total_amount,
		                     customer_email, created_at, updated_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)`,
		o.OrderID, o.TenantID, string(o.Status), o.Currency, o.SubtotalAmount, o.TotalAmount,
		nullString(o.CustomerEmail), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, it := range o.Items {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO order_items (order_item_id, order_id, tenant_id, product_id, variant_id,
			                          title_snapshot, sku_snapshot, unit_price_amount, quantity, currency,
			                          line_total_amount, created_at)
			 VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6, $7, $8, $9, $10, $11, $12)`,
			it.OrderItemID, it.OrderID, it.TenantID, it.ProductID, it.VariantID,
			it.TitleSnapshot, nullString(it.SKUSnapshot), it.UnitPriceAmount, it.Quantity, it.Currency,
			it.LineTotalAmount, it.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

// AttachCheckoutSession 保存网关 session id
func (r *PostgresOrdersRepository) AttachCheckoutSession(ctx context.Context, tenantID, orderID, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET stripe_checkout_session_id = $3, updated_at = now()
		 WHERE tenant_id = $1::uuid AND order_id = $2::uuid`,
		tenantID, orderID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach checkout session: %w", err)
	}
	return requireOneRow(res, "order")
}

func (r *PostgresOrdersRepository) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1::uuid AND order_id = $2::uuid`,
		tenantID, orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	items, err := r.loadItems(ctx, []string{o.OrderID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.OrderID]
	return o, nil
}

func (r *PostgresOrdersRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1::uuid`, orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *PostgresOrdersRepository) FindOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	if paymentIntentID == "" {
		return nil, ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE stripe_payment_intent_id = $1 LIMIT 1`, paymentIntentID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order by payment intent: %w", err)
	}
	return o, nil
}

// TransitionStatus 条件更新：仅当当前状态为 from 时才更新
func (r *PostgresOrdersRepository) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, sessionID, paymentIntentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $3,
		     stripe_checkout_session_id = COALESCE(NULLIF($4, ''), stripe_checkout_session_id),
		     stripe_payment_intent_id = COALESCE(NULLIF($5, ''), stripe_payment_intent_id),
		     updated_at = now()
		 WHERE order_id = $1::uuid AND status = $2`,
		orderID, string(from), string(to), sessionID, paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListOrders 按创建时间倒序分页
func (r *PostgresOrdersRepository) ListOrders(ctx context.Context, tenantID string, filter OrderFilters, page, size int) ([]*domain.Order, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	where := []string{"tenant_id = $1::uuid"}
	args := []any{tenantID}
	argIdx := 2
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIdx, argIdx+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.OrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, total, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		o.Items = items[o.OrderID]
	}
	return orders, total, nil
}

func (r *PostgresOrdersRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_item_id::text, order_id::text, tenant_id::text, product_id::text, variant_id::text,
		        title_snapshot, COALESCE(sku_snapshot, ''), unit_price_amount, quantity, currency,
		        line_total_amount, created_at
		 FROM order_items
		 WHERE order_id = ANY($1::uuid[])
		 ORDER BY created_at, order_item_id`,
		pq.Array(orderIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	out := map[string][]domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.OrderItemID, &it.OrderID, &it.TenantID, &it.ProductID, &it.VariantID,
			&it.TitleSnapshot, &it.SKUSnapshot, &it.UnitPriceAmount, &it.Quantity, &it.Currency,
			&it.LineTotalAmount, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return out, nil
}
