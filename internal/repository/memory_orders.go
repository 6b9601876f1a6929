package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/domain"
)

type memoryOrders struct {
	s    *MemoryStore
	inTx bool
}

func (r *memoryOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	return r.s.view(r.inTx, func(d *memoryData) error {
		if _, ok := d.orders[order.OrderID]; ok {
			return fmt.Errorf("order %s: %w", order.OrderID, ErrConflict)
		}
		cp := *order
		cp.Items = append([]domain.OrderItem(nil), order.Items...)
		d.orders[order.OrderID] = cp
		return nil
	})
}

func (r *memoryOrders) AttachCheckoutSession(_ context.Context, tenantID, orderID, sessionID string) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		o, ok := d.orders[orderID]
		if !ok || o.TenantID != tenantID {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		o.CheckoutSessionID = sessionID
		o.UpdatedAt = time.Now().UTC()
		d.orders[orderID] = o
		return nil
	})
}

func (r *memoryOrders) GetOrder(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(r.inTx, func(d *memoryData) error {
		o, ok := d.orders[orderID]
		if !ok || o.TenantID != tenantID {
			return ErrNotFound
		}
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		out = &o
		return nil
	})
	return out, err
}

func (r *memoryOrders) GetOrderByID(_ context.Context, orderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(r.inTx, func(d *memoryData) error {
		o, ok := d.orders[orderID]
		if !ok {
			return ErrNotFound
		}
		o.Items = nil
		out = &o
		return nil
	})
	return out, err
}

func (r *memoryOrders) FindOrderByPaymentIntent(_ context.Context, paymentIntentID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(r.inTx, func(d *memoryData) error {
		for _, o := range d.orders {
			if paymentIntentID != "" && o.PaymentIntentID == paymentIntentID {
				o.Items = nil
				out = &o
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memoryOrders) TransitionStatus(_ context.Context, orderID string, from, to domain.OrderStatus, sessionID, paymentIntentID string) (bool, error) {
	changed := false
	err := r.s.view(r.inTx, func(d *memoryData) error {
		o, ok := d.orders[orderID]
		if !ok || o.Status != from {
			return nil
		}
		o.Status = to
		if sessionID != "" {
			o.CheckoutSessionID = sessionID
		}
		if paymentIntentID != "" {
			o.PaymentIntentID = paymentIntentID
		}
		o.UpdatedAt = time.Now().UTC()
		d.orders[orderID] = o
		changed = true
		return nil
	})
	return changed, err
}

func (r *memoryOrders) ListOrders(_ context.Context, tenantID string, filter OrderFilters, page, size int) ([]*domain.Order, int, error) {
	var matched []domain.Order
	_ = r.s.view(r.inTx, func(d *memoryData) error {
		for _, o := range d.orders {
			if o.TenantID != tenantID {
				continue
			}
			if filter.Status != "" && string(o.Status) != filter.Status {
				continue
			}
			o.Items = append([]domain.OrderItem(nil), o.Items...)
			matched = append(matched, o)
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if page-1 > total/size {
		return []*domain.Order{}, total, nil
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.Order{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]*domain.Order, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &matched[i])
	}
	return out, total, nil
}
