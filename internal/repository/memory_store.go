package repository

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// MemoryStore supports running without a database (local dev, unit tests).
// A transaction holds the store lock for its whole duration and restores a
// snapshot on failure, which gives the same all-or-nothing behaviour as the
// Postgres store at the cost of serialising writers.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	tenants  map[string]domain.Tenant           // tenantID -> Tenant
	configs  map[string]domain.StorefrontConfig // tenantID -> config
	domains  map[string]domain.DomainBinding    // hostname -> binding
	variants map[string]domain.Variant          // variantID -> Variant
	orders   map[string]domain.Order            // orderID -> Order (with Items)
	events   map[string]domain.WebhookEvent     // externalEventID -> event
	audit    []domain.AuditLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		tenants:  map[string]domain.Tenant{},
		configs:  map[string]domain.StorefrontConfig{},
		domains:  map[string]domain.DomainBinding{},
		variants: map[string]domain.Variant{},
		orders:   map[string]domain.Order{},
		events:   map[string]domain.WebhookEvent{},
	}}
}

var _ Store = (*MemoryStore)(nil)

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		tenants:  make(map[string]domain.Tenant, len(d.tenants)),
		configs:  make(map[string]domain.StorefrontConfig, len(d.configs)),
		domains:  make(map[string]domain.DomainBinding, len(d.domains)),
		variants: make(map[string]domain.Variant, len(d.variants)),
		orders:   make(map[string]domain.Order, len(d.orders)),
		events:   make(map[string]domain.WebhookEvent, len(d.events)),
		audit:    append([]domain.AuditLog(nil), d.audit...),
	}
	for k, v := range d.tenants {
		c.tenants[k] = v
	}
	for k, v := range d.configs {
		c.configs[k] = v
	}
	for k, v := range d.domains {
		c.domains[k] = v
	}
	for k, v := range d.variants {
		c.variants[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	return c
}

// view runs fn against the live data, taking the store lock unless the caller
// already holds it through a transaction.
func (s *MemoryStore) view(inTx bool, fn func(d *memoryData) error) error {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

func (s *MemoryStore) Tenants() TenantsRepository { return &memoryTenants{s: s} }
func (s *MemoryStore) Catalog() CatalogRepository { return &memoryCatalog{s: s} }
func (s *MemoryStore) Orders() OrdersRepository   { return &memoryOrders{s: s} }
func (s *MemoryStore) WebhookEvents() WebhookEventsRepository {
	return &memoryWebhookEvents{s: s}
}
func (s *MemoryStore) AuditLogs() AuditLogsRepository { return &memoryAuditLogs{s: s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()
	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(&memoryTx{s: s})
}

type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) Tenants() TenantsRepository { return &memoryTenants{s: t.s, inTx: true} }
func (t *memoryTx) Orders() OrdersRepository   { return &memoryOrders{s: t.s, inTx: true} }
func (t *memoryTx) WebhookEvents() WebhookEventsRepository {
	return &memoryWebhookEvents{s: t.s, inTx: true}
}
func (t *memoryTx) AuditLogs() AuditLogsRepository { return &memoryAuditLogs{s: t.s, inTx: true} }

func (t *memoryTx) Savepoint(_ context.Context, _ string, fn func() error) error {
	snapshot := t.s.data.clone()
	if err := fn(); err != nil {
		t.s.data = snapshot
		return err
	}
	return nil
}

// PutVariant seeds a catalog variant (the catalog is owned elsewhere).
func (s *MemoryStore) PutVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.variants[v.VariantID] = v
}

// Counts is a test/diagnostic helper.
func (s *MemoryStore) Counts() (orders, items, events, audit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.data.orders {
		items += len(o.Items)
	}
	return len(s.data.orders), items, len(s.data.events), len(s.data.audit)
}
