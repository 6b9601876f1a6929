package repository

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 唯一约束冲突（slug、hostname、external event id 等）
	ErrConflict = errors.New("conflict")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so one repository
// implementation serves plain and transactional callers.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories that share one backend and exposes an
// explicit transactional scope over them.
type Store interface {
	Tenants() TenantsRepository
	Catalog() CatalogRepository
	Orders() OrdersRepository
	WebhookEvents() WebhookEventsRepository
	AuditLogs() AuditLogsRepository

	// WithinTx runs fn in one atomic unit. fn's error rolls everything back.
	// Repositories obtained from the Store (not from tx) must not be used
	// inside fn.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view handed to WithinTx callbacks.
type Tx interface {
	Tenants() TenantsRepository
	Orders() OrdersRepository
	WebhookEvents() WebhookEventsRepository
	AuditLogs() AuditLogsRepository

	// Savepoint runs fn so that a failure undoes only fn's writes while the
	// enclosing transaction remains committable.
	Savepoint(ctx context.Context, name string, fn func() error) error
}
