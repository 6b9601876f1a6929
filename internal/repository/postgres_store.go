package repository

import (
	"context"
	"database/sql"
	"errors"

	"storefront/common/database"

	"github.com/lib/pq"
)

// PostgresStore Store 的 PostgreSQL 实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// 确保实现了接口
var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Tenants() TenantsRepository { return NewPostgresTenantsRepository(s.db) }
func (s *PostgresStore) Catalog() CatalogRepository { return NewPostgresCatalogRepository(s.db) }
func (s *PostgresStore) Orders() OrdersRepository   { return NewPostgresOrdersRepository(s.db) }
func (s *PostgresStore) WebhookEvents() WebhookEventsRepository {
	return NewPostgresWebhookEventsRepository(s.db)
}
func (s *PostgresStore) AuditLogs() AuditLogsRepository { return NewPostgresAuditLogsRepository(s.db) }

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) Tenants() TenantsRepository { return NewPostgresTenantsRepository(t.tx) }
func (t *postgresTx) Orders() OrdersRepository   { return NewPostgresOrdersRepository(t.tx) }
func (t *postgresTx) WebhookEvents() WebhookEventsRepository {
	return NewPostgresWebhookEventsRepository(t.tx)
}
func (t *postgresTx) AuditLogs() AuditLogsRepository { return NewPostgresAuditLogsRepository(t.tx) }

func (t *postgresTx) Savepoint(ctx context.Context, name string, fn func() error) error {
	return database.Savepoint(ctx, t.tx, name, fn)
}

// isUniqueViolation 判断是否为唯一约束冲突（SQLSTATE 23505）
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
