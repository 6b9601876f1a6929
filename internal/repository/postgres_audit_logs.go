package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
)

// PostgresAuditLogsRepository 审计记录
type PostgresAuditLogsRepository struct {
	db DBTX
}

func NewPostgresAuditLogsRepository(db DBTX) *PostgresAuditLogsRepository {
	return &PostgresAuditLogsRepository{db: db}
}

var _ AuditLogsRepository = (*PostgresAuditLogsRepository)(nil)

func (r *PostgresAuditLogsRepository) Append(ctx context.Context, entries ...domain.AuditLog) error {
	for _, e := range entries {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO audit_logs (audit_id, tenant_id, action, entity, entity_id, old_values, new_values, created_at)
			 VALUES ($1::uuid, NULLIF($2, '')::uuid, $3, $4, $5, $6::jsonb, $7::jsonb, $8)`,
			e.AuditID, e.TenantID, e.Action, e.Entity, e.EntityID,
			jsonArg(e.OldValues), jsonArg(e.NewValues), e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append audit log: %w", err)
		}
	}
	return nil
}

func (r *PostgresAuditLogsRepository) ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT audit_id::text, COALESCE(tenant_id::text, ''), action, entity, entity_id,
		        old_values, new_values, created_at
		 FROM audit_logs
		 WHERE entity = $1 AND entity_id = $2
		 ORDER BY created_at`,
		entity, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditLog{}
	for rows.Next() {
		var e domain.AuditLog
		var oldValues, newValues []byte
		if err := rows.Scan(&e.AuditID, &e.TenantID, &e.Action, &e.Entity, &e.EntityID,
			&oldValues, &newValues, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.OldValues = oldValues
		e.NewValues = newValues
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return out, nil
}

func jsonArg(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
