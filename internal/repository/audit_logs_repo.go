package repository

import (
	"context"

	"storefront/internal/domain"
)

// AuditLogsRepository append-only 审计记录
type AuditLogsRepository interface {
	Append(ctx context.Context, entries ...domain.AuditLog) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditLog, error)
}
