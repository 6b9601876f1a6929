package repository

import (
	"context"

	"storefront/internal/domain"
)

// WebhookEventsRepository 回调事件去重账本
type WebhookEventsRepository interface {
	GetByExternalID(ctx context.Context, externalEventID string) (*domain.WebhookEvent, error)

	// Insert records a new event. It returns false, nil when a row with the
	// same external event id already exists, including one committed by a
	// concurrent writer.
	Insert(ctx context.Context, event *domain.WebhookEvent) (bool, error)

	// UpdateStatus persists processing status, processed_at, error and tenant_id.
	UpdateStatus(ctx context.Context, event *domain.WebhookEvent) error
}
