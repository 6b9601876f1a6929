package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

// PostgresWebhookEventsRepository 回调去重账本
type PostgresWebhookEventsRepository struct {
	db DBTX
}

func NewPostgresWebhookEventsRepository(db DBTX) *PostgresWebhookEventsRepository {
	return &PostgresWebhookEventsRepository{db: db}
}

var _ WebhookEventsRepository = (*PostgresWebhookEventsRepository)(nil)

func (r *PostgresWebhookEventsRepository) GetByExternalID(ctx context.Context, externalEventID string) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var status string
	var processedAt sql.NullTime
	var errText, tenantID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT webhook_event_id::text, external_event_id, event_type, received_at,
		        processing_status, processed_at, error, tenant_id::text
		 FROM webhook_events
		 WHERE external_event_id = $1`,
		externalEventID,
	).Scan(&e.EventID, &e.ExternalEventID, &e.EventType, &e.ReceivedAt,
		&status, &processedAt, &errText, &tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	e.ProcessingStatus = domain.WebhookProcessingStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}
	e.Error = errText.String
	e.TenantID = tenantID.String
	return &e, nil
}

// Insert 依赖 external_event_id 唯一索引仲裁并发重复投递：
// ON CONFLICT DO NOTHING 时 RETURNING 无行，即视为已处理
func (r *PostgresWebhookEventsRepository) Insert(ctx context.Context, e *domain.WebhookEvent) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO webhook_events (webhook_event_id, external_event_id, event_type, received_at, processing_status)
		 VALUES ($1::uuid, $2, $3, $4, $5)
		 ON CONFLICT (external_event_id) DO NOTHING
		 RETURNING webhook_event_id::text`,
		e.EventID, e.ExternalEventID, e.EventType, e.ReceivedAt, string(e.ProcessingStatus),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return true, nil
}

func (r *PostgresWebhookEventsRepository) UpdateStatus(ctx context.Context, e *domain.WebhookEvent) error {
	var processedAt sql.NullTime
	if e.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *e.ProcessedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events
		 SET processing_status = $2, processed_at = $3, error = $4, tenant_id = NULLIF($5, '')::uuid
		 WHERE webhook_event_id = $1::uuid`,
		e.EventID, string(e.ProcessingStatus), processedAt, nullString(e.Error), e.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	return requireOneRow(res, "webhook event")
}
