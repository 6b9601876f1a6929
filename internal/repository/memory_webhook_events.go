package repository

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

type memoryWebhookEvents struct {
	s    *MemoryStore
	inTx bool
}

func (r *memoryWebhookEvents) GetByExternalID(_ context.Context, externalEventID string) (*domain.WebhookEvent, error) {
	var out *domain.WebhookEvent
	err := r.s.view(r.inTx, func(d *memoryData) error {
		e, ok := d.events[externalEventID]
		if !ok {
			return ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *memoryWebhookEvents) Insert(_ context.Context, event *domain.WebhookEvent) (bool, error) {
	inserted := false
	err := r.s.view(r.inTx, func(d *memoryData) error {
		if _, ok := d.events[event.ExternalEventID]; ok {
			return nil
		}
		d.events[event.ExternalEventID] = *event
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *memoryWebhookEvents) UpdateStatus(_ context.Context, event *domain.WebhookEvent) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		cur, ok := d.events[event.ExternalEventID]
		if !ok {
			return fmt.Errorf("webhook event %s: %w", event.ExternalEventID, ErrNotFound)
		}
		cur.ProcessingStatus = event.ProcessingStatus
		cur.ProcessedAt = event.ProcessedAt
		cur.Error = event.Error
		if event.TenantID != "" {
			cur.TenantID = event.TenantID
		}
		d.events[event.ExternalEventID] = cur
		return nil
	})
}
