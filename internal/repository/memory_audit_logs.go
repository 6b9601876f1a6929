package repository

import (
	"context"

	"storefront/internal/domain"
)

type memoryAuditLogs struct {
	s    *MemoryStore
	inTx bool
}

func (r *memoryAuditLogs) Append(_ context.Context, entries ...domain.AuditLog) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		d.audit = append(d.audit, entries...)
		return nil
	})
}

func (r *memoryAuditLogs) ListByEntity(_ context.Context, entity, entityID string) ([]domain.AuditLog, error) {
	out := []domain.AuditLog{}
	_ = r.s.view(r.inTx, func(d *memoryData) error {
		for _, a := range d.audit {
			if a.Entity == entity && a.EntityID == entityID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, nil
}
