package repository

import (
	"context"

	"storefront/internal/domain"
)

type memoryCatalog struct {
	s *MemoryStore
}

func (r *memoryCatalog) GetVariantsByIDs(_ context.Context, tenantID string, ids []string) ([]domain.Variant, error) {
	out := make([]domain.Variant, 0, len(ids))
	_ = r.s.view(false, func(d *memoryData) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if v, ok := d.variants[id]; ok && v.TenantID == tenantID {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, nil
}
