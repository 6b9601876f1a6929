package repository

import (
	"context"

	"storefront/internal/domain"
)

// CatalogRepository read-only catalog access used by checkout
type CatalogRepository interface {
	// GetVariantsByIDs returns the variants among ids that belong to tenantID.
	// Missing ids are simply absent from the result.
	GetVariantsByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Variant, error)
}
