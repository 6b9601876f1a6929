package repository

import (
	"context"
	"fmt"

	"storefront/internal/domain"

	"github.com/lib/pq"
)

// PostgresCatalogRepository 只读商品规格查询
type PostgresCatalogRepository struct {
	db DBTX
}

func NewPostgresCatalogRepository(db DBTX) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)

// GetVariantsByIDs 按 tenant 范围批量读取规格（ids 须为合法 UUID）
func (r *PostgresCatalogRepository) GetVariantsByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Variant, error) {
	if len(ids) == 0 {
		return []domain.Variant{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT v.variant_id::text, v.tenant_id::text, v.product_id::text,
		        p.title, p.status, v.name, COALESCE(v.sku, ''), v.price_amount, v.currency
		 FROM product_variants v
		 JOIN products p ON p.product_id = v.product_id
		 WHERE v.tenant_id = $1::uuid AND v.variant_id = ANY($2::uuid[])`,
		tenantID, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	out := []domain.Variant{}
	for rows.Next() {
		var v domain.Variant
		var status string
		if err := rows.Scan(&v.VariantID, &v.TenantID, &v.ProductID,
			&v.ProductTitle, &status, &v.Name, &v.SKU, &v.PriceAmount, &v.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.ProductStatus = domain.ProductStatus(status)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variants: %w", err)
	}
	return out, nil
}
