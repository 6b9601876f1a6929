package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
)

// PostgresTenantsRepository 租户目录实现
type PostgresTenantsRepository struct {
	db DBTX
}

// NewPostgresTenantsRepository 创建租户Repository
func NewPostgresTenantsRepository(db DBTX) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db}
}

var _ TenantsRepository = (*PostgresTenantsRepository)(nil)

// FindActiveDomainByHostname 根据 hostname 查找 active 绑定（用于域名路由）
func (r *PostgresTenantsRepository) FindActiveDomainByHostname(ctx context.Context, hostname string) (string, error) {
	if hostname == "" {
		return "", fmt.Errorf("hostname is required")
	}
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT d.tenant_id::text
		 FROM domains d
		 JOIN tenants t ON t.tenant_id = d.tenant_id
		 WHERE lower(d.hostname) = $1 AND d.is_active = TRUE AND t.is_active = TRUE
		 LIMIT 1`,
		hostname,
	).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to find domain by hostname: %w", err)
	}
	return tenantID, nil
}

// GetTenant 根据tenant_id获取租户信息
func (r *PostgresTenantsRepository) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	var t domain.Tenant
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id::text, name, slug, is_active, created_at, updated_at
		 FROM tenants
		 WHERE tenant_id = $1::uuid`,
		tenantID,
	).Scan(&t.TenantID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (r *PostgresTenantsRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE slug = $1)`, slug,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// CreateTenant 创建租户及店铺配置（调用方负责事务）
func (r *PostgresTenantsRepository) CreateTenant(ctx context.Context, tenant *domain.Tenant, cfg *domain.StorefrontConfig) error {
	if tenant == nil || cfg == nil {
		return fmt.Errorf("tenant and storefront config are required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (tenant_id, name, slug, is_active, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
		tenant.TenantID, tenant.Name, tenant.Slug, tenant.IsActive, tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slug %q already exists: %w", tenant.Slug, ErrConflict)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO storefront_configs
		   (config_id, tenant_id, store_name, subdomain, currency, locale, theme, status, created_at, updated_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cfg.ConfigID, cfg.TenantID, cfg.StoreName, cfg.Subdomain, cfg.Currency, cfg.Locale, cfg.Theme,
		string(cfg.Status), cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create storefront config: %w", err)
	}
	return nil
}

// GetStorefrontConfig 获取店铺配置
func (r *PostgresTenantsRepository) GetStorefrontConfig(ctx context.Context, tenantID string) (*domain.StorefrontConfig, error) {
	var c domain.StorefrontConfig
	var status string
	var publishedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT config_id::text, tenant_id::text, store_name, subdomain, currency, locale, theme,
		        status, published_at, created_at, updated_at
		 FROM storefront_configs
		 WHERE tenant_id = $1::uuid`,
		tenantID,
	).Scan(&c.ConfigID, &c.TenantID, &c.StoreName, &c.Subdomain, &c.Currency, &c.Locale, &c.Theme,
		&status, &publishedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get storefront config: %w", err)
	}
	c.Status = domain.StorefrontStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	return &c, nil
}

// UpdateStorefrontConfig 更新可编辑字段（不修改 status / published_at）
func (r *PostgresTenantsRepository) UpdateStorefrontConfig(ctx context.Context, cfg *domain.StorefrontConfig) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE storefront_configs
		 SET store_name = $2, subdomain = $3, currency = $4, locale = $5, theme = $6, updated_at = $7
		 WHERE tenant_id = $1::uuid`,
		cfg.TenantID, cfg.StoreName, cfg.Subdomain, cfg.Currency, cfg.Locale, cfg.Theme, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update storefront config: %w", err)
	}
	return requireOneRow(res, "storefront config")
}

// MarkPublished Draft → Live
func (r *PostgresTenantsRepository) MarkPublished(ctx context.Context, tenantID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE storefront_configs
		 SET status = $2, published_at = $3, updated_at = $3
		 WHERE tenant_id = $1::uuid AND status = $4`,
		tenantID, string(domain.StorefrontLive), at, string(domain.StorefrontDraft),
	)
	if err != nil {
		return fmt.Errorf("failed to publish storefront: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storefront %s is not in draft status: %w", tenantID, ErrConflict)
	}
	return nil
}

// CreateDomain 创建域名绑定
func (r *PostgresTenantsRepository) CreateDomain(ctx context.Context, b *domain.DomainBinding) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO domains (domain_id, tenant_id, hostname, is_active, created_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)`,
		b.DomainID, b.TenantID, b.Hostname, b.IsActive, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("hostname %q already bound: %w", b.Hostname, ErrConflict)
		}
		return fmt.Errorf("failed to create domain: %w", err)
	}
	return nil
}

func (r *PostgresTenantsRepository) FindDomain(ctx context.Context, tenantID, hostname string) (*domain.DomainBinding, error) {
	var b domain.DomainBinding
	err := r.db.QueryRowContext(ctx,
		`SELECT domain_id::text, tenant_id::text, hostname, is_active, created_at
		 FROM domains
		 WHERE tenant_id = $1::uuid AND lower(hostname) = $2`,
		tenantID, hostname,
	).Scan(&b.DomainID, &b.TenantID, &b.Hostname, &b.IsActive, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find domain: %w", err)
	}
	return &b, nil
}

func (r *PostgresTenantsRepository) ListDomains(ctx context.Context, tenantID string) ([]domain.DomainBinding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain_id::text, tenant_id::text, hostname, is_active, created_at
		 FROM domains
		 WHERE tenant_id = $1::uuid
		 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	out := []domain.DomainBinding{}
	for rows.Next() {
		var b domain.DomainBinding
		if err := rows.Scan(&b.DomainID, &b.TenantID, &b.Hostname, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domains: %w", err)
	}
	return out, nil
}

func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
