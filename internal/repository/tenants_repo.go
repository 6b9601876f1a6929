package repository

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// TenantsRepository 租户目录（hostname → tenant 的权威来源）
type TenantsRepository interface {
	// FindActiveDomainByHostname 根据已规范化的 hostname 查找 active 绑定的 tenant_id
	// 未找到返回 ErrNotFound
	FindActiveDomainByHostname(ctx context.Context, hostname string) (string, error)

	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// CreateTenant 同时写入 tenant 与其 storefront config；slug 冲突返回 ErrConflict
	CreateTenant(ctx context.Context, tenant *domain.Tenant, cfg *domain.StorefrontConfig) error

	GetStorefrontConfig(ctx context.Context, tenantID string) (*domain.StorefrontConfig, error)
	UpdateStorefrontConfig(ctx context.Context, cfg *domain.StorefrontConfig) error

	// MarkPublished Draft → Live；config 不是 Draft 时返回 ErrConflict
	MarkPublished(ctx context.Context, tenantID string, at time.Time) error

	// CreateDomain hostname 冲突返回 ErrConflict
	CreateDomain(ctx context.Context, binding *domain.DomainBinding) error
	FindDomain(ctx context.Context, tenantID, hostname string) (*domain.DomainBinding, error)
	ListDomains(ctx context.Context, tenantID string) ([]domain.DomainBinding, error)
}
