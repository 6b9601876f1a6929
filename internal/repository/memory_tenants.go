package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/internal/domain"
)

type memoryTenants struct {
	s    *MemoryStore
	inTx bool
}

func (r *memoryTenants) FindActiveDomainByHostname(_ context.Context, hostname string) (string, error) {
	var tenantID string
	err := r.s.view(r.inTx, func(d *memoryData) error {
		b, ok := d.domains[strings.ToLower(hostname)]
		if !ok || !b.IsActive {
			return ErrNotFound
		}
		if t, ok := d.tenants[b.TenantID]; !ok || !t.IsActive {
			return ErrNotFound
		}
		tenantID = b.TenantID
		return nil
	})
	return tenantID, err
}

func (r *memoryTenants) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	var out *domain.Tenant
	err := r.s.view(r.inTx, func(d *memoryData) error {
		t, ok := d.tenants[tenantID]
		if !ok {
			return ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *memoryTenants) SlugExists(_ context.Context, slug string) (bool, error) {
	exists := false
	_ = r.s.view(r.inTx, func(d *memoryData) error {
		for _, t := range d.tenants {
			if t.Slug == slug {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, nil
}

func (r *memoryTenants) CreateTenant(_ context.Context, tenant *domain.Tenant, cfg *domain.StorefrontConfig) error {
	if tenant == nil || cfg == nil {
		return fmt.Errorf("tenant and storefront config are required")
	}
	return r.s.view(r.inTx, func(d *memoryData) error {
		for _, t := range d.tenants {
			if t.Slug == tenant.Slug {
				return fmt.Errorf("slug %q already exists: %w", tenant.Slug, ErrConflict)
			}
		}
		d.tenants[tenant.TenantID] = *tenant
		d.configs[tenant.TenantID] = *cfg
		return nil
	})
}

func (r *memoryTenants) GetStorefrontConfig(_ context.Context, tenantID string) (*domain.StorefrontConfig, error) {
	var out *domain.StorefrontConfig
	err := r.s.view(r.inTx, func(d *memoryData) error {
		c, ok := d.configs[tenantID]
		if !ok {
			return ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *memoryTenants) UpdateStorefrontConfig(_ context.Context, cfg *domain.StorefrontConfig) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		cur, ok := d.configs[cfg.TenantID]
		if !ok {
			return fmt.Errorf("storefront config: %w", ErrNotFound)
		}
		cur.StoreName = cfg.StoreName
		cur.Subdomain = cfg.Subdomain
		cur.Currency = cfg.Currency
		cur.Locale = cfg.Locale
		cur.Theme = cfg.Theme
		cur.UpdatedAt = cfg.UpdatedAt
		d.configs[cfg.TenantID] = cur
		return nil
	})
}

func (r *memoryTenants) MarkPublished(_ context.Context, tenantID string, at time.Time) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		cur, ok := d.configs[tenantID]
		if !ok || cur.Status != domain.StorefrontDraft {
			return fmt.Errorf("storefront %s is not in draft status: %w", tenantID, ErrConflict)
		}
		cur.Status = domain.StorefrontLive
		cur.PublishedAt = &at
		cur.UpdatedAt = at
		d.configs[tenantID] = cur
		return nil
	})
}

func (r *memoryTenants) CreateDomain(_ context.Context, b *domain.DomainBinding) error {
	return r.s.view(r.inTx, func(d *memoryData) error {
		key := strings.ToLower(b.Hostname)
		if _, ok := d.domains[key]; ok {
			return fmt.Errorf("hostname %q already bound: %w", b.Hostname, ErrConflict)
		}
		if _, ok := d.tenants[b.TenantID]; !ok {
			return fmt.Errorf("tenant %s: %w", b.TenantID, ErrNotFound)
		}
		d.domains[key] = *b
		return nil
	})
}

func (r *memoryTenants) FindDomain(_ context.Context, tenantID, hostname string) (*domain.DomainBinding, error) {
	var out *domain.DomainBinding
	err := r.s.view(r.inTx, func(d *memoryData) error {
		b, ok := d.domains[strings.ToLower(hostname)]
		if !ok || b.TenantID != tenantID {
			return ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *memoryTenants) ListDomains(_ context.Context, tenantID string) ([]domain.DomainBinding, error) {
	out := []domain.DomainBinding{}
	_ = r.s.view(r.inTx, func(d *memoryData) error {
		for _, b := range d.domains {
			if b.TenantID == tenantID {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
