package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 默认店铺配置
const (
	DefaultCurrency = "EUR"
	DefaultLocale   = "pt-PT"
	DefaultTheme    = "default"
)

const minSlugLength = 3

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,28}[a-z0-9]$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
	hostnamePattern  = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

	reservedSubdomains = map[string]bool{
		"admin": true, "api": true, "www": true, "app": true, "dashboard": true,
		"portal": true, "store": true, "shop": true, "mail": true, "ftp": true,
	}
)

// HostnameCache 由 provisioning 写操作同步失效
type HostnameCache interface {
	Invalidate(ctx context.Context, hosts ...string) error
}

// ProvisioningService 店铺开通：创建、配置、绑定域名、发布
type ProvisioningService struct {
	store      repository.Store
	cache      HostnameCache
	baseDomain string
	logger     *zap.Logger
	now        func() time.Time
}

func NewProvisioningService(store repository.Store, cache HostnameCache, baseDomain string, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{
		store:      store,
		cache:      cache,
		baseDomain: strings.ToLower(strings.TrimSpace(baseDomain)),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StoreResponse 店铺状态
type StoreResponse struct {
	TenantID string `json:"tenantId"`
	Slug     string `json:"slug,omitempty"`
	Status   string `json:"status"`
}

// CreateStore 创建租户 + Draft 店铺配置
func (s *ProvisioningService) CreateStore(ctx context.Context, storeName string) (*StoreResponse, error) {
	storeName = strings.TrimSpace(storeName)
	if storeName == "" {
		return nil, provisioningErr(CodeInvalidRequest, "storeName is required")
	}
	slug := Slugify(storeName)
	if len(slug) < minSlugLength {
		return nil, provisioningErr(CodeSlugTooShort, "store name %q yields slug %q, shorter than %d characters", storeName, slug, minSlugLength)
	}

	exists, err := s.store.Tenants().SlugExists(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		return nil, provisioningErr(CodeDuplicateSlug, "store name %q results in duplicate slug %q", storeName, slug)
	}

	now := s.now()
	tenant := &domain.Tenant{
		TenantID:  uuid.NewString(),
		Name:      storeName,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cfg := &domain.StorefrontConfig{
		ConfigID:  uuid.NewString(),
		TenantID:  tenant.TenantID,
		StoreName: storeName,
		Currency:  DefaultCurrency,
		Locale:    DefaultLocale,
		Theme:     DefaultTheme,
		Status:    domain.StorefrontDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Tenants().CreateTenant(ctx, tenant, cfg); err != nil {
			return err
		}
		return tx.AuditLogs().Append(ctx,
			newAudit(tenant.TenantID, "Create", "Tenant", tenant.TenantID, nil,
				map[string]any{"name": tenant.Name, "slug": tenant.Slug}, now),
			newAudit(tenant.TenantID, "Create", "StorefrontConfig", cfg.ConfigID, nil,
				map[string]any{"storeName": cfg.StoreName, "status": cfg.Status}, now),
		)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, provisioningErr(CodeDuplicateSlug, "store name %q results in duplicate slug %q", storeName, slug)
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	s.logger.Info("Store created",
		zap.String("tenant_id", tenant.TenantID),
		zap.String("slug", slug),
	)
	return &StoreResponse{TenantID: tenant.TenantID, Slug: slug, Status: string(cfg.Status)}, nil
}

// UpdateStoreConfigRequest 空字段不修改
type UpdateStoreConfigRequest struct {
	StoreName string `json:"storeName"`
	Currency  string `json:"currency"`
	Locale    string `json:"locale"`
	Theme     string `json:"theme"`
	Subdomain string `json:"subdomain"`
}

// UpdateStoreConfig 更新店铺配置，每个变更字段一条审计记录
func (s *ProvisioningService) UpdateStoreConfig(ctx context.Context, tenantID string, req UpdateStoreConfigRequest) (*StoreResponse, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, provisioningErr(CodeTenantNotFound, "store not found for tenant %s", tenantID)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency != "" && !currencyPattern.MatchString(currency) {
		return nil, provisioningErr(CodeInvalidCurrency, "currency %q must be a 3-letter ISO code", req.Currency)
	}
	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if subdomain != "" {
		if !subdomainPattern.MatchString(subdomain) {
			return nil, provisioningErr(CodeInvalidSubdomain, "subdomain %q must be 3-30 lowercase letters, digits or hyphens", req.Subdomain)
		}
		if reservedSubdomains[subdomain] {
			return nil, provisioningErr(CodeReservedSubdomain, "subdomain %q is reserved", subdomain)
		}
	}

	var (
		status     domain.StorefrontStatus
		hostnames  []string
		changed    []string
		oldSubHost string
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, err := tx.Tenants().GetStorefrontConfig(ctx, tenantID)
		if err != nil {
			return err
		}
		status = cfg.Status
		now := s.now()

		var audits []domain.AuditLog
		apply := func(field string, current *string, next string) {
			if next == "" || next == *current {
				return
			}
			audits = append(audits, newAudit(tenantID, "Update", "StorefrontConfig", cfg.ConfigID,
				map[string]any{field: *current}, map[string]any{field: next}, now))
			*current = next
			changed = append(changed, field)
		}
		if cfg.Subdomain != "" {
			oldSubHost = cfg.Subdomain + "." + s.baseDomain
		}
		apply("storeName", &cfg.StoreName, strings.TrimSpace(req.StoreName))
		apply("currency", &cfg.Currency, currency)
		apply("locale", &cfg.Locale, strings.TrimSpace(req.Locale))
		apply("theme", &cfg.Theme, strings.TrimSpace(req.Theme))
		apply("subdomain", &cfg.Subdomain, subdomain)
		if len(audits) == 0 {
			return nil
		}

		cfg.UpdatedAt = now
		if err := tx.Tenants().UpdateStorefrontConfig(ctx, cfg); err != nil {
			return err
		}
		if err := tx.AuditLogs().Append(ctx, audits...); err != nil {
			return err
		}

		bindings, err := tx.Tenants().ListDomains(ctx, tenantID)
		if err != nil {
			return err
		}
		for _, b := range bindings {
			hostnames = append(hostnames, b.Hostname)
		}
		if cfg.Subdomain != "" {
			hostnames = append(hostnames, cfg.Subdomain+"."+s.baseDomain)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, provisioningErr(CodeTenantNotFound, "store not found for tenant %s", tenantID)
		}
		return nil, fmt.Errorf("failed to update store config: %w", err)
	}

	if len(changed) > 0 {
		if oldSubHost != "" {
			hostnames = append(hostnames, oldSubHost)
		}
		s.invalidate(ctx, tenantID, hostnames...)
		s.logger.Info("Store config updated",
			zap.String("tenant_id", tenantID),
			zap.Strings("fields", changed),
		)
	}
	return &StoreResponse{TenantID: tenantID, Status: string(status)}, nil
}

// DomainResponse 域名绑定结果
type DomainResponse struct {
	DomainID string `json:"domainId"`
	TenantID string `json:"tenantId"`
	Hostname string `json:"hostname"`
	IsActive bool   `json:"isActive"`
}

// AddDomain 为租户绑定 hostname
func (s *ProvisioningService) AddDomain(ctx context.Context, tenantID, hostname string) (*DomainResponse, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, provisioningErr(CodeTenantNotFound, "tenant %s not found", tenantID)
	}
	hostname = NormalizeHostname(hostname)
	if hostname == "" || len(hostname) > 253 || !hostnamePattern.MatchString(hostname) {
		return nil, provisioningErr(CodeInvalidHostname, "hostname %q is not valid", hostname)
	}

	now := s.now()
	binding := &domain.DomainBinding{
		DomainID:  uuid.NewString(),
		TenantID:  tenantID,
		Hostname:  hostname,
		IsActive:  true,
		CreatedAt: now,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Tenants().GetTenant(ctx, tenantID); err != nil {
			return err
		}
		if err := tx.Tenants().CreateDomain(ctx, binding); err != nil {
			return err
		}
		return tx.AuditLogs().Append(ctx, newAudit(tenantID, "Create", "Domain", binding.DomainID, nil,
			map[string]any{"hostname": hostname}, now))
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, provisioningErr(CodeDuplicateHostname, "hostname %q is already bound", hostname)
		case errors.Is(err, repository.ErrNotFound):
			return nil, provisioningErr(CodeTenantNotFound, "tenant %s not found", tenantID)
		}
		return nil, fmt.Errorf("failed to add domain: %w", err)
	}

	s.invalidate(ctx, tenantID, hostname)
	s.logger.Info("Domain bound",
		zap.String("tenant_id", tenantID),
		zap.String("hostname", hostname),
	)
	return &DomainResponse{DomainID: binding.DomainID, TenantID: tenantID, Hostname: hostname, IsActive: true}, nil
}

// PublishStoreResponse 发布结果
type PublishStoreResponse struct {
	TenantID    string    `json:"tenantId"`
	Hostname    string    `json:"hostname"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PublishStore Draft → Live；要求 <subdomain>.<baseDomain> 已绑定
func (s *ProvisioningService) PublishStore(ctx context.Context, tenantID string) (*PublishStoreResponse, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, provisioningErr(CodeTenantNotFound, "store not found for tenant %s", tenantID)
	}

	var hostname string
	publishedAt := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, err := tx.Tenants().GetStorefrontConfig(ctx, tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return provisioningErr(CodeTenantNotFound, "store not found for tenant %s", tenantID)
			}
			return err
		}
		if cfg.Status != domain.StorefrontDraft {
			return provisioningErr(CodeAlreadyPublished, "store is not in draft status")
		}
		if cfg.Subdomain == "" {
			return provisioningErr(CodeSubdomainRequired, "subdomain must be set before publishing")
		}

		hostname = cfg.Subdomain + "." + s.baseDomain
		binding, err := tx.Tenants().FindDomain(ctx, tenantID, hostname)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return provisioningErr(CodeDomainNotBound, "domain %s not found, create it first", hostname)
			}
			return err
		}
		if !binding.IsActive {
			return provisioningErr(CodeDomainNotBound, "domain %s is not active", hostname)
		}

		if err := tx.Tenants().MarkPublished(ctx, tenantID, publishedAt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return provisioningErr(CodeAlreadyPublished, "store is not in draft status")
			}
			return err
		}
		return tx.AuditLogs().Append(ctx, newAudit(tenantID, "Publish", "StorefrontConfig", cfg.ConfigID,
			map[string]any{"status": domain.StorefrontDraft},
			map[string]any{"status": domain.StorefrontLive, "hostname": hostname}, publishedAt))
	})
	if err != nil {
		var perr *ProvisioningError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, fmt.Errorf("failed to publish store: %w", err)
	}

	s.invalidate(ctx, tenantID, hostname)
	s.logger.Info("Store published",
		zap.String("tenant_id", tenantID),
		zap.String("hostname", hostname),
	)
	return &PublishStoreResponse{
		TenantID:    tenantID,
		Hostname:    hostname,
		Status:      string(domain.StorefrontLive),
		PublishedAt: publishedAt,
	}, nil
}

// invalidate 提交后同步失效；缓存不可用时仅记录（TTL 兜底）
func (s *ProvisioningService) invalidate(ctx context.Context, tenantID string, hostnames ...string) {
	if s.cache == nil || len(hostnames) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, hostnames...); err != nil {
		s.logger.Error("Failed to invalidate tenant cache",
			zap.String("tenant_id", tenantID),
			zap.Strings("hostnames", hostnames),
			zap.Error(err),
		)
	}
}

func newAudit(tenantID, action, entity, entityID string, oldValues, newValues map[string]any, at time.Time) domain.AuditLog {
	return domain.AuditLog{
		AuditID:   uuid.NewString(),
		TenantID:  tenantID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		OldValues: marshalAudit(oldValues),
		NewValues: marshalAudit(newValues),
		CreatedAt: at,
	}
}

func marshalAudit(v map[string]any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
