package service

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTenantCacheTTL hostname 缓存的兜底过期时间（主要一致性依赖写时失效）
const DefaultTenantCacheTTL = 30 * time.Minute

// TenantDirectory 权威的 hostname → tenant 绑定来源
type TenantDirectory interface {
	FindActiveDomainByHostname(ctx context.Context, hostname string) (string, error)
}

// TenantResolver 解析 Host → tenant_id，带 KV 缓存
type TenantResolver struct {
	directory TenantDirectory
	cache     store.KV
	ttl       time.Duration
	logger    *zap.Logger
}

func NewTenantResolver(directory TenantDirectory, cache store.KV, ttl time.Duration, logger *zap.Logger) *TenantResolver {
	if ttl <= 0 {
		ttl = DefaultTenantCacheTTL
	}
	return &TenantResolver{directory: directory, cache: cache, ttl: ttl, logger: logger}
}

// NormalizeHostname lowercases host, strips any port and a trailing dot.
func NormalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

func tenantCacheKey(hostname string) string {
	return "tenant:hostname:" + hostname
}

// Resolve returns the tenant bound to host. Lookup failures are logged and
// reported as not found; only positive results are cached.
func (r *TenantResolver) Resolve(ctx context.Context, host string) (string, bool) {
	hostname := NormalizeHostname(host)
	if hostname == "" {
		return "", false
	}
	key := tenantCacheKey(hostname)

	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if _, perr := uuid.Parse(cached); perr == nil {
			metrics.TenantCacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, true
		}
		r.logger.Warn("Discarding malformed tenant cache entry",
			zap.String("hostname", hostname), zap.String("value", cached))
	case errors.Is(err, store.ErrMiss):
	default:
		metrics.TenantCacheLookupsTotal.WithLabelValues("cache_error").Inc()
		r.logger.Warn("Tenant cache read failed, falling back to directory",
			zap.String("hostname", hostname), zap.Error(err))
	}

	tenantID, err := r.directory.FindActiveDomainByHostname(ctx, hostname)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.TenantCacheLookupsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.TenantCacheLookupsTotal.WithLabelValues("directory_error").Inc()
			r.logger.Error("Tenant directory lookup failed",
				zap.String("hostname", hostname), zap.Error(err))
		}
		return "", false
	}

	metrics.TenantCacheLookupsTotal.WithLabelValues("miss").Inc()
	if err := r.cache.Set(ctx, key, tenantID, r.ttl); err != nil {
		r.logger.Warn("Tenant cache write failed",
			zap.String("hostname", hostname), zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return tenantID, true
}

// Invalidate evicts the cache entries of the given hosts.
func (r *TenantResolver) Invalidate(ctx context.Context, hosts ...string) error {
	keys := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if hostname := NormalizeHostname(h); hostname != "" {
			keys = append(keys, tenantCacheKey(hostname))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		return err
	}
	r.logger.Debug("Invalidated tenant cache entries", zap.Strings("keys", keys))
	return nil
}
