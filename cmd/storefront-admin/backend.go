package main

import (
	"context"
	"fmt"
	"time"

	"storefront/common/database"
	commonredis "storefront/common/redis"
	"storefront/internal/config"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/store"

	"go.uber.org/zap"
)

// backend 管理命令使用的存储与缓存
type backend struct {
	Store        repository.Store
	Provisioning *service.ProvisioningService
	Orders       *service.OrderAdminService
	// Migrate 应用内嵌 schema，返回执行的语句数
	Migrate func(ctx context.Context) (int, error)
	Close   func()
}

type backendFactory func() (*backend, error)

// postgresBackend 连接 Postgres 与 Redis；缓存失效走与 storefront-api 相同的 key
func postgresBackend(cfg *config.Config, log *zap.Logger) backendFactory {
	return func() (*backend, error) {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		redisClient, err := commonredis.Connect(context.Background(), &cfg.Redis, 2*time.Second)
		if err != nil {
			log.Warn("Redis not reachable, cached hostnames expire by TTL only", zap.Error(err))
		}

		st := repository.NewPostgresStore(db)
		resolver := service.NewTenantResolver(st.Tenants(), store.NewRedisKV(redisClient), cfg.TenantCache.TTL, log)
		return &backend{
			Store:        st,
			Provisioning: service.NewProvisioningService(st, resolver, cfg.Platform.BaseDomain, log),
			Orders:       service.NewOrderAdminService(st, log),
			Migrate: func(ctx context.Context) (int, error) {
				n, err := repository.ApplySchema(ctx, db)
				if err != nil {
					return n, fmt.Errorf("migrate: %w", err)
				}
				return n, nil
			},
			Close: func() {
				_ = redisClient.Close()
				_ = database.Close(db)
			},
		}, nil
	}
}
