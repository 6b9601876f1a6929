package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/common/database"
	"storefront/common/logger"
	"storefront/common/mqtt"
	commonredis "storefront/common/redis"
	"storefront/internal/config"
	httpapi "storefront/internal/http"
	"storefront/internal/metrics"
	"storefront/internal/service"
	"storefront/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "storefront-api")
	defer log.Sync()

	metrics.Register()

	// Redis 不可用时仍使用该 client：缓存读写失败会回落到 Tenant Directory
	redisClient, err := commonredis.Connect(context.Background(), &cfg.Redis, 2*time.Second)
	if err != nil {
		log.Warn("Redis not reachable, tenant cache will fail open", zap.Error(err))
	}
	kv := store.NewRedisKV(redisClient)

	st, db, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}

	resolver := service.NewTenantResolver(st.Tenants(), kv, cfg.TenantCache.TTL, log)
	gateway := service.NewStripeGateway(cfg.Stripe.APIBaseURL, cfg.Stripe.SecretKey, log)

	var notifier service.OrderNotifier
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := mqtt.NewClient(&cfg.MQTT.MQTTConfig); err == nil {
			mqttClient = c
			notifier = service.NewMQTTOrderNotifier(mqttClient, cfg.MQTT.TopicPrefix, log)
			log.Info("Order status notifications enabled", zap.String("broker", cfg.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed, notifications disabled", zap.Error(err))
		}
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	checkout := service.NewCheckoutService(st, resolver, gateway, service.CheckoutURLs{
		Scheme:      cfg.Platform.StorefrontScheme,
		Port:        cfg.Platform.StorefrontPort,
		SuccessPath: cfg.Platform.CheckoutSuccessPath,
		CancelPath:  cfg.Platform.CheckoutCancelPath,
	}, log)
	provisioning := service.NewProvisioningService(st, resolver, cfg.Platform.BaseDomain, log)
	webhooks := service.NewWebhookService(st, cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance, notifier, log)
	orders := service.NewOrderAdminService(st, log)

	router := httpapi.NewRouter(log)
	router.RegisterStorefrontRoutes(httpapi.NewStorefrontHandler(checkout, log))
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(webhooks, log))
	router.RegisterAdminStoreRoutes(httpapi.NewAdminStoresHandler(provisioning, log))
	router.RegisterAdminOrderRoutes(httpapi.NewAdminOrdersHandler(orders, log))
	router.RegisterOpsRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = database.Close(db)
	}
}
