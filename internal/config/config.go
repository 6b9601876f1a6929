package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "storefront/common/config"

	"gopkg.in/yaml.v3"
)

// Config storefront-api 配置
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	DBEnabled bool                     `yaml:"db_enabled"`
	Database  commoncfg.DatabaseConfig `yaml:"database"`
	Redis     commoncfg.RedisConfig    `yaml:"redis"`
	Log       struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Stripe      StripeConfig      `yaml:"stripe"`
	Platform    PlatformConfig    `yaml:"platform"`
	TenantCache TenantCacheConfig `yaml:"tenant_cache"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// StripeConfig 支付网关配置
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	APIBaseURL    string `yaml:"api_base_url"`
	// SignatureTolerance 签名时间戳允许的最大偏差
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
}

// PlatformConfig 平台/店铺 URL 配置
type PlatformConfig struct {
	BaseDomain          string `yaml:"base_domain"`
	StorefrontScheme    string `yaml:"storefront_scheme"`
	StorefrontPort      int    `yaml:"storefront_port"`
	CheckoutSuccessPath string `yaml:"checkout_success_path"`
	CheckoutCancelPath  string `yaml:"checkout_cancel_path"`
}

// TenantCacheConfig hostname → tenant 缓存配置
type TenantCacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// MQTTConfig 订单状态通知（默认关闭）
type MQTTConfig struct {
	commoncfg.MQTTConfig `yaml:",inline"`

	Enabled     bool   `yaml:"enabled"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Load 读取配置：默认值 → CONFIG_FILE(yaml) → 环境变量
func Load() *Config {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.DBEnabled = true
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "storefront",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,

		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
	cfg.Redis.Addr = "localhost:6379"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	cfg.Stripe.APIBaseURL = "https://api.stripe.com"
	cfg.Stripe.SignatureTolerance = 5 * time.Minute

	cfg.Platform.BaseDomain = "localtest.me"
	cfg.Platform.StorefrontScheme = "http"
	cfg.Platform.StorefrontPort = 5003
	cfg.Platform.CheckoutSuccessPath = "/checkout/success"
	cfg.Platform.CheckoutCancelPath = "/cart"

	cfg.TenantCache.TTL = 30 * time.Minute

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "storefront-api"
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "storefront"
	return cfg
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	if v := os.Getenv("DB_ENABLED"); v != "" {
		cfg.DBEnabled = v == "true"
	}
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Stripe.SecretKey = getEnv("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.Stripe.APIBaseURL = getEnv("STRIPE_API_BASE_URL", cfg.Stripe.APIBaseURL)
	cfg.Stripe.SignatureTolerance = parseDuration(os.Getenv("STRIPE_SIGNATURE_TOLERANCE"), cfg.Stripe.SignatureTolerance)

	cfg.Platform.BaseDomain = getEnv("PLATFORM_BASE_DOMAIN", cfg.Platform.BaseDomain)
	cfg.Platform.StorefrontScheme = getEnv("PLATFORM_STOREFRONT_SCHEME", cfg.Platform.StorefrontScheme)
	cfg.Platform.StorefrontPort = parseInt(os.Getenv("PLATFORM_STOREFRONT_PORT"), cfg.Platform.StorefrontPort)
	cfg.Platform.CheckoutSuccessPath = getEnv("PLATFORM_CHECKOUT_SUCCESS_PATH", cfg.Platform.CheckoutSuccessPath)
	cfg.Platform.CheckoutCancelPath = getEnv("PLATFORM_CHECKOUT_CANCEL_PATH", cfg.Platform.CheckoutCancelPath)

	cfg.TenantCache.TTL = parseDuration(os.Getenv("TENANT_CACHE_TTL"), cfg.TenantCache.TTL)

	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		cfg.MQTT.Enabled = v == "true"
	}
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
