package domain

import "time"

// StorefrontStatus 店铺发布状态
type StorefrontStatus string

const (
	StorefrontDraft StorefrontStatus = "Draft"
	StorefrontLive  StorefrontStatus = "Live"
)

// StorefrontConfig 店铺配置，与 Tenant 一对一
type StorefrontConfig struct {
	ConfigID    string           `db:"config_id"`
	TenantID    string           `db:"tenant_id"`
	StoreName   string           `db:"store_name"`
	Subdomain   string           `db:"subdomain"` // empty until chosen
	Currency    string           `db:"currency"`  // ISO 4217, upper case
	Locale      string           `db:"locale"`
	Theme       string           `db:"theme"`
	Status      StorefrontStatus `db:"status"`
	PublishedAt *time.Time       `db:"published_at"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
}

// IsLive reports whether the storefront accepts checkouts.
func (c *StorefrontConfig) IsLive() bool {
	return c != nil && c.Status == StorefrontLive
}
