package domain

import "time"

// Tenant 租户（一个独立店铺），对应 tenants 表
type Tenant struct {
	TenantID  string    `db:"tenant_id"` // UUID, PRIMARY KEY
	Name      string    `db:"name"`
	Slug      string    `db:"slug"` // UNIQUE, URL-safe
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DomainBinding hostname → tenant，对应 domains 表
// hostname 全局唯一，存储时已规范化（小写、无端口）
type DomainBinding struct {
	DomainID  string    `db:"domain_id"`
	TenantID  string    `db:"tenant_id"`
	Hostname  string    `db:"hostname"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}
