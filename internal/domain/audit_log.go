package domain

import (
	"encoding/json"
	"time"
)

// AuditLog 审计记录（只追加）
type AuditLog struct {
	AuditID   string          `db:"audit_id"`
	TenantID  string          `db:"tenant_id"` // nullable
	Action    string          `db:"action"`    // Create | Update | Publish | StatusChange
	Entity    string          `db:"entity"`    // Tenant | StorefrontConfig | Domain | Order
	EntityID  string          `db:"entity_id"`
	OldValues json.RawMessage `db:"old_values"`
	NewValues json.RawMessage `db:"new_values"`
	CreatedAt time.Time       `db:"created_at"`
}
