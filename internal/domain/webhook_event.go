package domain

import "time"

// WebhookProcessingStatus 去重账本中事件的处理状态
type WebhookProcessingStatus string

const (
	WebhookReceived  WebhookProcessingStatus = "Received"
	WebhookProcessed WebhookProcessingStatus = "Processed"
	WebhookFailed    WebhookProcessingStatus = "Failed"
)

// WebhookEvent 支付网关事件去重记录，对应 webhook_events 表
// external_event_id 唯一索引；行的存在本身即阻止重复处理
type WebhookEvent struct {
	EventID          string                  `db:"webhook_event_id"`
	ExternalEventID  string                  `db:"external_event_id"`
	EventType        string                  `db:"event_type"`
	ReceivedAt       time.Time               `db:"received_at"`
	ProcessingStatus WebhookProcessingStatus `db:"processing_status"`
	ProcessedAt      *time.Time              `db:"processed_at"`
	Error            string                  `db:"error"`
	TenantID         string                  `db:"tenant_id"` // nullable
}
