package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// OrderStatusNotification 订单状态变更通知
type OrderStatusNotification struct {
	OrderID  string `json:"order_id"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
	EventID  string `json:"event_id"`
}

// OrderNotifier best-effort 订单状态通知（失败只记录日志）
type OrderNotifier interface {
	NotifyOrderStatus(ctx context.Context, n OrderStatusNotification)
}

// Publisher MQTT 发布端（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTOrderNotifier 发布到 <prefix>/<tenant_id>/orders/<order_id>
type MQTTOrderNotifier struct {
	publisher   Publisher
	topicPrefix string
	logger      *zap.Logger
}

func NewMQTTOrderNotifier(publisher Publisher, topicPrefix string, logger *zap.Logger) *MQTTOrderNotifier {
	return &MQTTOrderNotifier{
		publisher:   publisher,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		logger:      logger,
	}
}

func (n *MQTTOrderNotifier) Topic(tenantID, orderID string) string {
	return n.topicPrefix + "/" + tenantID + "/orders/" + orderID
}

func (n *MQTTOrderNotifier) NotifyOrderStatus(_ context.Context, msg OrderStatusNotification) {
	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("Failed to marshal order notification", zap.Error(err))
		return
	}
	topic := n.Topic(msg.TenantID, msg.OrderID)
	if err := n.publisher.Publish(topic, false, payload); err != nil {
		n.logger.Warn("Failed to publish order notification",
			zap.String("topic", topic),
			zap.String("order_id", msg.OrderID),
			zap.Error(err),
		)
		return
	}
	n.logger.Debug("Order notification published", zap.String("topic", topic))
}
