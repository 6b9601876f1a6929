package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookOutcome 回调处理结果（均对应 200 响应）
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
)

// WebhookResult 回调处理结果
type WebhookResult struct {
	EventID   string         `json:"eventId,omitempty"`
	EventType string         `json:"eventType,omitempty"`
	Outcome   WebhookOutcome `json:"outcome"`
}

// WebhookService idempotent ingestion of payment gateway events
type WebhookService struct {
	store     repository.Store
	secret    string
	tolerance time.Duration
	notifier  OrderNotifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewWebhookService(store repository.Store, secret string, tolerance time.Duration, notifier OrderNotifier, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		store:     store,
		secret:    secret,
		tolerance: tolerance,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// appliedTransition 已提交的订单状态变更
type appliedTransition struct {
	orderID  string
	tenantID string
	status   domain.OrderStatus
}

// HandleEvent verifies, deduplicates and applies one gateway event.
// The returned error is ErrInvalidSignature (client error) or a storage
// failure that kept the ledger row from committing; every other path is
// reported through the ledger and a nil error.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	// 1. signature
	if err := VerifySignature(payload, signatureHeader, s.secret, s.tolerance); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, err
	}

	var evt gatewayEvent
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" || evt.Type == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", string(WebhookOutcomeIgnored)).Inc()
		s.logger.Warn("Ignoring signed webhook without event id or type", zap.Error(err))
		return &WebhookResult{Outcome: WebhookOutcomeIgnored}, nil
	}
	result := &WebhookResult{EventID: evt.ID, EventType: evt.Type}
	log := s.logger.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))
	// object 解析失败仍记账（标记 Failed），否则网关不会重发、事件丢失
	obj, objErr := evt.object()

	// 2. ledger hit
	if _, err := s.store.WebhookEvents().GetByExternalID(ctx, evt.ID); err == nil {
		log.Info("Event already processed, skipping")
		result.Outcome = WebhookOutcomeDuplicate
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(result.Outcome)).Inc()
		return result, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Warn("Ledger lookup failed, relying on insert arbitration", zap.Error(err))
	}

	// 3-5. ledger row and effects commit together
	var applied []appliedTransition
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		applied = nil
		record := &domain.WebhookEvent{
			EventID:          uuid.NewString(),
			ExternalEventID:  evt.ID,
			EventType:        evt.Type,
			ReceivedAt:       s.now(),
			ProcessingStatus: domain.WebhookReceived,
			TenantID:         metadataTenant(obj.Metadata),
		}
		inserted, err := tx.WebhookEvents().Insert(ctx, record)
		if err != nil {
			return err
		}
		if !inserted {
			result.Outcome = WebhookOutcomeDuplicate
			return nil
		}

		effectErr := objErr
		if effectErr == nil {
			effectErr = tx.Savepoint(ctx, "webhook_effects", func() error {
				var err error
				applied, err = s.dispatch(ctx, tx, evt.ID, evt.Type, obj, log)
				return err
			})
		}

		processedAt := s.now()
		record.ProcessedAt = &processedAt
		if effectErr != nil {
			applied = nil
			record.ProcessingStatus = domain.WebhookFailed
			record.Error = effectErr.Error()
			result.Outcome = WebhookOutcomeFailed
			log.Error("Failed to apply webhook event effects", zap.Error(effectErr))
		} else {
			record.ProcessingStatus = domain.WebhookProcessed
			result.Outcome = WebhookOutcomeProcessed
			if record.TenantID == "" && len(applied) > 0 {
				record.TenantID = applied[0].tenantID
			}
		}
		return tx.WebhookEvents().UpdateStatus(ctx, record)
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "error").Inc()
		log.Error("Failed to record webhook event", zap.Error(err))
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(result.Outcome)).Inc()
	if result.Outcome == WebhookOutcomeDuplicate {
		log.Info("Event already recorded by a concurrent delivery")
		return result, nil
	}

	if s.notifier != nil {
		for _, a := range applied {
			s.notifier.NotifyOrderStatus(ctx, OrderStatusNotification{
				OrderID:  a.orderID,
				TenantID: a.tenantID,
				Status:   string(a.status),
				EventID:  evt.ID,
			})
		}
	}
	return result, nil
}

// dispatch applies one event's effects; every supported kind is handled here.
func (s *WebhookService) dispatch(ctx context.Context, tx repository.Tx, eventID, eventType string, obj gatewayObject, log *zap.Logger) ([]appliedTransition, error) {
	switch ParseEventKind(eventType) {
	case EventCheckoutCompleted:
		orderID, ok := parseUUID(obj.ClientReferenceID)
		if !ok {
			log.Warn("Invalid or missing client_reference_id", zap.String("session_id", obj.ID))
			return nil, nil
		}
		order, err := s.loadOrder(ctx, tx, orderID, log)
		if order == nil || err != nil {
			return nil, err
		}
		return s.transition(ctx, tx, order, domain.OrderPaid, obj.ID, string(obj.PaymentIntent), eventID, log)

	case EventPaymentFailed:
		orderID, ok := parseUUID(obj.Metadata["order_id"])
		if !ok {
			orderID, ok = parseUUID(obj.ClientReferenceID)
		}
		if !ok {
			log.Warn("Payment failed event without order reference", zap.String("object_id", obj.ID))
			return nil, nil
		}
		order, err := s.loadOrder(ctx, tx, orderID, log)
		if order == nil || err != nil {
			return nil, err
		}
		return s.transition(ctx, tx, order, domain.OrderFailed, "", "", eventID, log)

	case EventChargeRefunded:
		pi := string(obj.PaymentIntent)
		if pi == "" {
			log.Warn("Refund event without payment_intent", zap.String("charge_id", obj.ID))
			return nil, nil
		}
		order, err := tx.Orders().FindOrderByPaymentIntent(ctx, pi)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Info("No order matches refunded payment intent", zap.String("payment_intent_id", pi))
				return nil, nil
			}
			return nil, err
		}
		return s.transition(ctx, tx, order, domain.OrderRefunded, "", "", eventID, log)

	case EventUnhandled:
		log.Info("Unhandled event type")
		return nil, nil
	}
	return nil, nil
}

func (s *WebhookService) loadOrder(ctx context.Context, tx repository.Tx, orderID string, log *zap.Logger) (*domain.Order, error) {
	order, err := tx.Orders().GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Order not found for event", zap.String("order_id", orderID))
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// transition applies order → to only from its single legal prior status.
func (s *WebhookService) transition(ctx context.Context, tx repository.Tx, order *domain.Order, to domain.OrderStatus,
	sessionID, paymentIntentID, eventID string, log *zap.Logger) ([]appliedTransition, error) {
	from, ok := domain.RequiredPriorStatus(to)
	if !ok || order.Status != from {
		log.Warn("Ignoring illegal order transition",
			zap.String("order_id", order.OrderID),
			zap.String("from", string(order.Status)),
			zap.String("to", string(to)),
		)
		return nil, nil
	}

	changed, err := tx.Orders().TransitionStatus(ctx, order.OrderID, from, to, sessionID, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Warn("Order status changed concurrently, transition not applied",
			zap.String("order_id", order.OrderID),
			zap.String("to", string(to)),
		)
		return nil, nil
	}

	newValues := map[string]any{"status": to, "eventId": eventID}
	if paymentIntentID != "" {
		newValues["paymentIntentId"] = paymentIntentID
	}
	if err := tx.AuditLogs().Append(ctx, newAudit(order.TenantID, "StatusChange", "Order", order.OrderID,
		map[string]any{"status": from}, newValues, s.now())); err != nil {
		return nil, err
	}

	log.Info("Order status updated",
		zap.String("order_id", order.OrderID),
		zap.String("tenant_id", order.TenantID),
		zap.String("status", string(to)),
	)
	return []appliedTransition{{orderID: order.OrderID, tenantID: order.TenantID, status: to}}, nil
}

func parseUUID(s string) (string, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func metadataTenant(md map[string]string) string {
	if id, ok := parseUUID(md["tenant_id"]); ok {
		return id
	}
	return ""
}
