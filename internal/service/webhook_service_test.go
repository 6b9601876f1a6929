package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []OrderStatusNotification
}

func (n *recordingNotifier) NotifyOrderStatus(_ context.Context, msg OrderStatusNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

// failingAuditStore fails every audit append made inside a transaction.
type failingAuditStore struct {
	*repository.MemoryStore
}

func (s failingAuditStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.MemoryStore.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(failingAuditTx{tx})
	})
}

type failingAuditTx struct {
	repository.Tx
}

func (t failingAuditTx) AuditLogs() repository.AuditLogsRepository {
	return failingAuditLogs{t.Tx.AuditLogs()}
}

type failingAuditLogs struct {
	repository.AuditLogsRepository
}

func (failingAuditLogs) Append(context.Context, ...domain.AuditLog) error {
	return errors.New("audit storage unavailable")
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"data": map[string]any{"object": object},
	})
	require.NoError(t, err)
	return b
}

func sessionCompleted(t *testing.T, eventID, orderID, paymentIntent string) []byte {
	return eventPayload(t, eventID, "checkout.session.completed", map[string]any{
		"id":                  "cs_" + eventID,
		"object":              "checkout.session",
		"client_reference_id": orderID,
		"payment_intent":      paymentIntent,
		"metadata":            map[string]string{"tenant_id": acmeTenantID, "order_id": orderID},
	})
}

type webhookFixture struct {
	*checkoutFixture
	notifier *recordingNotifier
	webhooks *WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	f := newCheckoutFixture(t)
	n := &recordingNotifier{}
	return &webhookFixture{
		checkoutFixture: f,
		notifier:        n,
		webhooks:        NewWebhookService(f.store, testWebhookSecret, DefaultSignatureTolerance, n, zap.NewNop()),
	}
}

func (f *webhookFixture) pendingOrder(t *testing.T) string {
	t.Helper()
	resp, err := f.checkout.CreateCheckoutSession(context.Background(), CreateCheckoutSessionRequest{
		Hostname: acmeHost,
		Items:    []CartItem{{VariantID: variantEUR, Quantity: 2}},
	})
	require.NoError(t, err)
	return resp.OrderID
}

func (f *webhookFixture) deliver(t *testing.T, payload []byte) *WebhookResult {
	t.Helper()
	res, err := f.webhooks.HandleEvent(context.Background(), payload, SignPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	return res
}

func (f *webhookFixture) orderStatus(t *testing.T, orderID string) domain.OrderStatus {
	t.Helper()
	o, err := f.store.Orders().GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	return o.Status
}

func TestHandleEvent_DuplicateDeliveryAppliesOnce(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	orderID := f.pendingOrder(t)
	payload := sessionCompleted(t, "evt_abc", orderID, "pi_abc")

	first := f.deliver(t, payload)
	assert.Equal(t, WebhookOutcomeProcessed, first.Outcome)
	assert.Equal(t, domain.OrderPaid, f.orderStatus(t, orderID))

	evt, err := f.store.WebhookEvents().GetByExternalID(ctx, "evt_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookProcessed, evt.ProcessingStatus)
	assert.NotNil(t, evt.ProcessedAt)
	assert.Equal(t, acmeTenantID, evt.TenantID)

	paid, err := f.store.Orders().GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "cs_evt_abc", paid.CheckoutSessionID)
	assert.Equal(t, "pi_abc", paid.PaymentIntentID)

	ordersBefore, itemsBefore, eventsBefore, auditBefore := f.store.Counts()
	for i := 0; i < 3; i++ {
		again := f.deliver(t, payload)
		assert.Equal(t, WebhookOutcomeDuplicate, again.Outcome)
	}
	orders, items, events, audit := f.store.Counts()
	assert.Equal(t, ordersBefore, orders)
	assert.Equal(t, itemsBefore, items)
	assert.Equal(t, eventsBefore, events)
	assert.Equal(t, auditBefore, audit)

	after, err := f.store.Orders().GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, paid.UpdatedAt, after.UpdatedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, OrderStatusNotification{OrderID: orderID, TenantID: acmeTenantID, Status: "Paid", EventID: "evt_abc"}, f.notifier.sent[0])
}

func TestHandleEvent_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)
	payload := sessionCompleted(t, "evt_race", orderID, "pi_race")
	header := SignPayload(payload, testWebhookSecret, time.Now())

	var wg sync.WaitGroup
	outcomes := make(chan WebhookOutcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.webhooks.HandleEvent(context.Background(), payload, header)
			if err == nil {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	processed := 0
	total := 0
	for o := range outcomes {
		total++
		if o == WebhookOutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, WebhookOutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 8, total)
	assert.Equal(t, 1, processed)

	logs, err := f.store.AuditLogs().ListByEntity(context.Background(), "Order", orderID)
	require.NoError(t, err)
	transitions := 0
	for _, l := range logs {
		if l.Action == "StatusChange" {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
}

func TestHandleEvent_PaidOrderIgnoresPaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)

	f.deliver(t, sessionCompleted(t, "evt_paid", orderID, "pi_1"))
	require.Equal(t, domain.OrderPaid, f.orderStatus(t, orderID))

	res := f.deliver(t, eventPayload(t, "evt_failed", "payment_intent.payment_failed", map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": map[string]string{"tenant_id": acmeTenantID, "order_id": orderID},
	}))
	assert.Equal(t, WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, domain.OrderPaid, f.orderStatus(t, orderID))
}

func TestHandleEvent_PaymentFailedFromPending(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)

	f.deliver(t, eventPayload(t, "evt_async_failed", "checkout.session.async_payment_failed", map[string]any{
		"id":                  "cs_x",
		"object":              "checkout.session",
		"client_reference_id": orderID,
		"metadata":            map[string]string{"tenant_id": acmeTenantID},
	}))
	assert.Equal(t, domain.OrderFailed, f.orderStatus(t, orderID))
}

func TestHandleEvent_RefundFlow(t *testing.T) {
	f := newWebhookFixture(t)
	paidID := f.pendingOrder(t)
	pendingID := f.pendingOrder(t)

	f.deliver(t, sessionCompleted(t, "evt_pay", paidID, "pi_refund"))

	f.deliver(t, eventPayload(t, "evt_refund", "charge.refunded", map[string]any{
		"id":             "ch_1",
		"object":         "charge",
		"payment_intent": map[string]any{"id": "pi_refund", "object": "payment_intent"},
	}))
	assert.Equal(t, domain.OrderRefunded, f.orderStatus(t, paidID))

	// pending 订单没有 payment_intent，退款事件无匹配
	res := f.deliver(t, eventPayload(t, "evt_refund_unknown", "charge.refunded", map[string]any{
		"id":             "ch_2",
		"payment_intent": "pi_unknown",
	}))
	assert.Equal(t, WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, domain.OrderPending, f.orderStatus(t, pendingID))
}

func TestHandleEvent_InvalidSignatureNotRecorded(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)
	payload := sessionCompleted(t, "evt_forged", orderID, "pi_x")

	headers := []string{
		"",
		"garbage",
		SignPayload(payload, "whsec_wrong", time.Now()),
		SignPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)),
	}
	for _, h := range headers {
		_, err := f.webhooks.HandleEvent(context.Background(), payload, h)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", h)
	}

	_, err := f.store.WebhookEvents().GetByExternalID(context.Background(), "evt_forged")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, domain.OrderPending, f.orderStatus(t, orderID))
}

func TestHandleEvent_EffectFailureMarksLedgerFailed(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)
	f.webhooks = NewWebhookService(failingAuditStore{f.store}, testWebhookSecret, DefaultSignatureTolerance, f.notifier, zap.NewNop())

	res := f.deliver(t, sessionCompleted(t, "evt_boom", orderID, "pi_boom"))
	assert.Equal(t, WebhookOutcomeFailed, res.Outcome)

	// savepoint 回滚了状态变更
	assert.Equal(t, domain.OrderPending, f.orderStatus(t, orderID))
	evt, err := f.store.WebhookEvents().GetByExternalID(context.Background(), "evt_boom")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookFailed, evt.ProcessingStatus)
	assert.Contains(t, evt.Error, "audit storage unavailable")
	assert.Empty(t, f.notifier.sent)

	// 已记账的事件不再重试
	again := f.deliver(t, sessionCompleted(t, "evt_boom", orderID, "pi_boom"))
	assert.Equal(t, WebhookOutcomeDuplicate, again.Outcome)
}

func TestHandleEvent_NoEffectCases(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)

	cases := map[string][]byte{
		"evt_unhandled": eventPayload(t, "evt_unhandled", "customer.created", map[string]any{"id": "cus_1"}),
		"evt_bad_ref":   sessionCompleted(t, "evt_bad_ref", "not-a-uuid", "pi_x"),
		"evt_missing":   sessionCompleted(t, "evt_missing", "99999999-9999-4999-8999-999999999999", "pi_y"),
	}
	for id, payload := range cases {
		res := f.deliver(t, payload)
		assert.Equal(t, WebhookOutcomeProcessed, res.Outcome, id)

		evt, err := f.store.WebhookEvents().GetByExternalID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.WebhookProcessed, evt.ProcessingStatus, id)
	}
	assert.Equal(t, domain.OrderPending, f.orderStatus(t, orderID))
	assert.Empty(t, f.notifier.sent)
}

func TestHandleEvent_SignedPayloadWithoutIDIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type":"checkout.session.completed"}`)

	res := f.deliver(t, payload)
	assert.Equal(t, WebhookOutcomeIgnored, res.Outcome)
	_, _, events, _ := f.store.Counts()
	assert.Zero(t, events)
}

func TestHandleEvent_NonStringMetadataStillApplies(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)

	res := f.deliver(t, eventPayload(t, "evt_meta_num", "checkout.session.completed", map[string]any{
		"id":                  "cs_meta_num",
		"client_reference_id": orderID,
		"payment_intent":      "pi_meta_num",
		"metadata":            map[string]any{"tenant_id": acmeTenantID, "order_id": orderID, "attempt": 2},
	}))
	assert.Equal(t, WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, domain.OrderPaid, f.orderStatus(t, orderID))

	evt, err := f.store.WebhookEvents().GetByExternalID(context.Background(), "evt_meta_num")
	require.NoError(t, err)
	assert.Equal(t, acmeTenantID, evt.TenantID)
}

func TestHandleEvent_MalformedObjectRecordedAsFailed(t *testing.T) {
	f := newWebhookFixture(t)
	orderID := f.pendingOrder(t)
	payload := eventPayload(t, "evt_bad_object", "checkout.session.completed", map[string]any{
		"id":                  "cs_bad_object",
		"client_reference_id": 12345,
		"metadata":            map[string]any{"order_id": orderID},
	})

	res := f.deliver(t, payload)
	assert.Equal(t, WebhookOutcomeFailed, res.Outcome)
	assert.Equal(t, "evt_bad_object", res.EventID)

	evt, err := f.store.WebhookEvents().GetByExternalID(context.Background(), "evt_bad_object")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookFailed, evt.ProcessingStatus)
	assert.Contains(t, evt.Error, "malformed event object")
	require.NotNil(t, evt.ProcessedAt)
	assert.Equal(t, domain.OrderPending, f.orderStatus(t, orderID))
	assert.Empty(t, f.notifier.sent)

	again := f.deliver(t, payload)
	assert.Equal(t, WebhookOutcomeDuplicate, again.Outcome)
}

func TestGatewayEventObject(t *testing.T) {
	var evt gatewayEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"evt_1","type":"charge.refunded"}`), &evt))
	obj, err := evt.object()
	require.NoError(t, err)
	assert.Empty(t, obj.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"evt_2","type":"x","data":{"object":null}}`), &evt))
	_, err = evt.object()
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"evt_3","type":"x","data":"oops"}`), &evt))
	_, err = evt.object()
	assert.ErrorContains(t, err, "malformed event data")

	require.NoError(t, json.Unmarshal([]byte(`{"id":"evt_4","type":"x","data":{"object":{"metadata":{"a":"b","n":3,"ok":true}}}}`), &evt))
	obj, err = evt.object()
	require.NoError(t, err)
	assert.Equal(t, "b", obj.Metadata["a"])
	assert.Equal(t, "3", obj.Metadata["n"])
	assert.Equal(t, "true", obj.Metadata["ok"])
}

func TestParseEventKind(t *testing.T) {
	assert.Equal(t, EventCheckoutCompleted, ParseEventKind("checkout.session.completed"))
	assert.Equal(t, EventPaymentFailed, ParseEventKind("payment_intent.payment_failed"))
	assert.Equal(t, EventPaymentFailed, ParseEventKind("checkout.session.async_payment_failed"))
	assert.Equal(t, EventChargeRefunded, ParseEventKind("charge.refunded"))
	assert.Equal(t, EventUnhandled, ParseEventKind("invoice.paid"))
	assert.Equal(t, "unhandled", EventUnhandled.String())
}
