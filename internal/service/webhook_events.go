package service

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventKind 支持的网关事件（其余归为 EventUnhandled）
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventCheckoutCompleted
	EventPaymentFailed
	EventChargeRefunded
)

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventPaymentFailed:
		return "payment_failed"
	case EventChargeRefunded:
		return "charge_refunded"
	default:
		return "unhandled"
	}
}

// ParseEventKind maps a gateway event type onto the supported kinds.
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "payment_intent.payment_failed", "checkout.session.async_payment_failed":
		return EventPaymentFailed
	case "charge.refunded":
		return EventChargeRefunded
	default:
		return EventUnhandled
	}
}

// gatewayEvent 回调事件外层；data 延后解析，外层 id/type 不受 object 内字段影响
type gatewayEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// object decodes data.object. A missing object yields the zero value.
func (e *gatewayEvent) object() (gatewayObject, error) {
	var obj gatewayObject
	if isEmptyJSON(e.Data) {
		return obj, nil
	}
	var data struct {
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return obj, fmt.Errorf("malformed event data: %w", err)
	}
	if isEmptyJSON(data.Object) {
		return obj, nil
	}
	if err := json.Unmarshal(data.Object, &obj); err != nil {
		return gatewayObject{}, fmt.Errorf("malformed event object: %w", err)
	}
	return obj, nil
}

func isEmptyJSON(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// gatewayObject covers the fields read from sessions, payment intents and charges.
type gatewayObject struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	ClientReferenceID string        `json:"client_reference_id"`
	PaymentIntent     expandableID  `json:"payment_intent"`
	Metadata          eventMetadata `json:"metadata"`
}

// eventMetadata 非字符串值保留原始 JSON 文本（{"attempt":2} → "2"）
type eventMetadata map[string]string

func (m *eventMetadata) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(eventMetadata, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(bytes.TrimSpace(v))
	}
	*m = out
	return nil
}

// expandableID accepts either "pi_123" or an expanded {"id":"pi_123",...}.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}
