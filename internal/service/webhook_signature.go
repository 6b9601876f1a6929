package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultSignatureTolerance 签名时间戳允许的最大时长
const DefaultSignatureTolerance = webhook.DefaultTolerance

// ErrInvalidSignature 回调签名校验失败（唯一返回 4xx 的情况）
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature checks the Stripe-Signature header against payload.
// tolerance <= 0 disables the timestamp check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	var err error
	if tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(payload, header, secret)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// SignPayload builds a v1 signature header for payload, for tests and local replay.
func SignPayload(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
		Scheme:    "v1",
	})
	return signed.Header
}
