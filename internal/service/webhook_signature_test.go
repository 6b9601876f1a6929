package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
	now := time.Now()
	valid := SignPayload(payload, "whsec_1", now.Add(-time.Minute))

	assert.NoError(t, VerifySignature(payload, valid, "whsec_1", 5*time.Minute))
	// 多个 v1 签名（密钥轮换）任一匹配即可
	assert.NoError(t, VerifySignature(payload, valid+",v1=deadbeef", "whsec_1", 5*time.Minute))

	stale := SignPayload(payload, "whsec_1", now.Add(-10*time.Minute))
	assert.NoError(t, VerifySignature(payload, stale, "whsec_1", 0))

	cases := map[string]struct {
		payload []byte
		header  string
		secret  string
	}{
		"tampered payload": {[]byte(`{"id":"evt_2"}`), valid, "whsec_1"},
		"wrong secret":     {payload, valid, "whsec_2"},
		"empty secret":     {payload, valid, ""},
		"stale timestamp":  {payload, stale, "whsec_1"},
		"missing v1":       {payload, "t=1760000000", "whsec_1"},
		"bad timestamp":    {payload, "t=abc,v1=00", "whsec_1"},
		"empty header":     {payload, "", "whsec_1"},
	}
	for name, tc := range cases {
		err := VerifySignature(tc.payload, tc.header, tc.secret, 5*time.Minute)
		assert.ErrorIs(t, err, ErrInvalidSignature, name)
	}
}
