package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"ping","data":{"seq":3},"timestamp":1700000000000}`))
	require.NoError(t, err)

	assert.Equal(t, MessageTypePing, msg.Type)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)

	var payload struct {
		Seq int `json:"seq"`
	}
	require.NoError(t, msg.Decode(&payload))
	assert.Equal(t, 3, payload.Seq)
}

func TestDecodeInbound_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"data":{}}`,
		"empty type":   `{"type":""}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(raw))
			require.Error(t, err)

			var domainErr *DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, ErrCodeInvalid, domainErr.Code)
		})
	}
}

func TestMessage_Scoping(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	base := NewMessage(MessageTypeOrderUpdate, map[string]int{"orderId": 1}, now)

	kitchen := base.ForKitchen(10)
	user := base.ForUser(5)

	assert.Equal(t, int64(1700000000123), base.Timestamp)
	assert.Nil(t, base.KitchenID, "ForKitchen must not mutate the receiver")
	require.NotNil(t, kitchen.KitchenID)
	assert.Equal(t, int64(10), *kitchen.KitchenID)
	require.NotNil(t, user.UserID)
	assert.Equal(t, int64(5), *user.UserID)
}
