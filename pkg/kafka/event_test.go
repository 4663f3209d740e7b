package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.coupon.redeemed", Topic("coupon", "redeemed"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.order.canceled", DLQTopic(Topic("order", "canceled")))
}

func TestNewEvent(t *testing.T) {
	type payload struct {
		CouponID string `json:"coupon_id"`
		Code     string `json:"code"`
	}
	e, err := NewEvent("coupon.created", "c-1", "coupon", "coupon-service", payload{"c-1", "SAVE10"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, 1, e.Version)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, 2*time.Second)

	e.WithCorrelationID("corr-1").WithMetadata("actor", "admin")
	raw, err := e.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, back.EventID)
	assert.Equal(t, "corr-1", back.CorrelationID)
	assert.Equal(t, "admin", back.Metadata["actor"])

	var p payload
	require.NoError(t, back.UnmarshalData(&p))
	assert.Equal(t, "SAVE10", p.Code)
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	_, err := NewEvent("x", "a", "t", "s", make(chan int))
	assert.Error(t, err)
}

func TestUnmarshalEvent_Garbage(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}
