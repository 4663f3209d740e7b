package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	pkgkafka "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/kafka"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/logger"
)

// --- mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

type mockReleaser struct {
	mock.Mock
}

func (m *mockReleaser) ReleaseRedemption(ctx context.Context, orderID string) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvent(t *testing.T, data any) *pkgkafka.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &pkgkafka.Event{
		EventID:   "evt-1",
		EventType: TopicOrderCanceled,
		Timestamp: time.Now().UTC(),
		Source:    "order-service",
		Data:      raw,
	}
}

// --- producer ---

func TestProducer_PublishCouponCreated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())
	c := &domain.Coupon{
		ID:   "c-1",
		Code: "SAVE10",
		Name: "Ten off",
		DiscountRule: domain.DiscountRule{
			Type:  domain.DiscountTypePercentage,
			Value: decimal.NewFromInt(10),
		},
	}

	pub.On("Publish", mock.Anything, TopicCouponCreated, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data CouponData
		if err := e.UnmarshalData(&data); err != nil {
			return false
		}
		return e.AggregateID == "c-1" &&
			e.AggregateType == AggregateTypeCoupon &&
			e.Source == SourceCouponService &&
			e.CorrelationID == "req-9" &&
			data.Code == "SAVE10" &&
			data.Value.Equal(decimal.NewFromInt(10))
	})).Return(nil).Once()

	ctx := logger.WithCorrelationID(context.Background(), "req-9")
	require.NoError(t, p.PublishCouponCreated(ctx, c))
	pub.AssertExpectations(t)
}

func TestProducer_PublishCouponRedeemed(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())
	u := &domain.CouponUsage{
		ID:             "u-1",
		CouponID:       "c-1",
		UserID:         "user-1",
		OrderID:        "order-1",
		DiscountAmount: decimal.RequireFromString("5.00"),
		OriginalAmount: decimal.RequireFromString("50.00"),
	}

	pub.On("Publish", mock.Anything, TopicCouponRedeemed, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data RedemptionData
		_ = e.UnmarshalData(&data)
		return data.Code == "SAVE10" && data.OrderID == "order-1" && data.DiscountAmount.Equal(decimal.NewFromInt(5))
	})).Return(nil).Once()

	require.NoError(t, p.PublishCouponRedeemed(context.Background(), "SAVE10", u))
	pub.AssertExpectations(t)
}

func TestProducer_StampsActor(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())

	pub.On("Publish", mock.Anything, TopicCouponUpdated, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return e.Metadata["actor_id"] == "admin-1"
	})).Return(nil).Once()

	ctx := logger.WithUserID(context.Background(), "admin-1")
	require.NoError(t, p.PublishCouponUpdated(ctx, &domain.Coupon{ID: "c-1", Code: "SAVE10"}))
	pub.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, newTestLogger())

	pub.On("Publish", mock.Anything, TopicCouponRedemptionReleased, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishRedemptionReleased(context.Background(), &domain.CouponUsage{CouponID: "c-1", OrderID: "o-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish ecommerce.coupon.redemption_released event")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "ecommerce.coupon.created", TopicCouponCreated)
	assert.Equal(t, "ecommerce.coupon.updated", TopicCouponUpdated)
	assert.Equal(t, "ecommerce.coupon.redeemed", TopicCouponRedeemed)
	assert.Equal(t, "ecommerce.order.canceled", TopicOrderCanceled)
}

// --- consumer ---

func TestConsumer_HandleOrderCanceled(t *testing.T) {
	svc := new(mockReleaser)
	c := NewConsumer(svc, newTestLogger())

	svc.On("ReleaseRedemption", mock.Anything, "order-1").Return(1, nil).Once()

	err := c.HandleOrderCanceled(context.Background(), newTestEvent(t, OrderCanceledData{OrderID: "order-1"}))
	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestConsumer_HandleOrderCanceled_ServiceError(t *testing.T) {
	svc := new(mockReleaser)
	c := NewConsumer(svc, newTestLogger())

	svc.On("ReleaseRedemption", mock.Anything, "order-1").Return(0, errors.New("db down"))

	err := c.HandleOrderCanceled(context.Background(), newTestEvent(t, OrderCanceledData{OrderID: "order-1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order-1")
}

func TestConsumer_HandleOrderCanceled_BadPayload(t *testing.T) {
	svc := new(mockReleaser)
	c := NewConsumer(svc, newTestLogger())

	bad := &pkgkafka.Event{EventID: "evt-2", Data: json.RawMessage(`"not an object"`)}
	assert.Error(t, c.HandleOrderCanceled(context.Background(), bad))

	missing := newTestEvent(t, OrderCanceledData{})
	assert.ErrorIs(t, c.HandleOrderCanceled(context.Background(), missing), errMissingOrderID)

	svc.AssertNotCalled(t, "ReleaseRedemption", mock.Anything, mock.Anything)
}

func TestConsumer_IdempotentRedelivery(t *testing.T) {
	svc := new(mockReleaser)
	c := NewConsumer(svc, newTestLogger())
	handler := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), c.HandleOrderCanceled, newTestLogger())

	svc.On("ReleaseRedemption", mock.Anything, "order-1").Return(1, nil).Once()

	evt := newTestEvent(t, OrderCanceledData{OrderID: "order-1"})
	require.NoError(t, handler(context.Background(), evt))
	require.NoError(t, handler(context.Background(), evt))
	svc.AssertNumberOfCalls(t, "ReleaseRedemption", 1)
}

type recordingIndex struct {
	codes []string
}

func (r *recordingIndex) Add(code string) { r.codes = append(r.codes, code) }

func TestIndexConsumer_HandleCouponCreated(t *testing.T) {
	idx := &recordingIndex{}
	c := NewIndexConsumer(idx, newTestLogger())

	evt := newTestEvent(t, CouponData{ID: "c-1", Code: "REMOTE-AB12"})
	require.NoError(t, c.HandleCouponCreated(context.Background(), evt))
	assert.Equal(t, []string{"REMOTE-AB12"}, idx.codes)
}

func TestIndexConsumer_HandleCouponCreated_BadPayload(t *testing.T) {
	idx := &recordingIndex{}
	c := NewIndexConsumer(idx, newTestLogger())

	bad := &pkgkafka.Event{EventID: "evt-3", Data: json.RawMessage(`[1,2]`)}
	assert.Error(t, c.HandleCouponCreated(context.Background(), bad))
	assert.ErrorIs(t, c.HandleCouponCreated(context.Background(), newTestEvent(t, CouponData{ID: "c-1"})), errMissingCode)
	assert.Empty(t, idx.codes)
}
