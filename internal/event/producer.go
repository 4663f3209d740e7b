// Package event publishes coupon domain events and consumes order events.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	pkgkafka "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/kafka"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/logger"
)

// Kafka topics produced by the coupon service.
var (
	TopicCouponCreated            = pkgkafka.Topic("coupon", "created")
	TopicCouponUpdated            = pkgkafka.Topic("coupon", "updated")
	TopicCouponRedeemed           = pkgkafka.Topic("coupon", "redeemed")
	TopicCouponRedemptionReleased = pkgkafka.Topic("coupon", "redemption_released")
)

const (
	AggregateTypeCoupon = "coupon"
	SourceCouponService = "coupon-service"
)

type CouponData struct {
	ID         string              `json:"id"`
	Code       string              `json:"code"`
	Name       string              `json:"name"`
	Type       domain.DiscountType `json:"type"`
	Value      decimal.Decimal     `json:"value"`
	IsActive   bool                `json:"is_active"`
	IsPublic   bool                `json:"is_public"`
	ValidFrom  time.Time           `json:"valid_from"`
	ValidUntil time.Time           `json:"valid_until"`
	UsageLimit *int                `json:"usage_limit,omitempty"`
}

type RedemptionData struct {
	UsageID        string          `json:"usage_id"`
	CouponID       string          `json:"coupon_id"`
	Code           string          `json:"code,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	OrderID        string          `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes coupon events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func couponData(c *domain.Coupon) CouponData {
	return CouponData{
		ID:         c.ID,
		Code:       c.Code,
		Name:       c.Name,
		Type:       c.Type,
		Value:      c.Value,
		IsActive:   c.IsActive,
		IsPublic:   c.IsPublic,
		ValidFrom:  c.ValidFrom,
		ValidUntil: c.ValidUntil,
		UsageLimit: c.UsageLimit,
	}
}

func (p *Producer) PublishCouponCreated(ctx context.Context, c *domain.Coupon) error {
	return p.publish(ctx, TopicCouponCreated, c.ID, couponData(c))
}

func (p *Producer) PublishCouponUpdated(ctx context.Context, c *domain.Coupon) error {
	return p.publish(ctx, TopicCouponUpdated, c.ID, couponData(c))
}

func (p *Producer) PublishCouponRedeemed(ctx context.Context, code string, u *domain.CouponUsage) error {
	return p.publish(ctx, TopicCouponRedeemed, u.CouponID, redemptionData(code, u))
}

func (p *Producer) PublishRedemptionReleased(ctx context.Context, u *domain.CouponUsage) error {
	return p.publish(ctx, TopicCouponRedemptionReleased, u.CouponID, redemptionData("", u))
}

func redemptionData(code string, u *domain.CouponUsage) RedemptionData {
	return RedemptionData{
		UsageID:        u.ID,
		CouponID:       u.CouponID,
		Code:           code,
		UserID:         u.UserID,
		OrderID:        u.OrderID,
		DiscountAmount: u.DiscountAmount,
		OriginalAmount: u.OriginalAmount,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeCoupon, SourceCouponService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if id := logger.UserIDFromContext(ctx); id != "" {
		event.WithMetadata("actor_id", id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published coupon event",
		slog.String("topic", topic),
		slog.String("coupon_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}
