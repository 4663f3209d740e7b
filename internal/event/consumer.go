package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/kafka"
)

// TopicOrderCanceled is consumed to give coupon uses back.
var TopicOrderCanceled = pkgkafka.Topic("order", "canceled")

// RedemptionReleaser is the slice of the redemption service the consumer needs.
type RedemptionReleaser interface {
	ReleaseRedemption(ctx context.Context, orderID string) (int, error)
}

type OrderCanceledData struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// errMissingOrderID is permanent; retrying the event cannot fix it.
var errMissingOrderID = errors.New("order.canceled event has no order_id")

type Consumer struct {
	service RedemptionReleaser
	logger  *slog.Logger
}

func NewConsumer(service RedemptionReleaser, logger *slog.Logger) *Consumer {
	return &Consumer{service: service, logger: logger}
}

// HandleOrderCanceled releases every coupon redemption recorded on the order.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCanceledData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.canceled data: %w", err)
	}
	if data.OrderID == "" {
		return errMissingOrderID
	}

	released, err := c.service.ReleaseRedemption(ctx, data.OrderID)
	if err != nil {
		return fmt.Errorf("release redemptions for order %s: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "processed order.canceled event",
		slog.String("order_id", data.OrderID),
		slog.String("event_id", event.EventID),
		slog.Int("released", released),
	)
	return nil
}

// CodeIndexer is implemented by *codeindex.Index.
type CodeIndexer interface {
	Add(code string)
}

var errMissingCode = errors.New("coupon.created event has no code")

// IndexConsumer keeps this replica's code index in step with coupons
// created on other replicas.
type IndexConsumer struct {
	index  CodeIndexer
	logger *slog.Logger
}

func NewIndexConsumer(index CodeIndexer, logger *slog.Logger) *IndexConsumer {
	return &IndexConsumer{index: index, logger: logger}
}

func (c *IndexConsumer) HandleCouponCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data CouponData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal coupon.created data: %w", err)
	}
	if data.Code == "" {
		return errMissingCode
	}

	c.index.Add(data.Code)
	c.logger.DebugContext(ctx, "indexed coupon code",
		slog.String("code", data.Code),
		slog.String("event_id", event.EventID),
	)
	return nil
}
