// Package service holds the coupon service's business operations: coupon
// and automatic discount administration, validation and redemption.
package service

import (
	"context"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/pagination"
)

const tracerName = "coupon-service/service"

// EventPublisher is implemented by *event.Producer.
type EventPublisher interface {
	PublishCouponCreated(ctx context.Context, c *domain.Coupon) error
	PublishCouponUpdated(ctx context.Context, c *domain.Coupon) error
	PublishCouponRedeemed(ctx context.Context, code string, u *domain.CouponUsage) error
	PublishRedemptionReleased(ctx context.Context, u *domain.CouponUsage) error
}

// CodeIndex is implemented by *codeindex.Index.
type CodeIndex interface {
	MayContain(code string) bool
	Add(code string)
}

// GroupResolver is implemented by *usergroup.Client.
type GroupResolver interface {
	Groups(ctx context.Context, userID string) ([]string, error)
}

// ReasonNotFound is returned as a validation result, not an error, so that
// unknown codes look the same as ineligible ones to shoppers.
const ReasonNotFound = "coupon not found"

func clampPage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = pagination.DefaultPerPage
	}
	return page, min(perPage, pagination.MaxPerPage)
}
