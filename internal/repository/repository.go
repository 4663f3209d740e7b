// Package repository declares the persistence contracts the service layer
// depends on. Implementations live in the postgres and redis subpackages.
package repository

import (
	"context"
	"time"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

// CouponFilter narrows ListCoupons. Nil fields are not filtered on.
type CouponFilter struct {
	IsActive *bool
	IsPublic *bool
	Type     *domain.DiscountType
	Page     int
	PerPage  int
}

type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)
	// GetByCode expects a normalized code.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context, filter CouponFilter) ([]domain.Coupon, int, error)
	// ListPublic returns active public coupons whose window contains now.
	ListPublic(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	// ListCodes returns every stored code, for warming the code index.
	ListCodes(ctx context.Context) ([]string, error)
	Update(ctx context.Context, coupon *domain.Coupon) error
}

// UsageRepository tracks redemptions and owns the usage-count guard.
type UsageRepository interface {
	// CountByUser counts the user's redemptions of a coupon still in effect.
	CountByUser(ctx context.Context, couponID, userID string) (int, error)
	// CountOrdersByUser counts distinct orders on which the user redeemed any
	// coupon. Orders placed without a coupon are not recorded here, so this
	// is a lower bound on the user's order history.
	CountOrdersByUser(ctx context.Context, userID string) (int, error)
	// Redeem increments the coupon's usage count only while it is below the
	// limit and records usage in the same transaction. It returns a
	// Conflict error when the limit was already reached.
	Redeem(ctx context.Context, usage *domain.CouponUsage) error
	// ReleaseByOrder marks the order's redemptions released and gives the
	// uses back. Already released rows are ignored.
	ReleaseByOrder(ctx context.Context, orderID string) ([]domain.CouponUsage, error)
}

// AutomaticDiscountFilter narrows ListAutomaticDiscounts.
type AutomaticDiscountFilter struct {
	IsActive *bool
	Page     int
	PerPage  int
}

type AutomaticDiscountRepository interface {
	Create(ctx context.Context, d *domain.AutomaticDiscount) error
	GetByID(ctx context.Context, id string) (*domain.AutomaticDiscount, error)
	List(ctx context.Context, filter AutomaticDiscountFilter) ([]domain.AutomaticDiscount, int, error)
	// ListActive returns active discounts whose window contains now.
	ListActive(ctx context.Context, now time.Time) ([]domain.AutomaticDiscount, error)
	Update(ctx context.Context, d *domain.AutomaticDiscount) error
}

// CouponCache is a read-through cache of coupons keyed by code. Get returns
// (nil, nil) on a miss.
type CouponCache interface {
	Get(ctx context.Context, code string) (*domain.Coupon, error)
	Set(ctx context.Context, coupon *domain.Coupon) error
	Delete(ctx context.Context, code string) error
}
