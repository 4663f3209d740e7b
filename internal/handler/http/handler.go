// Package http exposes the coupon service over a JSON REST API.
package http

import (
	"context"
	"net/http"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/service"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// CouponService is implemented by *service.CouponService.
type CouponService interface {
	CreateCoupon(ctx context.Context, in *service.CreateCouponInput) (*domain.Coupon, error)
	GetCoupon(ctx context.Context, id string) (*domain.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	ListCoupons(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error)
	ListPublicCoupons(ctx context.Context) ([]domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id string, in *service.UpdateCouponInput) (*domain.Coupon, error)
	DeactivateCoupon(ctx context.Context, id string) (*domain.Coupon, error)
}

// RedemptionService is implemented by *service.RedemptionService.
type RedemptionService interface {
	ValidateCoupon(ctx context.Context, code string, cart domain.Cart, userID string) (domain.DiscountResult, error)
	RedeemCoupon(ctx context.Context, in *service.RedeemInput) (*service.Redemption, error)
}

// AutomaticDiscountService is implemented by *service.AutomaticDiscountService.
type AutomaticDiscountService interface {
	CreateAutomaticDiscount(ctx context.Context, in *service.CreateAutomaticDiscountInput) (*domain.AutomaticDiscount, error)
	GetAutomaticDiscount(ctx context.Context, id string) (*domain.AutomaticDiscount, error)
	ListAutomaticDiscounts(ctx context.Context, filter repository.AutomaticDiscountFilter) ([]domain.AutomaticDiscount, int, error)
	UpdateAutomaticDiscount(ctx context.Context, id string, in *service.UpdateAutomaticDiscountInput) (*domain.AutomaticDiscount, error)
	DeactivateAutomaticDiscount(ctx context.Context, id string) (*domain.AutomaticDiscount, error)
	ApplyAutomaticDiscounts(ctx context.Context, cart domain.Cart, userID string) (engine.StackResult, error)
}

// shopperID prefers the authenticated caller. Anonymous requests fall back
// to the id in the body, then to the id forwarded by the gateway.
func shopperID(r *http.Request, fromBody string) string {
	if id := middleware.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(middleware.UserHeader)
}

func parseBoolQuery(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}
