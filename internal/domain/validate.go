package domain

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Validate checks the rule invariants enforced at creation and update time.
func (r *DiscountRule) Validate() error {
	if !IsValidDiscountType(r.Type) {
		names := lo.Map(ValidDiscountTypes(), func(t DiscountType, _ int) string { return string(t) })
		return apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q, must be one of: %s", r.Type, strings.Join(names, ", ")))
	}
	if r.Value.IsNegative() {
		return apperrors.InvalidInput("value must not be negative")
	}
	if r.Type == DiscountTypePercentage && r.Value.GreaterThan(hundred) {
		return apperrors.InvalidInput("percentage value must be between 0 and 100")
	}
	if r.MinOrderAmount != nil && r.MinOrderAmount.IsNegative() {
		return apperrors.InvalidInput("min order amount must not be negative")
	}
	if r.MaxDiscountAmount != nil && r.MaxDiscountAmount.IsNegative() {
		return apperrors.InvalidInput("max discount amount must not be negative")
	}
	if !r.ValidFrom.Before(r.ValidUntil) {
		return apperrors.InvalidInput("valid_from must be before valid_until")
	}
	if m, ok := r.Conditions.Malformed(); ok {
		return apperrors.InvalidInput(m.Err.Error())
	}

	if r.Type != DiscountTypeBuyXGetY {
		if r.BuyXGetY != nil {
			return apperrors.InvalidInput("buy_x_get_y rule is only allowed on buy_x_get_y discounts")
		}
		return nil
	}
	return r.BuyXGetY.validate()
}

func (b *BuyXGetYRule) validate() error {
	switch {
	case b == nil:
		return apperrors.InvalidInput("buy_x_get_y discounts require a buy_x_get_y rule")
	case b.BuyQuantity < 1 || b.GetQuantity < 1:
		return apperrors.InvalidInput("buy_quantity and get_quantity must be at least 1")
	case len(b.BuyProductIDs) == 0 && len(b.BuyCategoryIDs) == 0:
		return apperrors.InvalidInput("buy_x_get_y rule needs at least one buy product or category")
	case len(b.GetProductIDs) == 0 && len(b.GetCategoryIDs) == 0:
		return apperrors.InvalidInput("buy_x_get_y rule needs at least one get product or category")
	case !IsValidGetDiscountType(b.GetDiscountType):
		return apperrors.InvalidInput(fmt.Sprintf("invalid get_discount_type %q", b.GetDiscountType))
	case b.GetDiscountValue.IsNegative():
		return apperrors.InvalidInput("get_discount_value must not be negative")
	case b.GetDiscountType == GetDiscountPercentage && b.GetDiscountValue.GreaterThan(hundred):
		return apperrors.InvalidInput("get_discount_value percentage must be between 0 and 100")
	}
	return nil
}

// Validate checks coupon-level invariants on top of the rule's.
func (c *Coupon) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.InvalidInput("coupon name is required")
	}
	if c.Code == "" {
		return apperrors.InvalidInput("coupon code is required")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		return apperrors.InvalidInput("usage limit must be at least 1")
	}
	if c.UsageLimit != nil && c.UsageCount > *c.UsageLimit {
		return apperrors.InvalidInput("usage limit is below the current usage count")
	}
	if c.PerUserLimit < 1 {
		return apperrors.InvalidInput("per-user limit must be at least 1")
	}
	return c.DiscountRule.Validate()
}

func (d *AutomaticDiscount) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return apperrors.InvalidInput("automatic discount name is required")
	}
	return d.DiscountRule.Validate()
}
