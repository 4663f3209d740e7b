package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the discount an eligible rule grants on cart. The
// amount is capped by MaxDiscountAmount and clamped to [0, cart total].
// A misconfigured rule yields an invalid result with a zero discount.
func (e *Engine) Calculate(r *domain.DiscountRule, cart domain.Cart) domain.DiscountResult {
	total := cart.Amount()
	res := domain.DiscountResult{IsValid: true, DiscountType: r.Type}

	var raw decimal.Decimal
	switch r.Type {
	case domain.DiscountTypePercentage:
		raw = total.Mul(r.Value).Div(hundred)
	case domain.DiscountTypeFixedAmount:
		raw = r.Value
	case domain.DiscountTypeFreeShipping:
		// The shipping amount is unknown here; the caller zeroes it.
		raw = decimal.Zero
		res.FreeShipping = true
	case domain.DiscountTypeBuyXGetY:
		if r.BuyXGetYErr != nil {
			return e.failSafe(r, FaultInvalidBuyXGetY, slog.String("error", r.BuyXGetYErr.Error()))
		}
		if r.BuyXGetY == nil {
			return e.failSafe(r, FaultMissingBuyXGetY)
		}
		amount, allocs, err := e.AllocateBuyXGetY(r.BuyXGetY, cart)
		if err != nil {
			return e.failSafe(r, FaultInvalidBuyXGetY)
		}
		raw, res.Allocations = amount, allocs
	default:
		return e.failSafe(r, FaultUnknownType)
	}

	if r.MaxDiscountAmount != nil {
		raw = decimal.Min(raw, *r.MaxDiscountAmount)
	}
	res.DiscountAmount = clamp(raw, total)
	return res
}

// clamp bounds the result to [0, total]. Currency rounding is left to the
// caller.
func clamp(amount, total decimal.Decimal) decimal.Decimal {
	amount = decimal.Max(amount, decimal.Zero)
	return decimal.Min(amount, decimal.Max(total, decimal.Zero))
}

func (e *Engine) failSafe(r *domain.DiscountRule, kind string, attrs ...any) domain.DiscountResult {
	e.fault(kind, append([]any{slog.String("discount_type", string(r.Type))}, attrs...)...)
	res := domain.Invalid(ReasonMisconfigured)
	res.DiscountType = r.Type
	res.Fault = kind
	return res
}

// Apply runs Evaluate then Calculate for a coupon.
func (e *Engine) Apply(c *domain.Coupon, cart domain.Cart, u UserUsage) domain.DiscountResult {
	el := e.Evaluate(c, cart, e.Now(), u)
	if !el.Eligible {
		res := domain.Invalid(el.Reason)
		res.Fault = el.Fault
		return res
	}
	return e.Calculate(&c.DiscountRule, cart)
}
