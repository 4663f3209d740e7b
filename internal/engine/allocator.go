package engine

import (
	"errors"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

// ErrInvalidRule is returned for rules that cannot be allocated, such as a
// zero buy quantity or an unknown get discount type.
var ErrInvalidRule = errors.New("invalid buy-x-get-y rule")

// slot is a get-eligible line with the number of its units that may still
// be discounted.
type slot struct {
	line     domain.CartLine
	capacity int
}

// AllocateBuyXGetY returns the discount earned by rule on cart and the
// per-line allocations. Free units go to the cheapest get-eligible units
// first; lines with equal prices keep cart order.
func (e *Engine) AllocateBuyXGetY(rule *domain.BuyXGetYRule, cart domain.Cart) (decimal.Decimal, []domain.LineAllocation, error) {
	if rule.BuyQuantity < 1 || rule.GetQuantity < 1 || !domain.IsValidGetDiscountType(rule.GetDiscountType) {
		return decimal.Zero, nil, ErrInvalidRule
	}

	buyUnits := lo.SumBy(cart.Lines, func(l domain.CartLine) int {
		if rule.IsBuyLine(l) {
			return l.Quantity
		}
		return 0
	})
	sets := buyUnits / rule.BuyQuantity
	freeUnits := sets * rule.GetQuantity
	if freeUnits == 0 {
		return decimal.Zero, nil, nil
	}

	slots := lo.FilterMap(cart.Lines, func(l domain.CartLine, _ int) (slot, bool) {
		return slot{line: l, capacity: l.Quantity}, rule.IsGetLine(l)
	})
	if e.overlap == OverlapReserveBuyUnits {
		reserveBuyUnits(rule, slots, sets*rule.BuyQuantity, buyUnits)
	}
	slices.SortStableFunc(slots, func(a, b slot) int {
		return a.line.UnitPrice.Cmp(b.line.UnitPrice)
	})

	var (
		total  = decimal.Zero
		allocs []domain.LineAllocation
	)
	for _, s := range slots {
		if freeUnits == 0 {
			break
		}
		n := min(freeUnits, s.capacity)
		if n <= 0 {
			continue
		}
		freeUnits -= n

		perUnit := unitDiscount(rule, s.line.UnitPrice)
		discount := perUnit.Mul(decimal.NewFromInt(int64(n)))
		total = total.Add(discount)
		allocs = append(allocs, domain.LineAllocation{
			ProductID:           s.line.ProductID,
			Quantity:            n,
			UnitPrice:           s.line.UnitPrice,
			DiscountedUnitPrice: s.line.UnitPrice.Sub(perUnit),
			Discount:            discount,
		})
	}
	return total, allocs, nil
}

// reserveBuyUnits removes the units spent earning sets from the get slots.
// Buy units on lines that cannot be discounted are spent first, then the
// most expensive overlapping units, leaving the cheap ones to be discounted.
func reserveBuyUnits(rule *domain.BuyXGetYRule, slots []slot, spent, buyUnits int) {
	overlapUnits := lo.SumBy(slots, func(s slot) int {
		if rule.IsBuyLine(s.line) {
			return s.line.Quantity
		}
		return 0
	})
	remaining := spent - (buyUnits - overlapUnits)
	if remaining <= 0 {
		return
	}

	order := lo.Range(len(slots))
	slices.SortStableFunc(order, func(a, b int) int {
		return slots[b].line.UnitPrice.Cmp(slots[a].line.UnitPrice)
	})
	for _, i := range order {
		if remaining == 0 {
			return
		}
		if !rule.IsBuyLine(slots[i].line) {
			continue
		}
		take := min(remaining, slots[i].capacity)
		slots[i].capacity -= take
		remaining -= take
	}
}

func unitDiscount(rule *domain.BuyXGetYRule, price decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch rule.GetDiscountType {
	case domain.GetDiscountPercentage:
		d = price.Mul(rule.GetDiscountValue).Div(hundred)
	case domain.GetDiscountFixedAmount:
		d = rule.GetDiscountValue
	default:
		d = price
	}
	return decimal.Min(decimal.Max(d, decimal.Zero), price)
}
