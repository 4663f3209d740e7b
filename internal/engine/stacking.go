package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

// AppliedDiscount is one automatic discount selected by ResolveAutomatic.
type AppliedDiscount struct {
	DiscountID string `json:"discount_id"`
	Name       string `json:"name"`
	Priority   int    `json:"priority"`
	Stackable  bool   `json:"stackable"`
	domain.DiscountResult
}

// StackResult is the combined outcome of the automatic discounts applied to
// a cart. TotalDiscount never exceeds the cart total.
type StackResult struct {
	Applied       []AppliedDiscount `json:"applied"`
	TotalDiscount decimal.Decimal   `json:"total_discount"`
	FreeShipping  bool              `json:"free_shipping"`
}

// ResolveAutomatic selects which eligible automatic discounts apply.
// Candidates are ordered by Priority (highest first, ties by ID) and folded
// with stackStep.
func (e *Engine) ResolveAutomatic(discounts []domain.AutomaticDiscount, cart domain.Cart, now time.Time, u UserUsage) StackResult {
	candidates := make([]AppliedDiscount, 0, len(discounts))
	for i := range discounts {
		d := &discounts[i]
		if !e.EvaluateAutomatic(d, cart, now, u).Eligible {
			continue
		}
		res := e.Calculate(&d.DiscountRule, cart)
		if !res.IsValid {
			continue
		}
		candidates = append(candidates, AppliedDiscount{
			DiscountID:     d.ID,
			Name:           d.Name,
			Priority:       d.Priority,
			Stackable:      d.IsStackable,
			DiscountResult: res,
		})
	}
	slices.SortStableFunc(candidates, func(a, b AppliedDiscount) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.DiscountID, b.DiscountID)
	})

	acc := StackResult{Applied: []AppliedDiscount{}, TotalDiscount: decimal.Zero}
	for _, c := range candidates {
		var more bool
		if acc, more = stackStep(acc, c); !more {
			break
		}
	}
	acc.TotalDiscount = clamp(acc.TotalDiscount, cart.Amount())
	return acc
}

// stackStep folds one candidate into acc and reports whether folding should
// continue. The first candidate is always taken; it closes the stack when it
// is not stackable. Later candidates join only while they are stackable, and
// the first non-stackable one ends the fold without being applied.
func stackStep(acc StackResult, c AppliedDiscount) (StackResult, bool) {
	if len(acc.Applied) > 0 && !c.Stackable {
		return acc, false
	}
	acc.Applied = append(acc.Applied, c)
	acc.TotalDiscount = acc.TotalDiscount.Add(c.DiscountAmount)
	acc.FreeShipping = acc.FreeShipping || c.FreeShipping
	return acc, c.Stackable
}
