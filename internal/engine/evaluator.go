package engine

import (
	"log/slog"
	"time"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

// Eligibility is the evaluator's verdict. Reason holds the first failed
// check only.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Fault    string `json:"-"`
}

var eligible = Eligibility{Eligible: true}

func reject(reason string) Eligibility { return Eligibility{Reason: reason} }

// Evaluate checks, in order: active flag, validity window, global usage cap,
// per-user cap, first-time-customer restriction, minimum order amount, then
// every condition.
func (e *Engine) Evaluate(c *domain.Coupon, cart domain.Cart, now time.Time, u UserUsage) Eligibility {
	res := e.evaluate(&c.DiscountRule, cart, now, u, func() string {
		if c.Exhausted() {
			return ReasonUsageLimit
		}
		if u.UserID != "" && u.Uses >= c.PerUserLimit {
			return ReasonPerUserLimit
		}
		return ""
	})
	if res.Fault != "" {
		e.fault(res.Fault, slog.String("coupon_id", c.ID), slog.String("code", c.Code))
	}
	observe(res)
	return res
}

// EvaluateAutomatic is Evaluate without the usage caps automatic discounts lack.
func (e *Engine) EvaluateAutomatic(d *domain.AutomaticDiscount, cart domain.Cart, now time.Time, u UserUsage) Eligibility {
	res := e.evaluate(&d.DiscountRule, cart, now, u, nil)
	if res.Fault != "" {
		e.fault(res.Fault, slog.String("automatic_discount_id", d.ID))
	}
	observe(res)
	return res
}

func (e *Engine) evaluate(r *domain.DiscountRule, cart domain.Cart, now time.Time, u UserUsage, caps func() string) Eligibility {
	if !r.IsActive {
		return reject(ReasonInactive)
	}
	if now.Before(r.ValidFrom) {
		return reject(ReasonNotYetValid)
	}
	if now.After(r.ValidUntil) {
		return reject(ReasonExpired)
	}
	if caps != nil {
		if reason := caps(); reason != "" {
			return reject(reason)
		}
	}
	if r.FirstTimeCustomerOnly && u.UserID != "" && u.PriorOrders > 0 {
		return reject(ReasonFirstTimeOnly)
	}
	if r.MinOrderAmount != nil && cart.Amount().LessThan(*r.MinOrderAmount) {
		return reject(ReasonMinOrder)
	}
	for _, cond := range r.Conditions {
		if res := e.checkCondition(cond, cart, u); !res.Eligible {
			return res
		}
	}
	return eligible
}

func (e *Engine) checkCondition(cond domain.Condition, cart domain.Cart, u UserUsage) Eligibility {
	switch c := cond.(type) {
	case domain.ProductCondition:
		return membership(cart.HasProduct(c.IDs), c.Inclusive, ReasonProductsMissing, ReasonProductsExcluded)
	case domain.CategoryCondition:
		return membership(cart.HasCategory(c.IDs), c.Inclusive, ReasonCategoriesMissing, ReasonCategoryExcluded)
	case domain.MinQuantityCondition:
		if cart.Units() < c.Threshold {
			return reject(ReasonMinQuantity)
		}
	case domain.UserGroupCondition:
		if !e.userGroups(u, c) {
			return reject(ReasonUserGroup)
		}
	default:
		return Eligibility{Reason: ReasonMisconfigured, Fault: FaultMalformedCondition}
	}
	return eligible
}

func membership(found, inclusive bool, missing, excluded string) Eligibility {
	switch {
	case inclusive && !found:
		return reject(missing)
	case !inclusive && found:
		return reject(excluded)
	}
	return eligible
}

func observe(res Eligibility) {
	if res.Eligible {
		engineEvaluations.WithLabelValues("eligible").Inc()
		return
	}
	engineEvaluations.WithLabelValues("ineligible").Inc()
	engineRejections.WithLabelValues(res.Reason).Inc()
}
