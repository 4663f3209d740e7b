package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DiscountType selects how a rule turns a cart into a discount.
type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixedAmount  DiscountType = "fixed_amount"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
	DiscountTypeBuyXGetY     DiscountType = "buy_x_get_y"
)

// ValidDiscountTypes lists every supported discount type.
func ValidDiscountTypes() []DiscountType {
	return []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixedAmount,
		DiscountTypeFreeShipping,
		DiscountTypeBuyXGetY,
	}
}

func IsValidDiscountType(t DiscountType) bool {
	return lo.Contains(ValidDiscountTypes(), t)
}

// DefaultPerUserLimit applies when a coupon is created without one.
const DefaultPerUserLimit = 1

// DiscountRule holds the fields shared by coupons and automatic discounts:
// what the discount is worth and when it applies.
type DiscountRule struct {
	Type                  DiscountType     `json:"type"`
	Value                 decimal.Decimal  `json:"value"`
	MinOrderAmount        *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscountAmount     *decimal.Decimal `json:"max_discount_amount,omitempty"`
	IsActive              bool             `json:"is_active"`
	IsStackable           bool             `json:"is_stackable"`
	FirstTimeCustomerOnly bool             `json:"first_time_customer_only"`
	ValidFrom             time.Time        `json:"valid_from"`
	ValidUntil            time.Time        `json:"valid_until"`
	Conditions            Conditions       `json:"conditions"`
	BuyXGetY              *BuyXGetYRule    `json:"buy_x_get_y,omitempty"`

	// BuyXGetYErr records a stored BXGY rule that could not be decoded.
	BuyXGetYErr error `json:"-"`
}

// ActiveAt reports whether t falls inside [ValidFrom, ValidUntil].
func (r *DiscountRule) ActiveAt(t time.Time) bool {
	return !t.Before(r.ValidFrom) && !t.After(r.ValidUntil)
}

// Coupon is a code-activated discount with global and per-user usage caps.
type Coupon struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DiscountRule
	UsageLimit   *int      `json:"usage_limit,omitempty"`
	UsageCount   int       `json:"usage_count"`
	PerUserLimit int       `json:"per_user_limit"`
	IsPublic     bool      `json:"is_public"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeCode returns the canonical (trimmed, uppercase) form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Exhausted reports whether the global usage cap has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// AutomaticDiscount applies without a code. Among simultaneously eligible
// discounts, higher Priority is considered first.
type AutomaticDiscount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DiscountRule
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageStatus tracks whether a redemption still counts against the coupon.
type UsageStatus string

const (
	UsageStatusRedeemed UsageStatus = "redeemed"
	UsageStatusReleased UsageStatus = "released"
)

// CouponUsage records one redemption of a coupon on an order.
type CouponUsage struct {
	ID             string          `json:"id"`
	CouponID       string          `json:"coupon_id"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Status         UsageStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}
