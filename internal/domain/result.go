package domain

import "github.com/shopspring/decimal"

// LineAllocation records the discount granted on one cart line.
type LineAllocation struct {
	ProductID           string          `json:"product_id"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DiscountedUnitPrice decimal.Decimal `json:"discounted_unit_price"`
	Discount            decimal.Decimal `json:"discount"`
}

// DiscountResult is the outcome of evaluating one coupon or automatic
// discount against a cart. ErrorMessage is set iff IsValid is false.
type DiscountResult struct {
	IsValid        bool             `json:"is_valid"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	DiscountType   DiscountType     `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	FreeShipping   bool             `json:"free_shipping"`
	Allocations    []LineAllocation `json:"allocations,omitempty"`

	// Fault names the configuration problem that forced a zero discount.
	Fault string `json:"-"`
}

// Invalid builds the result for an ineligible rule.
func Invalid(reason string) DiscountResult {
	return DiscountResult{ErrorMessage: reason, DiscountAmount: decimal.Zero}
}
