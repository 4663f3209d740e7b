package domain

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// GetDiscountType is the discount granted on each earned "get" unit.
type GetDiscountType string

const (
	GetDiscountFree        GetDiscountType = "free"
	GetDiscountPercentage  GetDiscountType = "percentage"
	GetDiscountFixedAmount GetDiscountType = "fixed_amount"
)

func IsValidGetDiscountType(t GetDiscountType) bool {
	return lo.Contains([]GetDiscountType{GetDiscountFree, GetDiscountPercentage, GetDiscountFixedAmount}, t)
}

// BuyXGetYRule grants GetQuantity discounted units for every BuyQuantity
// units bought. A line is buy-eligible (get-eligible) when its product or
// category appears in the corresponding set.
type BuyXGetYRule struct {
	BuyQuantity      int             `json:"buy_quantity"`
	GetQuantity      int             `json:"get_quantity"`
	BuyProductIDs    []string        `json:"buy_product_ids,omitempty"`
	BuyCategoryIDs   []string        `json:"buy_category_ids,omitempty"`
	GetProductIDs    []string        `json:"get_product_ids,omitempty"`
	GetCategoryIDs   []string        `json:"get_category_ids,omitempty"`
	GetDiscountType  GetDiscountType `json:"get_discount_type"`
	GetDiscountValue decimal.Decimal `json:"get_discount_value"`
}

func (r *BuyXGetYRule) IsBuyLine(l CartLine) bool {
	return lo.Contains(r.BuyProductIDs, l.ProductID) || lo.Contains(r.BuyCategoryIDs, l.CategoryID)
}

func (r *BuyXGetYRule) IsGetLine(l CartLine) bool {
	return lo.Contains(r.GetProductIDs, l.ProductID) || lo.Contains(r.GetCategoryIDs, l.CategoryID)
}
