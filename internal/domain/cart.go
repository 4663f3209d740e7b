package domain

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CartLine is one line of a cart snapshot.
type CartLine struct {
	ProductID  string          `json:"product_id" validate:"required"`
	CategoryID string          `json:"category_id"`
	Quantity   int             `json:"quantity" validate:"min=1"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// Subtotal is Quantity * UnitPrice.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an immutable snapshot handed to the engine. When Total is nil the
// cart total is derived from the lines.
type Cart struct {
	Lines []CartLine       `json:"lines" validate:"required,min=1,dive"`
	Total *decimal.Decimal `json:"total,omitempty" validate:"omitempty,gte=0"`
}

// Amount returns the supplied total or the sum of line subtotals.
func (c Cart) Amount() decimal.Decimal {
	if c.Total != nil {
		return *c.Total
	}
	return lo.Reduce(c.Lines, func(sum decimal.Decimal, l CartLine, _ int) decimal.Decimal {
		return sum.Add(l.Subtotal())
	}, decimal.Zero)
}

// Units is the total quantity across all lines.
func (c Cart) Units() int {
	return lo.SumBy(c.Lines, func(l CartLine) int { return l.Quantity })
}

func (c Cart) HasProduct(ids []string) bool {
	return lo.ContainsBy(c.Lines, func(l CartLine) bool { return lo.Contains(ids, l.ProductID) })
}

func (c Cart) HasCategory(ids []string) bool {
	return lo.ContainsBy(c.Lines, func(l CartLine) bool { return lo.Contains(ids, l.CategoryID) })
}
