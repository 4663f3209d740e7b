package engine

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

var (
	testNow  = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	validFor = 30 * 24 * time.Hour
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int { return &n }

func newTestEngine(opts ...Option) *Engine {
	return New(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), opts...)
}

func rule(t domain.DiscountType, value string) domain.DiscountRule {
	return domain.DiscountRule{
		Type:       t,
		Value:      dec(value),
		IsActive:   true,
		ValidFrom:  testNow.Add(-validFor),
		ValidUntil: testNow.Add(validFor),
	}
}

func coupon(t domain.DiscountType, value string) *domain.Coupon {
	return &domain.Coupon{
		ID:           "c-1",
		Code:         "TEST",
		Name:         "test",
		PerUserLimit: 1,
		DiscountRule: rule(t, value),
	}
}

func line(product, category string, qty int, price string) domain.CartLine {
	return domain.CartLine{ProductID: product, CategoryID: category, Quantity: qty, UnitPrice: dec(price)}
}

// cartOf builds a single-line cart whose total equals amount.
func cartOf(amount string) domain.Cart {
	return domain.Cart{Lines: []domain.CartLine{line("p-1", "cat-1", 1, amount)}}
}

func assertDecimal(t interface {
	Helper()
	Errorf(string, ...any)
}, want string, got decimal.Decimal) {
	t.Helper()
	if !dec(want).Equal(got) {
		t.Errorf("decimal mismatch: want %s, got %s", want, got)
	}
}
