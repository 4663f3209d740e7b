package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
)

// --- repositories ---

type mockCouponRepository struct {
	mock.Mock
}

func (m *mockCouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepository) List(ctx context.Context, f repository.CouponFilter) ([]domain.Coupon, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Coupon), args.Int(1), args.Error(2)
}

func (m *mockCouponRepository) ListPublic(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.Coupon), args.Error(1)
}

func (m *mockCouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockCouponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

type mockUsageRepository struct {
	mock.Mock
}

func (m *mockUsageRepository) CountByUser(ctx context.Context, couponID, userID string) (int, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageRepository) CountOrdersByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageRepository) Redeem(ctx context.Context, u *domain.CouponUsage) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUsageRepository) ReleaseByOrder(ctx context.Context, orderID string) ([]domain.CouponUsage, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]domain.CouponUsage), args.Error(1)
}

type mockAutomaticRepository struct {
	mock.Mock
}

func (m *mockAutomaticRepository) Create(ctx context.Context, d *domain.AutomaticDiscount) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockAutomaticRepository) GetByID(ctx context.Context, id string) (*domain.AutomaticDiscount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AutomaticDiscount), args.Error(1)
}

func (m *mockAutomaticRepository) List(ctx context.Context, f repository.AutomaticDiscountFilter) ([]domain.AutomaticDiscount, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.AutomaticDiscount), args.Int(1), args.Error(2)
}

func (m *mockAutomaticRepository) ListActive(ctx context.Context, now time.Time) ([]domain.AutomaticDiscount, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.AutomaticDiscount), args.Error(1)
}

func (m *mockAutomaticRepository) Update(ctx context.Context, d *domain.AutomaticDiscount) error {
	return m.Called(ctx, d).Error(0)
}

// --- collaborators ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, c *domain.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCouponCreated(ctx context.Context, c *domain.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockPublisher) PublishCouponUpdated(ctx context.Context, c *domain.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockPublisher) PublishCouponRedeemed(ctx context.Context, code string, u *domain.CouponUsage) error {
	return m.Called(ctx, code, u).Error(0)
}

func (m *mockPublisher) PublishRedemptionReleased(ctx context.Context, u *domain.CouponUsage) error {
	return m.Called(ctx, u).Error(0)
}

type mockGroups struct {
	mock.Mock
}

func (m *mockGroups) Groups(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// setIndex is a CodeIndex without false positives.
type setIndex struct {
	mu    sync.Mutex
	codes map[string]bool
}

func newSetIndex(codes ...string) *setIndex {
	idx := &setIndex{codes: map[string]bool{}}
	for _, c := range codes {
		idx.codes[c] = true
	}
	return idx
}

func (s *setIndex) MayContain(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code]
}

func (s *setIndex) Add(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = true
}

// --- helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(opts ...engine.Option) *engine.Engine {
	return engine.New(newTestLogger(), opts...)
}

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// activeCoupon is valid for a day either side of now.
func activeCoupon(code string) *domain.Coupon {
	now := time.Now().UTC()
	return &domain.Coupon{
		ID:   "c-" + code,
		Code: code,
		Name: "Test " + code,
		DiscountRule: domain.DiscountRule{
			Type:       domain.DiscountTypePercentage,
			Value:      dec("10"),
			IsActive:   true,
			ValidFrom:  now.Add(-24 * time.Hour),
			ValidUntil: now.Add(24 * time.Hour),
			Conditions: domain.Conditions{},
		},
		PerUserLimit: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func cartOf(lines ...domain.CartLine) domain.Cart {
	return domain.Cart{Lines: lines}
}

func line(product, category string, qty int, price string) domain.CartLine {
	return domain.CartLine{ProductID: product, CategoryID: category, Quantity: qty, UnitPrice: dec(price)}
}
