package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var fixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleCoupon() *domain.Coupon {
	minOrder := decimal.NewFromInt(50)
	limit := 100
	return &domain.Coupon{
		ID:          "6f1c1a52-3d7e-4c5e-9a51-0c7a7f0e2b11",
		Code:        "SAVE10",
		Name:        "Ten percent off",
		Description: "Spring promotion",
		DiscountRule: domain.DiscountRule{
			Type:           domain.DiscountTypePercentage,
			Value:          decimal.NewFromInt(10),
			MinOrderAmount: &minOrder,
			IsActive:       true,
			ValidFrom:      fixedTime,
			ValidUntil:     fixedTime.Add(30 * 24 * time.Hour),
			Conditions: domain.Conditions{
				domain.CategoryCondition{IDs: []string{"shoes"}, Inclusive: true},
			},
		},
		UsageLimit:   &limit,
		UsageCount:   7,
		PerUserLimit: 1,
		IsPublic:     true,
		CreatedBy:    "admin-1",
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
	}
}

func couponColumnNames() []string {
	return []string{
		"id", "code", "name", "description", "type", "value",
		"min_order_amount", "max_discount_amount", "usage_limit", "usage_count", "per_user_limit",
		"is_active", "is_public", "is_stackable", "first_time_customer_only",
		"valid_from", "valid_until", "conditions", "buy_x_get_y", "created_by", "created_at", "updated_at",
	}
}

func couponValues(t *testing.T, c *domain.Coupon) []any {
	t.Helper()
	conditions, err := json.Marshal(c.Conditions)
	require.NoError(t, err)
	var bxgy any
	if c.BuyXGetY != nil {
		b, err := json.Marshal(c.BuyXGetY)
		require.NoError(t, err)
		bxgy = b
	}
	return []any{
		c.ID, c.Code, c.Name, c.Description, c.Type, c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsageCount, c.PerUserLimit,
		c.IsActive, c.IsPublic, c.IsStackable, c.FirstTimeCustomerOnly,
		c.ValidFrom, c.ValidUntil, conditions, bxgy, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCouponRepository_Create(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(anyArgs(22)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_Create_DuplicateCode(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(anyArgs(22)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), sampleCoupon())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_Create_ExecError(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(anyArgs(22)...).
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), sampleCoupon())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert coupon")
	assert.NotErrorIs(t, err, apperrors.ErrAlreadyExists)
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCouponRepository_GetByCode(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE code").
		WithArgs("SAVE10").
		WillReturnRows(pgxmock.NewRows(couponColumnNames()).AddRow(couponValues(t, c)...))

	got, err := repo.GetByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, domain.DiscountTypePercentage, got.Type)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, got.MinOrderAmount)
	assert.True(t, got.MinOrderAmount.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, got.MaxDiscountAmount)
	require.NotNil(t, got.UsageLimit)
	assert.Equal(t, 100, *got.UsageLimit)
	assert.Equal(t, 7, got.UsageCount)
	assert.Nil(t, got.BuyXGetY)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, domain.CategoryCondition{IDs: []string{"shoes"}, Inclusive: true}, got.Conditions[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByCode_DecodesBuyXGetY(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()
	c.Type = domain.DiscountTypeBuyXGetY
	c.BuyXGetY = &domain.BuyXGetYRule{
		BuyQuantity:     2,
		GetQuantity:     1,
		BuyProductIDs:   []string{"sock"},
		GetProductIDs:   []string{"sock"},
		GetDiscountType: domain.GetDiscountFree,
	}

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE code").
		WithArgs("B2G1").
		WillReturnRows(pgxmock.NewRows(couponColumnNames()).AddRow(couponValues(t, c)...))

	got, err := repo.GetByCode(context.Background(), "B2G1")
	require.NoError(t, err)
	require.NotNil(t, got.BuyXGetY)
	assert.Equal(t, 2, got.BuyXGetY.BuyQuantity)
	assert.Equal(t, domain.GetDiscountFree, got.BuyXGetY.GetDiscountType)
}

func TestCouponRepository_GetByCode_UndecodableBuyXGetYIsKept(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()
	c.Type = domain.DiscountTypeBuyXGetY
	values := couponValues(t, c)
	values[18] = []byte(`{"buy_quantity":"two","get_quantity":1}`)

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE code").
		WithArgs("B2G1").
		WillReturnRows(pgxmock.NewRows(couponColumnNames()).AddRow(values...))

	got, err := repo.GetByCode(context.Background(), "B2G1")
	require.NoError(t, err)
	assert.Nil(t, got.BuyXGetY)
	require.Error(t, got.BuyXGetYErr)
	assert.Contains(t, got.BuyXGetYErr.Error(), "unmarshal buy_x_get_y")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByCode_NonListConditionsAreMalformed(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	values := couponValues(t, sampleCoupon())
	values[17] = []byte(`{"type":"product","value":["p1"]}`)

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE code").
		WithArgs("SAVE10").
		WillReturnRows(pgxmock.NewRows(couponColumnNames()).AddRow(values...))

	got, err := repo.GetByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	m, ok := got.Conditions.Malformed()
	require.True(t, ok)
	assert.ErrorIs(t, m.Err, domain.ErrMalformedCondition)

	// The malformed rule still serializes for the cache and the admin API.
	_, err = json.Marshal(got)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByCode_NotFound(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE code").
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByID_QueryError(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE id").
		WithArgs("c-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "c-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get coupon")
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestCouponRepository_List_WithFilters(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	active := true
	typ := domain.DiscountTypePercentage
	rows := pgxmock.NewRows(append(couponColumnNames(), "total_count")).
		AddRow(append(couponValues(t, c), 3)...)

	mock.ExpectQuery("SELECT .+ FROM coupons WHERE is_active = \\$1 AND type = \\$2").
		WithArgs(true, "percentage", 10, 10).
		WillReturnRows(rows)

	got, total, err := repo.List(context.Background(), repository.CouponFilter{
		IsActive: &active, Type: &typ, Page: 2, PerPage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 1)
	assert.Equal(t, "SAVE10", got[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_List_DefaultsPaging(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM coupons").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(couponColumnNames(), "total_count")))

	got, total, err := repo.List(context.Background(), repository.CouponFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Zero(t, total)
}

func TestCouponRepository_ListPublic(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()
	now := fixedTime.Add(time.Hour)

	mock.ExpectQuery("SELECT .+ FROM coupons\\s+WHERE is_active AND is_public").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows(couponColumnNames()).AddRow(couponValues(t, c)...))

	got, err := repo.ListPublic(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsPublic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_ListCodes(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectQuery("SELECT code FROM coupons").
		WillReturnRows(pgxmock.NewRows([]string{"code"}).AddRow("SAVE10").AddRow("WELCOME"))

	codes, err := repo.ListCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE10", "WELCOME"}, codes)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestCouponRepository_Update(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	mock.ExpectExec("UPDATE coupons").
		WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), c))
	assert.True(t, c.UpdatedAt.After(fixedTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_Update_NotFound(t *testing.T) {
	mock := setupMock(t)
	repo := NewCouponRepository(mock)

	mock.ExpectExec("UPDATE coupons").
		WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), sampleCoupon())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
