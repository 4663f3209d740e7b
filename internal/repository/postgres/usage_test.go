package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

func sampleUsage() *domain.CouponUsage {
	return &domain.CouponUsage{
		ID:             "u-1",
		CouponID:       "c-1",
		UserID:         "user-1",
		OrderID:        "order-1",
		DiscountAmount: decimal.RequireFromString("12.50"),
		OriginalAmount: decimal.RequireFromString("125.00"),
		CreatedAt:      fixedTime,
	}
}

func usageArgs(u *domain.CouponUsage) []any {
	return []any{u.ID, u.CouponID, u.UserID, u.OrderID, u.DiscountAmount, u.OriginalAmount, domain.UsageStatusRedeemed, u.CreatedAt}
}

func TestUsageRepository_CountByUser(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM coupon_usages").
		WithArgs("c-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountByUser(context.Background(), "c-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_CountOrdersByUser(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT order_id\\)").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	n, err := repo.CountOrdersByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUsageRepository_CountOrdersByUser_OnlyRedeemedCouponOrders(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT order_id\) FROM coupon_usages\s+WHERE user_id = \$1 AND status = 'redeemed'`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountOrdersByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_CountByUser_Error(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("c-1", "user-1").
		WillReturnError(errors.New("timeout"))

	_, err := repo.CountByUser(context.Background(), "c-1", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count coupon usages")
}

func TestUsageRepository_Redeem(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)
	u := sampleUsage()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons SET usage_count = usage_count \\+ 1").
		WithArgs("c-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO coupon_usages").
		WithArgs(usageArgs(u)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Redeem(context.Background(), u))
	assert.Equal(t, domain.UsageStatusRedeemed, u.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Redeem_LimitReached(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons SET usage_count = usage_count \\+ 1").
		WithArgs("c-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Redeem(context.Background(), sampleUsage())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Redeem_DuplicateOrder(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)
	u := sampleUsage()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons SET usage_count").
		WithArgs("c-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO coupon_usages").
		WithArgs(usageArgs(u)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Redeem(context.Background(), u)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Redeem_BeginError(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err := repo.Redeem(context.Background(), sampleUsage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin redeem tx")
}

func TestUsageRepository_ReleaseByOrder(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)
	u := sampleUsage()

	rows := pgxmock.NewRows([]string{
		"id", "coupon_id", "user_id", "order_id", "discount_amount", "original_amount", "status", "created_at",
	}).AddRow(u.ID, u.CouponID, u.UserID, u.OrderID, u.DiscountAmount, u.OriginalAmount, domain.UsageStatusReleased, u.CreatedAt)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE coupon_usages SET status = 'released'").
		WithArgs("order-1").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE coupons SET usage_count = usage_count - 1").
		WithArgs("c-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	released, err := repo.ReleaseByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, domain.UsageStatusReleased, released[0].Status)
	assert.True(t, released[0].DiscountAmount.Equal(decimal.RequireFromString("12.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_ReleaseByOrder_NothingToRelease(t *testing.T) {
	mock := setupMock(t)
	repo := NewUsageRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE coupon_usages").
		WithArgs("order-2").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "coupon_id", "user_id", "order_id", "discount_amount", "original_amount", "status", "created_at",
		}))
	mock.ExpectCommit()

	released, err := repo.ReleaseByOrder(context.Background(), "order-2")
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}
