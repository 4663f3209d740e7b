package postgres

import (
	"context"
	"fmt"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

const usageColumns = `id, coupon_id, user_id, order_id, discount_amount, original_amount, status, created_at`

// UsageRepository implements repository.UsageRepository.
type UsageRepository struct {
	db database.DBTX
}

func NewUsageRepository(db database.DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) CountByUser(ctx context.Context, couponID, userID string) (n int, err error) {
	query := `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND user_id = $2 AND status = 'redeemed'`

	ctx, end := database.TraceQuery(ctx, "CountCouponUsagesByUser", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, couponID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count coupon usages: %w", err)
	}
	return n, nil
}

func (r *UsageRepository) CountOrdersByUser(ctx context.Context, userID string) (n int, err error) {
	query := `SELECT COUNT(DISTINCT order_id) FROM coupon_usages
		WHERE user_id = $1 AND status = 'redeemed'`

	ctx, end := database.TraceQuery(ctx, "CountOrdersByUser", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders by user: %w", err)
	}
	return n, nil
}

func (r *UsageRepository) Redeem(ctx context.Context, u *domain.CouponUsage) (err error) {
	const (
		incrementSQL = `UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW()
			WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`
		insertSQL = `INSERT INTO coupon_usages (` + usageColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	)

	ctx, end := database.TraceQuery(ctx, "RedeemCoupon", incrementSQL)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin redeem tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, incrementSQL, u.CouponID)
	if err != nil {
		return fmt.Errorf("increment usage count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("usage limit exceeded")
	}

	if u.Status == "" {
		u.Status = domain.UsageStatusRedeemed
	}
	_, err = tx.Exec(ctx, insertSQL,
		u.ID, u.CouponID, u.UserID, u.OrderID, u.DiscountAmount, u.OriginalAmount, u.Status, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon usage", "order_id", u.OrderID)
		}
		return fmt.Errorf("insert coupon usage: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redeem tx: %w", err)
	}
	return nil
}

func (r *UsageRepository) ReleaseByOrder(ctx context.Context, orderID string) (_ []domain.CouponUsage, err error) {
	const (
		releaseSQL = `UPDATE coupon_usages SET status = 'released'
			WHERE order_id = $1 AND status = 'redeemed'
			RETURNING ` + usageColumns
		decrementSQL = `UPDATE coupons SET usage_count = usage_count - 1, updated_at = NOW()
			WHERE id = $1 AND usage_count > 0`
	)

	ctx, end := database.TraceQuery(ctx, "ReleaseCouponUsages", releaseSQL)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin release tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, releaseSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("release coupon usages: %w", err)
	}
	released := []domain.CouponUsage{}
	for rows.Next() {
		var u domain.CouponUsage
		if err = rows.Scan(&u.ID, &u.CouponID, &u.UserID, &u.OrderID,
			&u.DiscountAmount, &u.OriginalAmount, &u.Status, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan released usage: %w", err)
		}
		released = append(released, u)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate released usages: %w", err)
	}

	for _, u := range released {
		if _, err = tx.Exec(ctx, decrementSQL, u.CouponID); err != nil {
			return nil, fmt.Errorf("decrement usage count: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit release tx: %w", err)
	}
	return released, nil
}
