package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

const couponColumns = `id, code, name, description, type, value,
	min_order_amount, max_discount_amount, usage_limit, usage_count, per_user_limit,
	is_active, is_public, is_stackable, first_time_customer_only,
	valid_from, valid_until, conditions, buy_x_get_y, created_by, created_at, updated_at`

// CouponRepository implements repository.CouponRepository.
type CouponRepository struct {
	db database.DBTX
}

func NewCouponRepository(db database.DBTX) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) (err error) {
	conditions, bxgy, err := encodeRuleJSON(&c.DiscountRule)
	if err != nil {
		return err
	}

	query := `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	ctx, end := database.TraceQuery(ctx, "CreateCoupon", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		c.ID, c.Code, c.Name, c.Description, c.Type, c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsageCount, c.PerUserLimit,
		c.IsActive, c.IsPublic, c.IsStackable, c.FirstTimeCustomerOnly,
		c.ValidFrom, c.ValidUntil, conditions, bxgy, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon", "code", c.Code)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (r *CouponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	c, err := r.getOne(ctx, "GetCouponByID", `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("coupon", id)
	}
	return c, err
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := r.getOne(ctx, "GetCouponByCode", `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("coupon", code)
	}
	return c, err
}

func (r *CouponRepository) getOne(ctx context.Context, op, query string, arg any) (c *domain.Coupon, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return
		}
		end(err)
	}()

	c, err = scanCoupon(r.db.QueryRow(ctx, query, arg))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, err
}

func (r *CouponRepository) List(ctx context.Context, f repository.CouponFilter) (_ []domain.Coupon, _ int, err error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.IsActive != nil {
		add("is_active = $%d", *f.IsActive)
	}
	if f.IsPublic != nil {
		add("is_public = $%d", *f.IsPublic)
	}
	if f.Type != nil {
		add("type = $%d", string(*f.Type))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := limitOffset(f.Page, f.PerPage)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s, count(*) OVER() AS total_count
		FROM coupons %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, couponColumns, whereClause, len(args)-1, len(args))

	ctx, end := database.TraceQuery(ctx, "ListCoupons", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []domain.Coupon{}
	total := 0
	for rows.Next() {
		c, err := scanCoupon(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan coupon row: %w", err)
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, total, nil
}

func (r *CouponRepository) ListPublic(ctx context.Context, now time.Time) (_ []domain.Coupon, err error) {
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active AND is_public AND valid_from <= $1 AND valid_until >= $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
		ORDER BY valid_until ASC`

	ctx, end := database.TraceQuery(ctx, "ListPublicCoupons", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list public coupons: %w", err)
	}
	defer rows.Close()

	coupons := []domain.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon row: %w", err)
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

func (r *CouponRepository) ListCodes(ctx context.Context) (_ []string, err error) {
	query := `SELECT code FROM coupons`
	ctx, end := database.TraceQuery(ctx, "ListCouponCodes", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list coupon codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect coupon codes: %w", err)
	}
	return codes, nil
}

// Update rewrites the mutable fields. usage_count is owned by the usage
// repository and is never written here.
func (r *CouponRepository) Update(ctx context.Context, c *domain.Coupon) (err error) {
	conditions, bxgy, err := encodeRuleJSON(&c.DiscountRule)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()

	query := `UPDATE coupons
		SET name = $1, description = $2, type = $3, value = $4,
		    min_order_amount = $5, max_discount_amount = $6, usage_limit = $7, per_user_limit = $8,
		    is_active = $9, is_public = $10, is_stackable = $11, first_time_customer_only = $12,
		    valid_from = $13, valid_until = $14, conditions = $15, buy_x_get_y = $16, updated_at = $17
		WHERE id = $18`

	ctx, end := database.TraceQuery(ctx, "UpdateCoupon", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		c.Name, c.Description, c.Type, c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount, c.UsageLimit, c.PerUserLimit,
		c.IsActive, c.IsPublic, c.IsStackable, c.FirstTimeCustomerOnly,
		c.ValidFrom, c.ValidUntil, conditions, bxgy, c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", c.ID)
	}
	return nil
}

// scanCoupon reads one row in couponColumns order; extra holds trailing
// columns such as a window count.
func scanCoupon(row rowScanner, extra ...any) (*domain.Coupon, error) {
	var (
		c          domain.Coupon
		conditions []byte
		bxgy       []byte
	)
	dest := []any{
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Type, &c.Value,
		&c.MinOrderAmount, &c.MaxDiscountAmount, &c.UsageLimit, &c.UsageCount, &c.PerUserLimit,
		&c.IsActive, &c.IsPublic, &c.IsStackable, &c.FirstTimeCustomerOnly,
		&c.ValidFrom, &c.ValidUntil, &conditions, &bxgy, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	decodeRuleJSON(&c.DiscountRule, conditions, bxgy)
	return &c, nil
}
