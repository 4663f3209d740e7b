package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

const automaticDiscountColumns = `id, name, description, type, value,
	min_order_amount, max_discount_amount, priority,
	is_active, is_stackable, first_time_customer_only,
	valid_from, valid_until, conditions, buy_x_get_y, created_at, updated_at`

// AutomaticDiscountRepository implements repository.AutomaticDiscountRepository.
type AutomaticDiscountRepository struct {
	db database.DBTX
}

func NewAutomaticDiscountRepository(db database.DBTX) *AutomaticDiscountRepository {
	return &AutomaticDiscountRepository{db: db}
}

func (r *AutomaticDiscountRepository) Create(ctx context.Context, d *domain.AutomaticDiscount) (err error) {
	conditions, bxgy, err := encodeRuleJSON(&d.DiscountRule)
	if err != nil {
		return err
	}

	query := `INSERT INTO automatic_discounts (` + automaticDiscountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	ctx, end := database.TraceQuery(ctx, "CreateAutomaticDiscount", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		d.ID, d.Name, d.Description, d.Type, d.Value,
		d.MinOrderAmount, d.MaxDiscountAmount, d.Priority,
		d.IsActive, d.IsStackable, d.FirstTimeCustomerOnly,
		d.ValidFrom, d.ValidUntil, conditions, bxgy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert automatic discount: %w", err)
	}
	return nil
}

func (r *AutomaticDiscountRepository) GetByID(ctx context.Context, id string) (_ *domain.AutomaticDiscount, err error) {
	query := `SELECT ` + automaticDiscountColumns + ` FROM automatic_discounts WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetAutomaticDiscountByID", query)
	defer func() { end(err) }()

	d, err := scanAutomaticDiscount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("automatic discount", id)
		}
		return nil, fmt.Errorf("get automatic discount: %w", err)
	}
	return d, nil
}

func (r *AutomaticDiscountRepository) List(ctx context.Context, f repository.AutomaticDiscountFilter) (_ []domain.AutomaticDiscount, _ int, err error) {
	limit, offset := limitOffset(f.Page, f.PerPage)

	query := `SELECT ` + automaticDiscountColumns + `, count(*) OVER() AS total_count
		FROM automatic_discounts
		WHERE ($1::boolean IS NULL OR is_active = $1)
		ORDER BY priority DESC, id ASC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListAutomaticDiscounts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, f.IsActive, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list automatic discounts: %w", err)
	}
	defer rows.Close()

	discounts := []domain.AutomaticDiscount{}
	total := 0
	for rows.Next() {
		d, err := scanAutomaticDiscount(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan automatic discount row: %w", err)
		}
		discounts = append(discounts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate automatic discount rows: %w", err)
	}
	return discounts, total, nil
}

func (r *AutomaticDiscountRepository) ListActive(ctx context.Context, now time.Time) (_ []domain.AutomaticDiscount, err error) {
	query := `SELECT ` + automaticDiscountColumns + ` FROM automatic_discounts
		WHERE is_active AND valid_from <= $1 AND valid_until >= $1
		ORDER BY priority DESC, id ASC`

	ctx, end := database.TraceQuery(ctx, "ListActiveAutomaticDiscounts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list active automatic discounts: %w", err)
	}
	defer rows.Close()

	discounts := []domain.AutomaticDiscount{}
	for rows.Next() {
		d, err := scanAutomaticDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automatic discount row: %w", err)
		}
		discounts = append(discounts, *d)
	}
	return discounts, rows.Err()
}

func (r *AutomaticDiscountRepository) Update(ctx context.Context, d *domain.AutomaticDiscount) (err error) {
	conditions, bxgy, err := encodeRuleJSON(&d.DiscountRule)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()

	query := `UPDATE automatic_discounts
		SET name = $1, description = $2, type = $3, value = $4,
		    min_order_amount = $5, max_discount_amount = $6, priority = $7,
		    is_active = $8, is_stackable = $9, first_time_customer_only = $10,
		    valid_from = $11, valid_until = $12, conditions = $13, buy_x_get_y = $14, updated_at = $15
		WHERE id = $16`

	ctx, end := database.TraceQuery(ctx, "UpdateAutomaticDiscount", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		d.Name, d.Description, d.Type, d.Value,
		d.MinOrderAmount, d.MaxDiscountAmount, d.Priority,
		d.IsActive, d.IsStackable, d.FirstTimeCustomerOnly,
		d.ValidFrom, d.ValidUntil, conditions, bxgy, d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update automatic discount: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("automatic discount", d.ID)
	}
	return nil
}

func scanAutomaticDiscount(row rowScanner, extra ...any) (*domain.AutomaticDiscount, error) {
	var (
		d          domain.AutomaticDiscount
		conditions []byte
		bxgy       []byte
	)
	dest := []any{
		&d.ID, &d.Name, &d.Description, &d.Type, &d.Value,
		&d.MinOrderAmount, &d.MaxDiscountAmount, &d.Priority,
		&d.IsActive, &d.IsStackable, &d.FirstTimeCustomerOnly,
		&d.ValidFrom, &d.ValidUntil, &conditions, &bxgy, &d.CreatedAt, &d.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	decodeRuleJSON(&d.DiscountRule, conditions, bxgy)
	return &d, nil
}
