// Package postgres implements the repository contracts on PostgreSQL via pgx.
package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

const defaultPerPage = 20

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func limitOffset(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}
	return perPage, offset
}

// encodeRuleJSON marshals the JSONB columns shared by coupons and
// automatic discounts. A nil rule is stored as SQL NULL.
func encodeRuleJSON(r *domain.DiscountRule) (conditions, bxgy []byte, err error) {
	if r.Conditions == nil {
		r.Conditions = domain.Conditions{}
	}
	if conditions, err = json.Marshal(r.Conditions); err != nil {
		return nil, nil, fmt.Errorf("marshal conditions: %w", err)
	}
	if r.BuyXGetY != nil {
		if bxgy, err = json.Marshal(r.BuyXGetY); err != nil {
			return nil, nil, fmt.Errorf("marshal buy_x_get_y: %w", err)
		}
	}
	return conditions, bxgy, nil
}

// decodeRuleJSON never fails the row. Undecodable payloads are kept on the
// rule as malformed parts so evaluation fails safe to a zero discount.
func decodeRuleJSON(r *domain.DiscountRule, conditions, bxgy []byte) {
	r.Conditions = domain.Conditions{}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			r.Conditions = domain.Conditions{domain.MalformedCondition{
				Raw: json.RawMessage(conditions),
				Err: fmt.Errorf("%w: conditions must be a list: %v", domain.ErrMalformedCondition, err),
			}}
		}
	}
	r.BuyXGetY, r.BuyXGetYErr = nil, nil
	if len(bxgy) > 0 {
		rule := &domain.BuyXGetYRule{}
		if err := json.Unmarshal(bxgy, rule); err != nil {
			r.BuyXGetYErr = fmt.Errorf("unmarshal buy_x_get_y: %w", err)
			return
		}
		r.BuyXGetY = rule
	}
}
