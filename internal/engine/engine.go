// Package engine evaluates coupons and automatic discounts against cart
// snapshots. It performs no I/O and holds no mutable state, so one Engine is
// shared by all requests. Usage counters and user groups come from the caller.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

// Rejection reasons. These strings are shown to shoppers and must not change.
const (
	ReasonInactive          = "coupon is not active"
	ReasonNotYetValid       = "coupon is not yet valid"
	ReasonExpired           = "coupon has expired"
	ReasonUsageLimit        = "usage limit exceeded"
	ReasonPerUserLimit      = "per-user usage limit exceeded"
	ReasonFirstTimeOnly     = "coupon is only valid for first-time customers"
	ReasonMinOrder          = "minimum order amount not met"
	ReasonProductsMissing   = "required products not in cart"
	ReasonProductsExcluded  = "cart contains excluded products"
	ReasonCategoriesMissing = "required categories not in cart"
	ReasonCategoryExcluded  = "cart contains excluded categories"
	ReasonMinQuantity       = "minimum quantity not met"
	ReasonUserGroup         = "user group not eligible"
	ReasonMisconfigured     = "coupon configuration is invalid"
)

// OverlapPolicy decides how a cart line that is both buy- and get-eligible
// takes part in a buy-X-get-Y allocation.
type OverlapPolicy string

const (
	// OverlapCountBoth lets the same units earn free units and receive them.
	OverlapCountBoth OverlapPolicy = "count_both"
	// OverlapReserveBuyUnits withholds the units spent earning sets from the
	// pool that can be discounted.
	OverlapReserveBuyUnits OverlapPolicy = "reserve_buy_units"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	p := OverlapPolicy(s)
	if !lo.Contains([]OverlapPolicy{OverlapCountBoth, OverlapReserveBuyUnits}, p) {
		return "", fmt.Errorf("unknown buy-x-get-y overlap policy %q", s)
	}
	return p, nil
}

// UserUsage is what the caller knows about the shopper. An empty UserID
// means an anonymous evaluation: per-user and first-time checks are skipped.
type UserUsage struct {
	UserID string
	// Uses counts the shopper's redemptions of the coupon being evaluated.
	Uses        int
	PriorOrders int
	Groups      []string
}

// UserGroupPredicate decides a user_group condition.
type UserGroupPredicate func(u UserUsage, c domain.UserGroupCondition) bool

// PassThroughGroups accepts every user_group condition.
func PassThroughGroups(UserUsage, domain.UserGroupCondition) bool { return true }

// GroupMembership checks u.Groups against the condition's groups.
func GroupMembership(u UserUsage, c domain.UserGroupCondition) bool {
	member := len(lo.Intersect(u.Groups, c.Groups)) > 0
	return member == c.Inclusive
}

type Option func(*Engine)

func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(e *Engine) { e.overlap = p }
}

func WithUserGroupPredicate(p UserGroupPredicate) Option {
	return func(e *Engine) { e.userGroups = p }
}

// WithClock is used by ResolveAutomatic callers that do not pass a time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	overlap    OverlapPolicy
	userGroups UserGroupPredicate
	now        func() time.Time
	logger     *slog.Logger
}

func New(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		overlap:    OverlapCountBoth,
		userGroups: PassThroughGroups,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock in UTC.
func (e *Engine) Now() time.Time { return e.now().UTC() }

// fault logs and counts a configuration problem.
func (e *Engine) fault(kind string, attrs ...any) {
	engineFaults.WithLabelValues(kind).Inc()
	e.logger.Error("discount rule misconfigured", append([]any{slog.String("fault", kind)}, attrs...)...)
}
