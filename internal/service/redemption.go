package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/tracing"
)

// RedemptionService validates coupons against carts and records redemptions.
type RedemptionService struct {
	coupons  *CouponService
	usages   repository.UsageRepository
	engine   *engine.Engine
	groups   GroupResolver
	producer EventPublisher
	logger   *slog.Logger
}

// NewRedemptionService wires the service. groups may be nil, in which case
// shoppers are evaluated without group memberships.
func NewRedemptionService(
	coupons *CouponService,
	usages repository.UsageRepository,
	eng *engine.Engine,
	groups GroupResolver,
	producer EventPublisher,
	logger *slog.Logger,
) *RedemptionService {
	return &RedemptionService{
		coupons:  coupons,
		usages:   usages,
		engine:   eng,
		groups:   groups,
		producer: producer,
		logger:   logger,
	}
}

// RedeemInput identifies the coupon, the shopper and the order being placed.
type RedeemInput struct {
	Code    string
	UserID  string
	OrderID string
	Cart    domain.Cart
}

// Redemption is a recorded use together with the discount it granted.
type Redemption struct {
	Usage  *domain.CouponUsage   `json:"usage"`
	Result domain.DiscountResult `json:"result"`
}

// ValidateCoupon evaluates code against cart. Ineligibility, including an
// unknown code, is reported in the result rather than as an error.
func (s *RedemptionService) ValidateCoupon(ctx context.Context, code string, cart domain.Cart, userID string) (domain.DiscountResult, error) {
	c, u, err := s.load(ctx, code, userID, false)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Invalid(ReasonNotFound), nil
		}
		return domain.DiscountResult{}, fmt.Errorf("load coupon for validation: %w", err)
	}

	res := s.engine.Apply(c, cart, u)
	s.logger.DebugContext(ctx, "coupon validated",
		slog.String("code", c.Code),
		slog.Bool("valid", res.IsValid),
		slog.String("reason", res.ErrorMessage),
		slog.String("discount", res.DiscountAmount.String()),
	)
	return res, nil
}

// RedeemCoupon re-validates against the stored coupon and records the use.
// The global cap is enforced atomically by the usage repository, so two
// shoppers racing for the last use cannot both succeed.
func (s *RedemptionService) RedeemCoupon(ctx context.Context, in *RedeemInput) (*Redemption, error) {
	if in.OrderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "RedemptionService.RedeemCoupon",
		attribute.String("coupon.code", in.Code),
		attribute.String("order.id", in.OrderID),
	)
	defer span.End()

	c, u, err := s.load(ctx, in.Code, in.UserID, true)
	if err != nil {
		return nil, apperrors.Wrap(err, "load coupon for redemption")
	}

	res := s.engine.Apply(c, in.Cart, u)
	if !res.IsValid {
		switch res.ErrorMessage {
		case engine.ReasonUsageLimit, engine.ReasonPerUserLimit:
			return nil, apperrors.Conflict(res.ErrorMessage)
		}
		return nil, apperrors.InvalidInput(res.ErrorMessage)
	}

	usage := &domain.CouponUsage{
		ID:             uuid.New().String(),
		CouponID:       c.ID,
		UserID:         in.UserID,
		OrderID:        in.OrderID,
		DiscountAmount: res.DiscountAmount,
		OriginalAmount: in.Cart.Amount(),
		Status:         domain.UsageStatusRedeemed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.usages.Redeem(ctx, usage); err != nil {
		return nil, fmt.Errorf("redeem coupon: %w", err)
	}
	s.coupons.invalidate(ctx, c.Code)

	if err := s.producer.PublishCouponRedeemed(ctx, c.Code, usage); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish coupon.redeemed event",
			slog.String("coupon_id", c.ID),
			slog.String("order_id", in.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "coupon redeemed",
		slog.String("coupon_id", c.ID),
		slog.String("code", c.Code),
		slog.String("order_id", in.OrderID),
		slog.String("discount", usage.DiscountAmount.String()),
	)
	return &Redemption{Usage: usage, Result: res}, nil
}

// ReleaseRedemption gives back the uses recorded on a canceled order and
// returns how many were released. Releasing twice is a no-op.
func (s *RedemptionService) ReleaseRedemption(ctx context.Context, orderID string) (int, error) {
	released, err := s.usages.ReleaseByOrder(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("release redemptions: %w", err)
	}

	for i := range released {
		s.invalidateByID(ctx, released[i].CouponID)
		if err := s.producer.PublishRedemptionReleased(ctx, &released[i]); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish coupon.redemption_released event",
				slog.String("coupon_id", released[i].CouponID),
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(released) > 0 {
		s.logger.InfoContext(ctx, "coupon redemptions released",
			slog.String("order_id", orderID),
			slog.Int("count", len(released)),
		)
	}
	return len(released), nil
}

// invalidateByID drops the cached copy of a coupon whose usage count changed
// outside RedeemCoupon. The cache is keyed by code, so the row is looked up.
func (s *RedemptionService) invalidateByID(ctx context.Context, couponID string) {
	c, err := s.coupons.GetCoupon(ctx, couponID)
	if err != nil {
		s.logger.WarnContext(ctx, "coupon lookup for cache invalidation failed",
			slog.String("coupon_id", couponID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.coupons.invalidate(ctx, c.Code)
}

// load fetches the coupon and what the engine needs to know about the
// shopper concurrently. fresh bypasses the cache.
func (s *RedemptionService) load(ctx context.Context, code, userID string, fresh bool) (*domain.Coupon, engine.UserUsage, error) {
	var (
		coupon      *domain.Coupon
		uses        int
		priorOrders int
		groups      []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if fresh {
			coupon, err = s.coupons.GetFreshCouponByCode(gctx, code)
		} else {
			coupon, err = s.coupons.GetCouponByCode(gctx, code)
		}
		if err != nil || userID == "" {
			return err
		}
		uses, err = s.usages.CountByUser(gctx, coupon.ID, userID)
		if err != nil {
			return fmt.Errorf("count user redemptions: %w", err)
		}
		return nil
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			priorOrders, err = s.usages.CountOrdersByUser(gctx, userID)
			if err != nil {
				return fmt.Errorf("count user orders: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			groups = lookupGroups(gctx, s.groups, userID, s.logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, engine.UserUsage{}, err
	}

	return coupon, engine.UserUsage{
		UserID:      userID,
		Uses:        uses,
		PriorOrders: priorOrders,
		Groups:      groups,
	}, nil
}

// lookupGroups never fails the request. Without memberships the shopper
// matches no inclusive user_group condition.
func lookupGroups(ctx context.Context, r GroupResolver, userID string, logger *slog.Logger) []string {
	if r == nil || userID == "" {
		return nil
	}
	groups, err := r.Groups(ctx, userID)
	if err != nil {
		logger.WarnContext(ctx, "user group lookup failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return groups
}
