package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/tracing"
)

// AutomaticDiscountService administers code-less discounts and applies them
// to carts.
type AutomaticDiscountService struct {
	repo   repository.AutomaticDiscountRepository
	usages repository.UsageRepository
	engine *engine.Engine
	groups GroupResolver
	logger *slog.Logger
}

func NewAutomaticDiscountService(
	repo repository.AutomaticDiscountRepository,
	usages repository.UsageRepository,
	eng *engine.Engine,
	groups GroupResolver,
	logger *slog.Logger,
) *AutomaticDiscountService {
	return &AutomaticDiscountService{
		repo:   repo,
		usages: usages,
		engine: eng,
		groups: groups,
		logger: logger,
	}
}

type CreateAutomaticDiscountInput struct {
	Name                  string
	Description           string
	Type                  domain.DiscountType
	Value                 decimal.Decimal
	MinOrderAmount        *decimal.Decimal
	MaxDiscountAmount     *decimal.Decimal
	Priority              int
	IsActive              *bool
	IsStackable           bool
	FirstTimeCustomerOnly bool
	ValidFrom             time.Time
	ValidUntil            time.Time
	Conditions            domain.Conditions
	BuyXGetY              *domain.BuyXGetYRule
}

type UpdateAutomaticDiscountInput struct {
	Name                  *string
	Description           *string
	Type                  *domain.DiscountType
	Value                 *decimal.Decimal
	MinOrderAmount        *decimal.Decimal
	MaxDiscountAmount     *decimal.Decimal
	Priority              *int
	IsActive              *bool
	IsStackable           *bool
	FirstTimeCustomerOnly *bool
	ValidFrom             *time.Time
	ValidUntil            *time.Time
	Conditions            domain.Conditions
	BuyXGetY              *domain.BuyXGetYRule
}

func (s *AutomaticDiscountService) CreateAutomaticDiscount(ctx context.Context, in *CreateAutomaticDiscountInput) (*domain.AutomaticDiscount, error) {
	now := time.Now().UTC()
	d := &domain.AutomaticDiscount{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		DiscountRule: domain.DiscountRule{
			Type:                  in.Type,
			Value:                 in.Value,
			MinOrderAmount:        in.MinOrderAmount,
			MaxDiscountAmount:     in.MaxDiscountAmount,
			IsActive:              in.IsActive == nil || *in.IsActive,
			IsStackable:           in.IsStackable,
			FirstTimeCustomerOnly: in.FirstTimeCustomerOnly,
			ValidFrom:             in.ValidFrom.UTC(),
			ValidUntil:            in.ValidUntil.UTC(),
			Conditions:            in.Conditions,
			BuyXGetY:              in.BuyXGetY,
		},
		Priority:  in.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Conditions == nil {
		d.Conditions = domain.Conditions{}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create automatic discount: %w", err)
	}

	s.logger.InfoContext(ctx, "automatic discount created",
		slog.String("discount_id", d.ID),
		slog.String("type", string(d.Type)),
		slog.Int("priority", d.Priority),
	)
	return d, nil
}

func (s *AutomaticDiscountService) GetAutomaticDiscount(ctx context.Context, id string) (*domain.AutomaticDiscount, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get automatic discount: %w", err)
	}
	return d, nil
}

func (s *AutomaticDiscountService) ListAutomaticDiscounts(ctx context.Context, filter repository.AutomaticDiscountFilter) ([]domain.AutomaticDiscount, int, error) {
	filter.Page, filter.PerPage = clampPage(filter.Page, filter.PerPage)
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list automatic discounts: %w", err)
	}
	return discounts, total, nil
}

func (s *AutomaticDiscountService) UpdateAutomaticDiscount(ctx context.Context, id string, in *UpdateAutomaticDiscountInput) (*domain.AutomaticDiscount, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get automatic discount for update: %w", err)
	}

	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.Type != nil {
		d.Type = *in.Type
	}
	if in.Value != nil {
		d.Value = *in.Value
	}
	if in.MinOrderAmount != nil {
		d.MinOrderAmount = in.MinOrderAmount
	}
	if in.MaxDiscountAmount != nil {
		d.MaxDiscountAmount = in.MaxDiscountAmount
	}
	if in.Priority != nil {
		d.Priority = *in.Priority
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	if in.IsStackable != nil {
		d.IsStackable = *in.IsStackable
	}
	if in.FirstTimeCustomerOnly != nil {
		d.FirstTimeCustomerOnly = *in.FirstTimeCustomerOnly
	}
	if in.ValidFrom != nil {
		d.ValidFrom = in.ValidFrom.UTC()
	}
	if in.ValidUntil != nil {
		d.ValidUntil = in.ValidUntil.UTC()
	}
	if in.Conditions != nil {
		d.Conditions = in.Conditions
	}
	if in.BuyXGetY != nil {
		d.BuyXGetY = in.BuyXGetY
	}
	if d.Type != domain.DiscountTypeBuyXGetY {
		d.BuyXGetY = nil
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update automatic discount: %w", err)
	}

	s.logger.InfoContext(ctx, "automatic discount updated", slog.String("discount_id", d.ID))
	return d, nil
}

func (s *AutomaticDiscountService) DeactivateAutomaticDiscount(ctx context.Context, id string) (*domain.AutomaticDiscount, error) {
	inactive := false
	return s.UpdateAutomaticDiscount(ctx, id, &UpdateAutomaticDiscountInput{IsActive: &inactive})
}

// ApplyAutomaticDiscounts resolves which active automatic discounts the
// cart receives.
func (s *AutomaticDiscountService) ApplyAutomaticDiscounts(ctx context.Context, cart domain.Cart, userID string) (engine.StackResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "AutomaticDiscountService.ApplyAutomaticDiscounts",
		attribute.Int("cart.lines", len(cart.Lines)),
	)
	defer span.End()

	now := s.engine.Now()

	var (
		discounts   []domain.AutomaticDiscount
		priorOrders int
		groups      []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		discounts, err = s.repo.ListActive(gctx, now)
		if err != nil {
			return fmt.Errorf("list active automatic discounts: %w", err)
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
		return engine.StackResult{}, err
	}

	res := s.engine.ResolveAutomatic(discounts, cart, now, engine.UserUsage{
		UserID:      userID,
		PriorOrders: priorOrders,
		Groups:      groups,
	})

	s.logger.DebugContext(ctx, "automatic discounts resolved",
		slog.Int("candidates", len(discounts)),
		slog.Int("applied", len(res.Applied)),
		slog.String("total_discount", res.TotalDiscount.String()),
	)
	return res, nil
}
