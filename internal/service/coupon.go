package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/slug"
)

const (
	codePrefixLen     = 12
	codeSuffixBytes   = 2
	codeGenerateTries = 3
)

// CouponService administers coupons and resolves codes to coupons.
type CouponService struct {
	repo     repository.CouponRepository
	cache    repository.CouponCache
	index    CodeIndex
	producer EventPublisher
	logger   *slog.Logger
}

func NewCouponService(
	repo repository.CouponRepository,
	cache repository.CouponCache,
	index CodeIndex,
	producer EventPublisher,
	logger *slog.Logger,
) *CouponService {
	return &CouponService{
		repo:     repo,
		cache:    cache,
		index:    index,
		producer: producer,
		logger:   logger,
	}
}

// CreateCouponInput holds the parameters for creating a coupon. A blank
// Code is generated from Name.
type CreateCouponInput struct {
	Code                  string
	Name                  string
	Description           string
	Type                  domain.DiscountType
	Value                 decimal.Decimal
	MinOrderAmount        *decimal.Decimal
	MaxDiscountAmount     *decimal.Decimal
	UsageLimit            *int
	PerUserLimit          *int
	IsActive              *bool
	IsPublic              bool
	IsStackable           bool
	FirstTimeCustomerOnly bool
	ValidFrom             time.Time
	ValidUntil            time.Time
	Conditions            domain.Conditions
	BuyXGetY              *domain.BuyXGetYRule
	CreatedBy             string
}

// UpdateCouponInput carries a partial update. The code cannot change.
type UpdateCouponInput struct {
	Name                  *string
	Description           *string
	Type                  *domain.DiscountType
	Value                 *decimal.Decimal
	MinOrderAmount        *decimal.Decimal
	MaxDiscountAmount     *decimal.Decimal
	UsageLimit            *int
	PerUserLimit          *int
	IsActive              *bool
	IsPublic              *bool
	IsStackable           *bool
	FirstTimeCustomerOnly *bool
	ValidFrom             *time.Time
	ValidUntil            *time.Time
	Conditions            domain.Conditions
	BuyXGetY              *domain.BuyXGetYRule
}

func (s *CouponService) CreateCoupon(ctx context.Context, in *CreateCouponInput) (*domain.Coupon, error) {
	now := time.Now().UTC()
	c := &domain.Coupon{
		ID:          uuid.New().String(),
		Code:        domain.NormalizeCode(in.Code),
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
		UsageLimit:   in.UsageLimit,
		PerUserLimit: domain.DefaultPerUserLimit,
		IsPublic:     in.IsPublic,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.PerUserLimit != nil {
		c.PerUserLimit = *in.PerUserLimit
	}
	if c.Conditions == nil {
		c.Conditions = domain.Conditions{}
	}

	generated := c.Code == ""
	if generated {
		c.Code = generateCode(c.Name)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := s.repo.Create(ctx, c)
	for try := 1; generated && errors.Is(err, apperrors.ErrAlreadyExists) && try < codeGenerateTries; try++ {
		c.Code = generateCode(c.Name)
		err = s.repo.Create(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	s.index.Add(c.Code)

	if err := s.producer.PublishCouponCreated(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish coupon.created event",
			slog.String("coupon_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "coupon created",
		slog.String("coupon_id", c.ID),
		slog.String("code", c.Code),
		slog.String("type", string(c.Type)),
	)
	return c, nil
}

// generateCode returns PREFIX-XXXX with a random hex suffix.
func generateCode(name string) string {
	prefix := slug.CodePrefix(name, codePrefixLen)
	if prefix == "" {
		prefix = "COUPON"
	}
	b := make([]byte, codeSuffixBytes)
	_, _ = rand.Read(b)
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(b))
}

func (s *CouponService) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon by id: %w", err)
	}
	return c, nil
}

// GetCouponByCode looks a code up through the code index, then the cache,
// then the database. Codes the index has never seen are not found without
// any I/O.
func (s *CouponService) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCode(code)
	if code == "" || !s.index.MayContain(code) {
		return nil, apperrors.NotFound("coupon", code)
	}

	cached, err := s.cache.Get(ctx, code)
	if err != nil {
		s.logger.WarnContext(ctx, "coupon cache read failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return cached, nil
	}

	c, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "coupon cache write failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	return c, nil
}

// GetFreshCouponByCode skips the cache, for callers that need the current
// usage count. It also skips the code index: a replica whose index has not
// yet seen a new code must still redeem it. A hit is added to the index.
func (s *CouponService) GetFreshCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, apperrors.NotFound("coupon", code)
	}
	c, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.index.Add(c.Code)
	return c, nil
}

func (s *CouponService) loadByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

func (s *CouponService) ListCoupons(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error) {
	filter.Page, filter.PerPage = clampPage(filter.Page, filter.PerPage)
	coupons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, total, nil
}

// ListPublicCoupons returns the coupons shoppers may browse right now.
func (s *CouponService) ListPublicCoupons(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.repo.ListPublic(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list public coupons: %w", err)
	}
	return coupons, nil
}

func (s *CouponService) UpdateCoupon(ctx context.Context, id string, in *UpdateCouponInput) (*domain.Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon for update: %w", err)
	}

	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.Value != nil {
		c.Value = *in.Value
	}
	if in.MinOrderAmount != nil {
		c.MinOrderAmount = in.MinOrderAmount
	}
	if in.MaxDiscountAmount != nil {
		c.MaxDiscountAmount = in.MaxDiscountAmount
	}
	if in.UsageLimit != nil {
		c.UsageLimit = in.UsageLimit
	}
	if in.PerUserLimit != nil {
		c.PerUserLimit = *in.PerUserLimit
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.IsPublic != nil {
		c.IsPublic = *in.IsPublic
	}
	if in.IsStackable != nil {
		c.IsStackable = *in.IsStackable
	}
	if in.FirstTimeCustomerOnly != nil {
		c.FirstTimeCustomerOnly = *in.FirstTimeCustomerOnly
	}
	if in.ValidFrom != nil {
		c.ValidFrom = in.ValidFrom.UTC()
	}
	if in.ValidUntil != nil {
		c.ValidUntil = in.ValidUntil.UTC()
	}
	if in.Conditions != nil {
		c.Conditions = in.Conditions
	}
	if in.BuyXGetY != nil {
		c.BuyXGetY = in.BuyXGetY
	}
	if c.Type != domain.DiscountTypeBuyXGetY {
		c.BuyXGetY = nil
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.save(ctx, c, "coupon updated")
}

// DeactivateCoupon disables a coupon. Coupons are never deleted so that
// usage history keeps its reference.
func (s *CouponService) DeactivateCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon for deactivate: %w", err)
	}
	if !c.IsActive {
		return c, nil
	}
	c.IsActive = false
	return s.save(ctx, c, "coupon deactivated")
}

func (s *CouponService) save(ctx context.Context, c *domain.Coupon, msg string) (*domain.Coupon, error) {
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update coupon: %w", err)
	}
	s.invalidate(ctx, c.Code)

	if err := s.producer.PublishCouponUpdated(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish coupon.updated event",
			slog.String("coupon_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, msg,
		slog.String("coupon_id", c.ID),
		slog.String("code", c.Code),
		slog.Bool("is_active", c.IsActive),
	)
	return c, nil
}

func (s *CouponService) invalidate(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "coupon cache invalidation failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
}
