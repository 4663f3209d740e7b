package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/service"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/httputil"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/middleware"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/pagination"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/validator"
)

// CouponHandler serves coupon administration, validation and redemption.
type CouponHandler struct {
	coupons     CouponService
	redemptions RedemptionService
	logger      *slog.Logger
}

func NewCouponHandler(coupons CouponService, redemptions RedemptionService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		coupons:     coupons,
		redemptions: redemptions,
		logger:      logger,
	}
}

// --- Request DTOs ---

type CreateCouponRequest struct {
	Code                  string               `json:"code" validate:"omitempty,max=50,coupon_code"`
	Name                  string               `json:"name" validate:"required,max=255"`
	Description           string               `json:"description" validate:"max=2000"`
	Type                  string               `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping buy_x_get_y"`
	Value                 decimal.Decimal      `json:"value" validate:"gte=0"`
	MinOrderAmount        *decimal.Decimal     `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount     *decimal.Decimal     `json:"max_discount_amount" validate:"omitempty,gte=0"`
	UsageLimit            *int                 `json:"usage_limit" validate:"omitempty,gte=1"`
	PerUserLimit          *int                 `json:"per_user_limit" validate:"omitempty,gte=1"`
	IsActive              *bool                `json:"is_active"`
	IsPublic              bool                 `json:"is_public"`
	IsStackable           bool                 `json:"is_stackable"`
	FirstTimeCustomerOnly bool                 `json:"first_time_customer_only"`
	ValidFrom             time.Time            `json:"valid_from" validate:"required"`
	ValidUntil            time.Time            `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	Conditions            domain.Conditions    `json:"conditions"`
	BuyXGetY              *domain.BuyXGetYRule `json:"buy_x_get_y"`
}

type UpdateCouponRequest struct {
	Name                  *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description           *string              `json:"description" validate:"omitempty,max=2000"`
	Type                  *string              `json:"type" validate:"omitempty,oneof=percentage fixed_amount free_shipping buy_x_get_y"`
	Value                 *decimal.Decimal     `json:"value" validate:"omitempty,gte=0"`
	MinOrderAmount        *decimal.Decimal     `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount     *decimal.Decimal     `json:"max_discount_amount" validate:"omitempty,gte=0"`
	UsageLimit            *int                 `json:"usage_limit" validate:"omitempty,gte=1"`
	PerUserLimit          *int                 `json:"per_user_limit" validate:"omitempty,gte=1"`
	IsActive              *bool                `json:"is_active"`
	IsPublic              *bool                `json:"is_public"`
	IsStackable           *bool                `json:"is_stackable"`
	FirstTimeCustomerOnly *bool                `json:"first_time_customer_only"`
	ValidFrom             *time.Time           `json:"valid_from"`
	ValidUntil            *time.Time           `json:"valid_until"`
	Conditions            domain.Conditions    `json:"conditions"`
	BuyXGetY              *domain.BuyXGetYRule `json:"buy_x_get_y"`
}

type ValidateCouponRequest struct {
	Code   string      `json:"code" validate:"required,max=50"`
	UserID string      `json:"user_id" validate:"max=64"`
	Cart   domain.Cart `json:"cart"`
}

type RedeemCouponRequest struct {
	Code    string      `json:"code" validate:"required,max=50"`
	UserID  string      `json:"user_id" validate:"max=64"`
	OrderID string      `json:"order_id" validate:"required,max=64"`
	Cart    domain.Cart `json:"cart"`
}

type publicCoupons struct {
	Data []domain.Coupon `json:"data"`
}

// --- Handlers ---

// CreateCoupon handles POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	c, err := h.coupons.CreateCoupon(r.Context(), &service.CreateCouponInput{
		Code:                  req.Code,
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  domain.DiscountType(req.Type),
		Value:                 req.Value,
		MinOrderAmount:        req.MinOrderAmount,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		UsageLimit:            req.UsageLimit,
		PerUserLimit:          req.PerUserLimit,
		IsActive:              req.IsActive,
		IsPublic:              req.IsPublic,
		IsStackable:           req.IsStackable,
		FirstTimeCustomerOnly: req.FirstTimeCustomerOnly,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		Conditions:            req.Conditions,
		BuyXGetY:              req.BuyXGetY,
		CreatedBy:             middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, c)
}

// ListCoupons handles GET /api/v1/coupons
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	filter := repository.CouponFilter{
		IsActive: parseBoolQuery(r, "is_active"),
		IsPublic: parseBoolQuery(r, "is_public"),
		Page:     p.Page,
		PerPage:  p.PerPage,
	}
	if v := r.URL.Query().Get("type"); v != "" {
		t := domain.DiscountType(v)
		if !domain.IsValidDiscountType(t) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{Error: &httputil.ErrorResponse{
				Code: "INVALID_PARAMETER", Message: "unknown discount type: " + v,
			}})
			return
		}
		filter.Type = &t
	}

	coupons, total, err := h.coupons.ListCoupons(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(coupons, total, p.Page, p.PerPage))
}

// ListPublicCoupons handles GET /api/v1/coupons/public
func (h *CouponHandler) ListPublicCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListPublicCoupons(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	// The envelope omits empty data, so shoppers get an explicit list.
	httputil.WriteJSON(w, http.StatusOK, publicCoupons{Data: lo.Ternary(coupons == nil, []domain.Coupon{}, coupons)})
}

// GetCoupon handles GET /api/v1/coupons/{id}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	c, err := h.coupons.GetCoupon(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// GetCouponByCode handles GET /api/v1/coupons/code/{code}
func (h *CouponHandler) GetCouponByCode(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetCouponByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// UpdateCoupon handles PUT /api/v1/coupons/{id}
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateCouponRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	in := &service.UpdateCouponInput{
		Name:                  req.Name,
		Description:           req.Description,
		Value:                 req.Value,
		MinOrderAmount:        req.MinOrderAmount,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		UsageLimit:            req.UsageLimit,
		PerUserLimit:          req.PerUserLimit,
		IsActive:              req.IsActive,
		IsPublic:              req.IsPublic,
		IsStackable:           req.IsStackable,
		FirstTimeCustomerOnly: req.FirstTimeCustomerOnly,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		Conditions:            req.Conditions,
		BuyXGetY:              req.BuyXGetY,
	}
	if req.Type != nil {
		t := domain.DiscountType(*req.Type)
		in.Type = &t
	}

	c, err := h.coupons.UpdateCoupon(r.Context(), id.String(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// DeactivateCoupon handles POST /api/v1/coupons/{id}/deactivate
func (h *CouponHandler) DeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	c, err := h.coupons.DeactivateCoupon(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// ValidateCoupon handles POST /api/v1/coupons/validate. Ineligible coupons
// are a 200 with is_valid=false.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.redemptions.ValidateCoupon(r.Context(), req.Code, req.Cart, shopperID(r, req.UserID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// RedeemCoupon handles POST /api/v1/coupons/redeem
func (h *CouponHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	var req RedeemCouponRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	redemption, err := h.redemptions.RedeemCoupon(r.Context(), &service.RedeemInput{
		Code:    req.Code,
		UserID:  shopperID(r, req.UserID),
		OrderID: req.OrderID,
		Cart:    req.Cart,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, redemption)
}
