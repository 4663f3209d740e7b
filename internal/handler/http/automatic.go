package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/service"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/httputil"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/pagination"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/validator"
)

// AutomaticDiscountHandler serves code-less discounts.
type AutomaticDiscountHandler struct {
	service AutomaticDiscountService
	logger  *slog.Logger
}

func NewAutomaticDiscountHandler(svc AutomaticDiscountService, logger *slog.Logger) *AutomaticDiscountHandler {
	return &AutomaticDiscountHandler{service: svc, logger: logger}
}

type CreateAutomaticDiscountRequest struct {
	Name                  string               `json:"name" validate:"required,max=255"`
	Description           string               `json:"description" validate:"max=2000"`
	Type                  string               `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping buy_x_get_y"`
	Value                 decimal.Decimal      `json:"value" validate:"gte=0"`
	MinOrderAmount        *decimal.Decimal     `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount     *decimal.Decimal     `json:"max_discount_amount" validate:"omitempty,gte=0"`
	Priority              int                  `json:"priority"`
	IsActive              *bool                `json:"is_active"`
	IsStackable           bool                 `json:"is_stackable"`
	FirstTimeCustomerOnly bool                 `json:"first_time_customer_only"`
	ValidFrom             time.Time            `json:"valid_from" validate:"required"`
	ValidUntil            time.Time            `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	Conditions            domain.Conditions    `json:"conditions"`
	BuyXGetY              *domain.BuyXGetYRule `json:"buy_x_get_y"`
}

type UpdateAutomaticDiscountRequest struct {
	Name                  *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description           *string              `json:"description" validate:"omitempty,max=2000"`
	Type                  *string              `json:"type" validate:"omitempty,oneof=percentage fixed_amount free_shipping buy_x_get_y"`
	Value                 *decimal.Decimal     `json:"value" validate:"omitempty,gte=0"`
	MinOrderAmount        *decimal.Decimal     `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount     *decimal.Decimal     `json:"max_discount_amount" validate:"omitempty,gte=0"`
	Priority              *int                 `json:"priority"`
	IsActive              *bool                `json:"is_active"`
	IsStackable           *bool                `json:"is_stackable"`
	FirstTimeCustomerOnly *bool                `json:"first_time_customer_only"`
	ValidFrom             *time.Time           `json:"valid_from"`
	ValidUntil            *time.Time           `json:"valid_until"`
	Conditions            domain.Conditions    `json:"conditions"`
	BuyXGetY              *domain.BuyXGetYRule `json:"buy_x_get_y"`
}

type ApplyAutomaticDiscountsRequest struct {
	UserID string      `json:"user_id" validate:"max=64"`
	Cart   domain.Cart `json:"cart"`
}

// CreateAutomaticDiscount handles POST /api/v1/automatic-discounts
func (h *AutomaticDiscountHandler) CreateAutomaticDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateAutomaticDiscountRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	d, err := h.service.CreateAutomaticDiscount(r.Context(), &service.CreateAutomaticDiscountInput{
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  domain.DiscountType(req.Type),
		Value:                 req.Value,
		MinOrderAmount:        req.MinOrderAmount,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		Priority:              req.Priority,
		IsActive:              req.IsActive,
		IsStackable:           req.IsStackable,
		FirstTimeCustomerOnly: req.FirstTimeCustomerOnly,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		Conditions:            req.Conditions,
		BuyXGetY:              req.BuyXGetY,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, d)
}

// ListAutomaticDiscounts handles GET /api/v1/automatic-discounts
func (h *AutomaticDiscountHandler) ListAutomaticDiscounts(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	discounts, total, err := h.service.ListAutomaticDiscounts(r.Context(), repository.AutomaticDiscountFilter{
		IsActive: parseBoolQuery(r, "is_active"),
		Page:     p.Page,
		PerPage:  p.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(discounts, total, p.Page, p.PerPage))
}

// GetAutomaticDiscount handles GET /api/v1/automatic-discounts/{id}
func (h *AutomaticDiscountHandler) GetAutomaticDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	d, err := h.service.GetAutomaticDiscount(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}

// UpdateAutomaticDiscount handles PUT /api/v1/automatic-discounts/{id}
func (h *AutomaticDiscountHandler) UpdateAutomaticDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateAutomaticDiscountRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	in := &service.UpdateAutomaticDiscountInput{
		Name:                  req.Name,
		Description:           req.Description,
		Value:                 req.Value,
		MinOrderAmount:        req.MinOrderAmount,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		Priority:              req.Priority,
		IsActive:              req.IsActive,
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

	d, err := h.service.UpdateAutomaticDiscount(r.Context(), id.String(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}

// DeactivateAutomaticDiscount handles POST /api/v1/automatic-discounts/{id}/deactivate
func (h *AutomaticDiscountHandler) DeactivateAutomaticDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	d, err := h.service.DeactivateAutomaticDiscount(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}

// ApplyAutomaticDiscounts handles POST /api/v1/automatic-discounts/apply
func (h *AutomaticDiscountHandler) ApplyAutomaticDiscounts(w http.ResponseWriter, r *http.Request) {
	var req ApplyAutomaticDiscountsRequest
	if err := validator.DecodeAndValidate(r, &req, maxBodyBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.ApplyAutomaticDiscounts(r.Context(), req.Cart, shopperID(r, req.UserID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
