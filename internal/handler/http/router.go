package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/auth"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/health"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/middleware"
)

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	ServiceName    string
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	PublicCacheTTL time.Duration
	PprofCIDRs     []string
	// AdminAuth guards administration routes and identifies shoppers who
	// send a bearer token. Nil leaves admin routes open, which is only
	// meant for local development.
	AdminAuth middleware.TokenValidator
}

// NewRouter creates a chi router with all coupon service routes registered.
func NewRouter(
	coupons CouponService,
	redemptions RedemptionService,
	automatic AutomaticDiscountService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	couponHandler := NewCouponHandler(coupons, redemptions, logger)
	automaticHandler := NewAutomaticDiscountHandler(automatic, logger)

	admin := func(r chi.Router) {
		if cfg.AdminAuth != nil {
			r.Use(middleware.Auth(cfg.AdminAuth))
			r.Use(middleware.RequireRole(auth.RoleAdmin))
		}
	}

	shopper := func(r chi.Router) chi.Router {
		if cfg.AdminAuth != nil {
			return r.With(middleware.OptionalAuth(cfg.AdminAuth))
		}
		return r
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		r.Route("/coupons", func(r chi.Router) {
			shopper(r).Post("/validate", couponHandler.ValidateCoupon)
			shopper(r).Post("/redeem", couponHandler.RedeemCoupon)
			r.With(middleware.CacheControl(cfg.PublicCacheTTL)).Get("/public", couponHandler.ListPublicCoupons)

			r.Group(func(r chi.Router) {
				admin(r)
				r.Post("/", couponHandler.CreateCoupon)
				r.Get("/", couponHandler.ListCoupons)
				r.Get("/code/{code}", couponHandler.GetCouponByCode)
				r.Get("/{id}", couponHandler.GetCoupon)
				r.Put("/{id}", couponHandler.UpdateCoupon)
				r.Post("/{id}/deactivate", couponHandler.DeactivateCoupon)
			})
		})

		r.Route("/automatic-discounts", func(r chi.Router) {
			shopper(r).Post("/apply", automaticHandler.ApplyAutomaticDiscounts)

			r.Group(func(r chi.Router) {
				admin(r)
				r.Post("/", automaticHandler.CreateAutomaticDiscount)
				r.Get("/", automaticHandler.ListAutomaticDiscounts)
				r.Get("/{id}", automaticHandler.GetAutomaticDiscount)
				r.Put("/{id}", automaticHandler.UpdateAutomaticDiscount)
				r.Post("/{id}/deactivate", automaticHandler.DeactivateAutomaticDiscount)
			})
		})
	})

	return r
}
