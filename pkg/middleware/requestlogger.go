package middleware

import (
	"log/slog"
	"net/http"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/logger"
)

// UserHeader is set by the gateway for authenticated shoppers.
const UserHeader = "X-User-ID"

// RequestLogger stores a logger enriched with correlation_id, user_id and
// trace ids in the request context, for handlers to fetch with
// logger.FromContext. Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				userID = r.Header.Get(UserHeader)
			}
			if userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
