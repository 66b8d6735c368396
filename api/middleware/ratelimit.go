package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/bleu-ims/ims-gateway/api/responses"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
)

// RateLimitByIP throttles a route to limit requests per window per client IP.
// A non-positive limit disables throttling.
func RateLimitByIP(name string, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").WithDetails(map[string]any{"policy": name})
			responses.WriteError(r.Context(), logg, w, err)
		}),
	)
}

// LimitBody caps request bodies at maxBytes.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
