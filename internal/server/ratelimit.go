package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avaedge/internal/config"
)

// rateLimitMiddleware applies a process-wide token bucket in front of
// the handler. A nil configuration disables limiting.
func rateLimitMiddleware(cfg *config.RateLimit, next http.Handler) http.Handler {
	if cfg == nil {
		return next
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, r, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
