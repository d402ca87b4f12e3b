package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/auth/ratelimit"
)

// RateLimit throttles each key to the per-minute budget stored with it. It
// runs after Auth, so a missing KeyInfo means the route was public (health)
// and is let through.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.RateLimit))
			if limiter.Allow(info.ID, info.RateLimit) {
				next.ServeHTTP(w, r)
				return
			}

			wait := retryAfterSeconds(limiter.RetryAfter(info.ID, info.RateLimit))
			slog.Warn("caller throttled",
				"caller_id", info.ID,
				"role", info.Role,
				"path", r.URL.Path,
				"retry_after", wait,
			)
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

// retryAfterSeconds rounds up so clients never retry before a token exists.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
