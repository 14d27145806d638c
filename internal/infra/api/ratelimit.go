package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/infra/logging"
	red "opticalfiber-backend/internal/infra/redis"
)

// RateLimit caps how often one company may hit the wrapped handler within
// window. It must run after the auth middleware. When redis is unreachable
// the request is let through.
func RateLimit(rl *red.RateLimiter, action string, limit int, window time.Duration, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if rl == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			v, err := rl.Check(r.Context(), red.CompanyActionKey(p.CompanyID, action), limit, window)
			if err != nil {
				l := logging.With(r.Context(), logger)
				l.Warn().Err(err).Str("action", action).Msg("rate limiter unavailable; allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !v.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs(v.RetryAfter, window)))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSecs rounds the time left in the window up to whole seconds.
func retryAfterSecs(left, window time.Duration) int {
	if left <= 0 {
		left = window
	}
	secs := int((left + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
