package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/service"
)

// LimitByIP caps requests per client IP per minute ahead of key lookup, so
// credential guessing cannot hammer the key store. Zero disables it.
//
// Requests are keyed by service.ClientIP, the same address the key
// allow-list and the request log see. Only Retry-After is set; the
// X-RateLimit-* headers belong to the per-key limiter.
func LimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(KeyByClientIP),
		httprate.WithResponseHeaders(httprate.ResponseHeaders{RetryAfter: "Retry-After"}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem.Write(w, http.StatusTooManyRequests, "Too many requests from this address", GetRequestID(r.Context()))
		}),
	)
}

// KeyByClientIP is an httprate key function over service.ClientIP.
func KeyByClientIP(r *http.Request) (string, error) {
	return service.ClientIP(r), nil
}
