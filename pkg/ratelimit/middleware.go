package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/prepdeck/membership/pkg/clientip"
)

// KeyFunc extracts a rate limit qualifier from an HTTP request.
type KeyFunc func(*http.Request) string

// KeyByIP qualifies requests by caller IP. Used for unauthenticated routes.
func KeyByIP(r *http.Request) string {
	return clientip.GetIP(r)
}

// KeyByHeader qualifies requests by the value of a header, falling back to
// the caller IP when the header is absent.
func KeyByHeader(header string) KeyFunc {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return v
		}
		return clientip.GetIP(r)
	}
}

// MiddlewareOption configures middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onLimitReached func(r *http.Request, qualifier string, result *Result)
	skipFunc       func(r *http.Request) bool
}

// WithOnLimitReached registers a hook invoked on every rejection, after the
// 429 has been decided. Used to record rejection diagnostics; the hook cannot
// un-reject the request.
func WithOnLimitReached(fn func(r *http.Request, qualifier string, result *Result)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onLimitReached = fn }
}

// WithSkipFunc sets a predicate that bypasses rate limiting for matching requests.
func WithSkipFunc(fn func(r *http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.skipFunc = fn }
}

// Middleware creates HTTP middleware enforcing the limiter's budget per
// qualifier. Store errors fail open so a storage outage does not take the
// API down with it.
func Middleware(limiter *Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil {
		panic("ratelimit.Middleware: limiter is required")
	}
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}

	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skipFunc != nil && cfg.skipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			qualifier := keyFunc(r)
			if qualifier == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), qualifier)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(result.RetryAfter().Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				if cfg.onLimitReached != nil {
					cfg.onLimitReached(r, qualifier, result)
				}

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
