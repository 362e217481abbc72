// Package ratelimit throttles API callers. Memory keeps per-key token buckets inside the
// process; Redis shares a fixed-window counter between instances.
package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Limiter decides whether the caller identified by key may proceed. When it may not,
// retryAfter tells the caller how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Backend() string
}

// Logger is the minimal logging interface used by the middleware.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// KeyFunc extracts the throttling key from a request.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429 and a Retry-After header. Limiter
// errors let the request through. onReject may be nil.
func Middleware(l Limiter, key KeyFunc, logger Logger, onReject func(backend string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := l.Allow(r.Context(), k)
			if err != nil {
				if logger != nil {
					logger.Errorf("ratelimit: %s backend failed for %s: %v", l.Backend(), k, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if onReject != nil {
					onReject(l.Backend())
				}
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
