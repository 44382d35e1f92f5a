package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Middleware rejects requests whose key has no tokens left with 429. A
// request whose key cannot be derived is let through.
func Middleware(l *Limiter, keyFn httpx.KeyExtractor) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d := l.Consume(r.Context(), key)
			SetHeaders(w, d)
			if !d.Allowed {
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", d.ResetSeconds(),
				)
				WriteLimited(w, d)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActionMiddleware limits a single route per caller. The key is the session
// user when there is one and the client IP otherwise.
func ActionMiddleware(l *Limiter, action string) httpx.Middleware {
	return Middleware(l, func(r *http.Request) string {
		id := httpx.UserID(r.Context())
		if id == "" {
			id = httpx.IPKeyExtractor(r)
		}
		if id == "" {
			return ""
		}
		return ActionKey(id, action)
	})
}

func SetHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// WriteLimited writes the 429 response for an exhausted bucket.
func WriteLimited(w http.ResponseWriter, d Decision) {
	w.Header().Set("Retry-After", strconv.Itoa(max(d.ResetSeconds(), 1)))
	httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":     "Too many requests",
		"message":   "Please try again later",
		"resetTime": d.ResetAt.UTC().Format(time.RFC3339),
	})
}
