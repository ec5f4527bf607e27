package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"scoutgate/internal/models"
	"strconv"
	"strings"
)

// MessageThrottled is the 429 message for throttled clients.
const MessageThrottled = "Too many attempts, please try again later"

// Middleware returns HTTP middleware that throttles requests per client IP.
// scope prefixes the limiter key so several routes can share one limiter
// without sharing buckets. A nil limiter disables throttling.
func Middleware(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			allowed, info := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse(MessageThrottled, models.ErrorCodeRateLimitExceeded)
				if err := json.NewEncoder(w).Encode(errorResp); err != nil {
					slog.Error("Failed to encode throttle response", "error", err)
				}

				slog.Warn("Client throttled",
					"key", key,
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request, preferring proxy headers
// and dropping the port from RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
