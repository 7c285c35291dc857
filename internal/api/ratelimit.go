package api

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mirage/server/internal/auth"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	rateLimitExceededJSON = `{"error":"RateLimited","message":"Too many requests. Please try again later.","retry_after":%d}`
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	// Global rate limit (all endpoints, per IP)
	GlobalLimit  int
	GlobalWindow time.Duration

	// Per-session rate limit (authenticated endpoints)
	UserLimit  int
	UserWindow time.Duration

	// Session creation
	AuthLimit  int
	AuthWindow time.Duration
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalLimit:  1000,
		GlobalWindow: 1 * time.Minute,
		UserLimit:    500,
		UserWindow:   1 * time.Minute,
		AuthLimit:    10,
		AuthWindow:   1 * time.Minute,
	}
}

// RateLimitMiddleware limits requests per client IP
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	return newLimiter(limit, window, getClientIP)
}

// UserRateLimitMiddleware limits requests per guest session.
// Requests without a session fall back to IP-based limiting.
func UserRateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	return newLimiter(limit, window, func(r *http.Request) string {
		if sessionID, ok := auth.GetSessionID(r); ok && sessionID != "" {
			return "session:" + sessionID
		}
		return getClientIP(r)
	})
}

func newLimiter(limit int, window time.Duration, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			context, err := instance.Get(r.Context(), keyFunc(r))
			if err != nil {
				// A broken limiter must not take the service down
				log.Printf("Rate limiter error: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

			if context.Reached {
				retryAfter := int(time.Until(time.Unix(context.Reset, 0)).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := fmt.Fprintf(w, rateLimitExceededJSON, retryAfter); err != nil {
					log.Printf("Error writing rate limit response: %v", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP address from the request
// Handles X-Forwarded-For header for proxied requests
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
