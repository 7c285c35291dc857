package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mirage/server/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	wrappedHandler := RateLimitMiddleware(5, 1*time.Minute)(okHandler())

	// Make 5 requests (should all succeed)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "127.0.0.1:12345"
		w := httptest.NewRecorder()

		wrappedHandler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: Expected status 200, got %d", i+1, w.Code)
		}
		if limit := w.Header().Get("X-RateLimit-Limit"); limit != "5" {
			t.Errorf("Request %d: Expected X-RateLimit-Limit '5', got '%s'", i+1, limit)
		}
	}

	// 6th request should be rate limited
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 (Too Many Requests), got %d", w.Code)
	}
	if w.Body.String() == "" {
		t.Error("Expected error response body, got empty")
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	// A different client is unaffected
	req = httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "127.0.0.2:12345"
	w = httptest.NewRecorder()
	wrappedHandler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected other client to pass, got %d", w.Code)
	}
}

func TestUserRateLimitMiddleware(t *testing.T) {
	wrappedHandler := UserRateLimitMiddleware(2, 1*time.Minute)(okHandler())

	request := func(sessionID string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		if sessionID != "" {
			req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{SessionID: sessionID}))
		}
		w := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(w, req)
		return w.Code
	}

	tests := []struct {
		name      string
		sessionID string
		expected  int
	}{
		{"first session request", "alpha", http.StatusOK},
		{"second session request", "alpha", http.StatusOK},
		{"session limit reached", "alpha", http.StatusTooManyRequests},
		{"other session on same IP", "beta", http.StatusOK},
		{"anonymous falls back to IP", "", http.StatusOK},
	}

	for _, tt := range tests {
		if got := request(tt.sessionID); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.expected, got)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		forwardedFor   string
		realIP         string
		expectedResult string
	}{
		{
			name:           "X-Forwarded-For takes precedence",
			remoteAddr:     "192.168.1.1:12345",
			forwardedFor:   "10.0.0.1",
			expectedResult: "10.0.0.1",
		},
		{
			name:           "first X-Forwarded-For entry",
			remoteAddr:     "192.168.1.1:12345",
			forwardedFor:   "10.0.0.1, 172.16.0.1",
			expectedResult: "10.0.0.1",
		},
		{
			name:           "X-Real-IP used if no X-Forwarded-For",
			remoteAddr:     "192.168.1.1:12345",
			realIP:         "10.0.0.2",
			expectedResult: "10.0.0.2",
		},
		{
			name:           "RemoteAddr used as fallback",
			remoteAddr:     "192.168.1.1:12345",
			expectedResult: "192.168.1.1",
		},
		{
			name:           "IPv6 address",
			remoteAddr:     "[::1]:12345",
			expectedResult: "::1",
		},
		{
			name:           "RemoteAddr without port",
			remoteAddr:     "192.168.1.9",
			expectedResult: "192.168.1.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			result := getClientIP(req)
			if result != tt.expectedResult {
				t.Errorf("Expected '%s', got '%s'", tt.expectedResult, result)
			}
		})
	}
}
