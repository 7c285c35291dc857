package auth

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// SessionIDKey is the context key for the guest session ID
	SessionIDKey ContextKey = "session_id"
	// PlayerNameKey is the context key for the player name
	PlayerNameKey ContextKey = "player_name"
	// ClaimsKey is the context key for JWT claims
	ClaimsKey ContextKey = "claims"
)

// AuthMiddleware validates JWT tokens and adds session info to request context
func (h *AuthHandlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			if r.Header.Get("Authorization") == "" {
				h.sendError(w, http.StatusUnauthorized, "MissingToken", "Authorization header required")
			} else {
				h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid authorization header format")
			}
			return
		}

		claims, err := h.jwtService.ValidateToken(tokenString)
		if err != nil {
			h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims stores session claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
	ctx = context.WithValue(ctx, PlayerNameKey, claims.PlayerName)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// bearerToken extracts the token from "Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetSessionID extracts the session ID from request context
func GetSessionID(r *http.Request) (string, bool) {
	sessionID, ok := r.Context().Value(SessionIDKey).(string)
	return sessionID, ok
}

// GetPlayerName extracts the player name from request context
func GetPlayerName(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(PlayerNameKey).(string)
	return name, ok
}

// GetClaims extracts JWT claims from request context
func GetClaims(r *http.Request) (*Claims, bool) {
	claims, ok := r.Context().Value(ClaimsKey).(*Claims)
	return claims, ok
}
