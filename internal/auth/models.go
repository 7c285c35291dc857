package auth

import (
	"time"
)

// SessionRequest represents a guest session request
type SessionRequest struct {
	PlayerName string `json:"player_name" validate:"required,min=3,max=32,alphanum"`
}

// SessionResponse represents a session token response
type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionID   string    `json:"session_id"`
	PlayerName  string    `json:"player_name"`
	Role        string    `json:"role"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
