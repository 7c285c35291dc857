package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mirage/server/internal/config"
)

const tokenIssuer = "mirage-server"

// RoleGuest is the only role handed out by guest sessions
const RoleGuest = "guest"

// Claims represents JWT claims structure
type Claims struct {
	jwt.RegisteredClaims

	// Custom claims
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
}

// JWTService handles JWT token operations
type JWTService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService creates a new JWT service with configuration
func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Auth.JWTSecret),
		expiry: cfg.Auth.JWTExpiration,
		now:    time.Now,
	}
}

// GenerateSessionToken issues a token for a new guest session.
// It returns the token, the session ID and the expiry time.
func (s *JWTService) GenerateSessionToken(playerName string) (string, string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	sessionID := uuid.NewString()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		SessionID:  sessionID,
		PlayerName: playerName,
		Role:       RoleGuest,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, sessionID, expiresAt, nil
}

// ValidateToken validates a session token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	if claims.SessionID == "" {
		return nil, errors.New("token has no session")
	}

	return claims, nil
}

// GetTokenExpiration returns the lifetime of session tokens
func (s *JWTService) GetTokenExpiration() time.Duration {
	return s.expiry
}
