package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AuthHandlers handles authentication HTTP endpoints
type AuthHandlers struct {
	jwtService *JWTService
	validator  *validator.Validate
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(jwtService *JWTService) *AuthHandlers {
	return &AuthHandlers{
		jwtService: jwtService,
		validator:  validator.New(),
	}
}

// JWTService returns the token service used by the handlers
func (h *AuthHandlers) JWTService() *JWTService {
	return h.jwtService
}

// CreateSession issues a guest session token. There are no accounts, so any valid name is accepted.
// POST /api/auth/session
func (h *AuthHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// Validate input
	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	token, sessionID, expiresAt, err := h.jwtService.GenerateSessionToken(req.PlayerName)
	if err != nil {
		log.Printf("Error generating session token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(SessionResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		SessionID:   sessionID,
		PlayerName:  req.PlayerName,
		Role:        RoleGuest,
	}); err != nil {
		log.Printf("Error encoding session response: %v", err)
	}
}

func (h *AuthHandlers) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
		Code:    code,
	})
}

func (h *AuthHandlers) sendValidationError(w http.ResponseWriter, err error) {
	var validationErrors []string
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", fe.Field(), getValidationMessage(fe)))
		}
	}

	h.sendError(w, http.StatusBadRequest, "ValidationError", strings.Join(validationErrors, "; "))
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "alphanum":
		return "must contain only alphanumeric characters"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
