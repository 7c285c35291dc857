package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/preview"
	"github.com/mirage/server/internal/worldgen"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// respondWithJSON sends a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// respondWithError sends an error response in JSON format.
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, ErrorResponse{
		Error:   errorCode(statusCode),
		Message: message,
	})
}

// respondWithFailure maps err to a status code and sends it. Internal errors
// are logged and their details withheld from the client.
func respondWithFailure(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] Internal error: %v", err)
		respondWithError(w, status, "Internal server error")
		return
	}
	respondWithError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, worldgen.ErrInvalidInput),
		errors.Is(err, worldgen.ErrInvalidParameter),
		errors.Is(err, preview.ErrAreaTooLarge),
		errors.Is(err, preview.ErrInvalidArea),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrWorldNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrWorldExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "InvalidRequest"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "RateLimited"
	default:
		return "InternalError"
	}
}

// errBadRequest marks request-shape problems found by the handlers themselves
var errBadRequest = errors.New("bad request")
