package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/worldgen"
)

// WorldHandlers handles the world registry HTTP requests.
type WorldHandlers struct {
	worlds      *database.WorldStorage
	defaultSize int
	validator   *validator.Validate
}

// NewWorldHandlers creates a new instance of WorldHandlers.
func NewWorldHandlers(worlds *database.WorldStorage, defaultSize int) *WorldHandlers {
	return &WorldHandlers{
		worlds:      worlds,
		defaultSize: defaultSize,
		validator:   validator.New(),
	}
}

// CreateWorldRequest is the body of POST /api/worlds. A zero size uses the default.
type CreateWorldRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required,min=1,max=64"`
	Size int    `json:"size" validate:"gte=0,lte=1000000"`
}

// WorldListResponse is returned by GET /api/worlds
type WorldListResponse struct {
	Worlds []*database.World `json:"worlds"`
}

// ListWorlds handles GET /api/worlds.
func (h *WorldHandlers) ListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := h.worlds.ListWorlds(r.Context())
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, WorldListResponse{Worlds: worlds})
}

// GetWorld handles GET /api/worlds/{id}.
func (h *WorldHandlers) GetWorld(w http.ResponseWriter, r *http.Request) {
	id, err := worldgen.ParseWorldID(r.PathValue("id"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	world, err := h.worlds.GetWorld(r.Context(), id)
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, world)
}

// CreateWorld handles POST /api/worlds.
func (h *WorldHandlers) CreateWorld(w http.ResponseWriter, r *http.Request) {
	var req CreateWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.Size == 0 {
		req.Size = h.defaultSize
	}

	world, err := h.worlds.CreateWorld(r.Context(), req.ID, req.Name, req.Size)
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	log.Printf("[API] World created: id=%d name=%s size=%d", world.ID, world.Name, world.Size)
	respondWithJSON(w, http.StatusCreated, world)
}

// DeleteWorld handles DELETE /api/worlds/{id}.
func (h *WorldHandlers) DeleteWorld(w http.ResponseWriter, r *http.Request) {
	id, err := worldgen.ParseWorldID(r.PathValue("id"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	if err := h.worlds.DeleteWorld(r.Context(), id); err != nil {
		respondWithFailure(w, err)
		return
	}
	log.Printf("[API] World deleted: id=%d", id)
	w.WriteHeader(http.StatusNoContent)
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "Invalid request"
	}
	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}
