package api

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/mirage/server/internal/worldgen"
)

const serviceName = "mirage-server"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	GeneratorVersion int    `json:"generator_version"`
	SeedFingerprint  string `json:"seed_fingerprint"`
}

// HealthHandler reports liveness and whether the world registry is reachable
func HealthHandler(db *sql.DB, seed string) http.HandlerFunc {
	fingerprint := worldgen.SeedFingerprint(seed)
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:           "ok",
			Service:          serviceName,
			GeneratorVersion: worldgen.Version,
			SeedFingerprint:  fingerprint,
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Printf("Warning: health check database ping failed: %v", err)
			resp.Status = "degraded"
			respondWithJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		respondWithJSON(w, http.StatusOK, resp)
	}
}
