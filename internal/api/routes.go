package api

import (
	"database/sql"
	"net/http"

	"github.com/mirage/server/internal/auth"
	"github.com/mirage/server/internal/chunkcache"
	"github.com/mirage/server/internal/config"
	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/performance"
	"github.com/mirage/server/internal/telemetry"
)

// Dependencies are the services the routes are built on
type Dependencies struct {
	Config   *config.Config
	DB       *sql.DB
	Worlds   *database.WorldStorage
	Chunks   *chunkcache.Cache
	Profiler *performance.Profiler
	// RateLimits defaults to DefaultRateLimitConfig when zero
	RateLimits RateLimitConfig
}

// SetupRoutes registers every route on mux and returns the websocket handlers,
// whose hub the caller must run.
func SetupRoutes(mux *http.ServeMux, deps Dependencies) *WebSocketHandlers {
	cfg := deps.Config
	limits := deps.RateLimits
	if limits == (RateLimitConfig{}) {
		limits = DefaultRateLimitConfig()
	}

	jwtService := auth.NewJWTService(cfg)
	authHandlers := auth.NewAuthHandlers(jwtService)
	requireSession := func(h http.HandlerFunc) http.Handler {
		return authHandlers.AuthMiddleware(UserRateLimitMiddleware(limits.UserLimit, limits.UserWindow)(h))
	}

	worldHandlers := NewWorldHandlers(deps.Worlds, cfg.World.DefaultSize)
	chunkHandlers := NewChunkHandlers(deps.Worlds, deps.Chunks, deps.Profiler, cfg.World.DefaultSize)
	previewHandlers := NewPreviewHandlers(deps.Worlds, deps.Chunks, deps.Profiler, 0)
	wsHandlers := NewWebSocketHandlers(cfg, jwtService, deps.Worlds, deps.Chunks, deps.Profiler)

	mux.HandleFunc("GET /health", HealthHandler(deps.DB, deps.Chunks.Seed()))

	// Guest sessions
	authRateLimit := RateLimitMiddleware(limits.AuthLimit, limits.AuthWindow)
	mux.Handle("POST /api/auth/session", authRateLimit(http.HandlerFunc(authHandlers.CreateSession)))

	// World registry
	mux.HandleFunc("GET /api/worlds", worldHandlers.ListWorlds)
	mux.HandleFunc("GET /api/worlds/{id}", worldHandlers.GetWorld)
	mux.Handle("POST /api/worlds", requireSession(worldHandlers.CreateWorld))
	mux.Handle("DELETE /api/worlds/{id}", requireSession(worldHandlers.DeleteWorld))

	// Generation
	mux.HandleFunc("GET /api/worlds/{id}/chunks/{x}/{y}", chunkHandlers.GetChunk)
	mux.HandleFunc("GET /api/worlds/{id}/chunks", chunkHandlers.GetChunkBatch)
	mux.HandleFunc("GET /api/worlds/{id}/preview.png", previewHandlers.GetPreview)
	mux.HandleFunc("GET /api/belts/{x}/{y}", chunkHandlers.GetBelt)
	mux.HandleFunc("GET /api/generator/version", chunkHandlers.GetGeneratorVersion)

	// Streaming
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)

	// Diagnostics
	mux.Handle("GET /debug/performance", deps.Profiler.Handler())
	mux.HandleFunc("GET /debug/cache", chunkHandlers.GetCacheStats)

	return wsHandlers
}

// Handler wraps mux with the middleware every request passes through
func Handler(mux http.Handler, cfg *config.Config, limits RateLimitConfig) http.Handler {
	if limits == (RateLimitConfig{}) {
		limits = DefaultRateLimitConfig()
	}
	var h http.Handler = mux
	h = RateLimitMiddleware(limits.GlobalLimit, limits.GlobalWindow)(h)
	h = auth.SecurityHeadersMiddleware(cfg.Server.IsProduction())(h)
	h = CORSMiddleware(cfg.Server.AllowedOrigins)(h)
	return telemetry.Middleware(h)
}
