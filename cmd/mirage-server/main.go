package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirage/server/internal/api"
	"github.com/mirage/server/internal/chunkcache"
	"github.com/mirage/server/internal/config"
	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/performance"
	"github.com/mirage/server/internal/telemetry"
	"github.com/mirage/server/internal/worldgen"
)

const shutdownTimeout = 10 * time.Second

// main starts the Mirage world server.
// Configuration comes from the environment (and .env); see internal/config.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Warning: failed to close database: %v", err)
		}
	}()

	if err := database.EnsureSchema(db); err != nil {
		return err
	}

	worlds := database.NewWorldStorage(db, cfg.Database.Driver)
	if err := bootstrapWorlds(ctx, cfg, worlds); err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Printf("Warning: telemetry shutdown failed: %v", err)
		}
	}()

	gen := worldgen.NewGenerator(cfg.World.Seed)
	chunks, err := chunkcache.New(gen, cfg.Cache.Size)
	if err != nil {
		return err
	}
	profiler := performance.NewProfiler(cfg.Telemetry.ProfilerOn)
	defer profiler.LogReport()

	mux := http.NewServeMux()
	limits := api.DefaultRateLimitConfig()
	wsHandlers := api.SetupRoutes(mux, api.Dependencies{
		Config:     cfg,
		DB:         db,
		Worlds:     worlds,
		Chunks:     chunks,
		Profiler:   profiler,
		RateLimits: limits,
	})
	go wsHandlers.GetHub().Run(ctx)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.Handler(mux, cfg, limits),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Mirage server starting on %s (environment=%s, generator v%d, seed fingerprint %s)",
			server.Addr, cfg.Server.Environment, worldgen.Version, gen.Fingerprint())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("Server stopped")
	return nil
}

// bootstrapWorlds registers the worlds from WORLDS_FILE, or a single default
// world 0 when no file is configured. Existing worlds are left untouched.
func bootstrapWorlds(ctx context.Context, cfg *config.Config, worlds *database.WorldStorage) error {
	seeds := []config.WorldSeed{{ID: 0, Name: "default", Size: cfg.World.DefaultSize}}
	if cfg.World.WorldsFile != "" {
		var err error
		seeds, err = config.LoadWorlds(cfg.World.WorldsFile, cfg.World.DefaultSize)
		if err != nil {
			return err
		}
	}

	for _, seed := range seeds {
		world, err := worlds.EnsureWorld(ctx, seed.ID, seed.Name, seed.Size)
		if err != nil {
			return err
		}
		log.Printf("World %d (%s) ready, size %d", world.ID, world.Name, world.Size)
	}
	return nil
}
