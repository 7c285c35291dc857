package api

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirage/server/internal/chunkcache"
	"github.com/mirage/server/internal/compression"
	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/performance"
	"github.com/mirage/server/internal/ringmap"
	"github.com/mirage/server/internal/telemetry"
	"github.com/mirage/server/internal/worldgen"
)

// MaxBatchTiles caps the number of tiles a single batch request may generate
const MaxBatchTiles = 1024

// Batch output formats besides the compression formats
const formatJSON = "json"

// ChunkHandlers handles chunk generation HTTP requests.
type ChunkHandlers struct {
	worlds      *database.WorldStorage
	chunks      *chunkcache.Cache
	profiler    *performance.Profiler
	defaultSize int
}

// NewChunkHandlers creates a new instance of ChunkHandlers.
func NewChunkHandlers(worlds *database.WorldStorage, chunks *chunkcache.Cache, profiler *performance.Profiler, defaultSize int) *ChunkHandlers {
	return &ChunkHandlers{
		worlds:      worlds,
		chunks:      chunks,
		profiler:    profiler,
		defaultSize: defaultSize,
	}
}

// ChunkResponse is returned for a single chunk
type ChunkResponse struct {
	WorldID int64          `json:"world_id"`
	X       int            `json:"x"`
	Y       int            `json:"y"`
	Size    int            `json:"size"`
	Chunk   worldgen.Chunk `json:"chunk"`
}

// ChunkBatchResponse is returned for a rectangular batch in JSON format
type ChunkBatchResponse struct {
	WorldID int64              `json:"world_id"`
	Size    int                `json:"size"`
	Tiles   []compression.Tile `json:"tiles"`
}

// BeltResponse describes the ring position of a coordinate
type BeltResponse struct {
	X                 int                `json:"x"`
	Y                 int                `json:"y"`
	Size              int                `json:"size"`
	Belts             int                `json:"belts"`
	Belt              int                `json:"belt"`
	CrateTier         worldgen.CrateTier `json:"crate_tier,omitempty"`
	OnPathOfAscension bool               `json:"on_path_of_ascension"`
}

// GeneratorVersionResponse lets clients check they generate the same worlds as the server
type GeneratorVersionResponse struct {
	Version         int    `json:"generator_version"`
	SeedFingerprint string `json:"seed_fingerprint"`
	PRNG            string `json:"prng"`
	LocalSeedFormat string `json:"local_seed_format"`
	Belts           int    `json:"belts"`
	DefaultSize     int    `json:"default_size"`
}

// GetChunk handles GET /api/worlds/{id}/chunks/{x}/{y}.
// The map size comes from the world registry unless ?size= overrides it.
func (h *ChunkHandlers) GetChunk(w http.ResponseWriter, r *http.Request) {
	worldID, err := worldgen.ParseWorldID(r.PathValue("id"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	x, err := worldgen.ParseCoordinate("x", r.PathValue("x"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	y, err := worldgen.ParseCoordinate("y", r.PathValue("y"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	size, err := h.resolveSize(r, worldID)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	chunk, err := h.generate(r.Context(), worldID, x, y, size)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ChunkResponse{
		WorldID: worldID,
		X:       x,
		Y:       y,
		Size:    size,
		Chunk:   chunk,
	})
}

// GetChunkBatch handles GET /api/worlds/{id}/chunks?x0=&y0=&x1=&y1=&format=.
// Tiles are returned row-major. format is json (default), binary_gzip or binary_zstd.
func (h *ChunkHandlers) GetChunkBatch(w http.ResponseWriter, r *http.Request) {
	worldID, err := worldgen.ParseWorldID(r.PathValue("id"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	area, err := parseArea(r, MaxBatchTiles)
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	// Both sides are at most MaxBatchTiles, so the product cannot overflow
	if area.Width()*area.Height() > MaxBatchTiles {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("batch of %dx%d tiles exceeds the limit of %d", area.Width(), area.Height(), MaxBatchTiles))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != compression.FormatGzip && format != compression.FormatZstd {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	size, err := h.resolveSize(r, worldID)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), "chunks.batch", trace.WithAttributes(
		attribute.Int64("world.id", worldID),
		attribute.Int("batch.tiles", area.Width()*area.Height()),
	))
	defer span.End()

	op := h.profiler.Start("chunk_batch")
	tiles := make([]compression.Tile, 0, area.Width()*area.Height())
	for row := 0; row < area.Height(); row++ {
		y := area.Y0 + row
		for col := 0; col < area.Width(); col++ {
			x := area.X0 + col
			chunk, err := h.chunks.Chunk(worldID, x, y, size)
			if err != nil {
				op.End()
				telemetry.RecordError(ctx, err)
				respondWithFailure(w, err)
				return
			}
			tiles = append(tiles, compression.Tile{X: x, Y: y, Chunk: chunk})
		}
	}
	op.AddItems(len(tiles))
	op.End()

	if format == formatJSON {
		respondWithJSON(w, http.StatusOK, ChunkBatchResponse{WorldID: worldID, Size: size, Tiles: tiles})
		return
	}

	payload, err := compression.CompressAndFormat(format, worldID, tiles)
	if err != nil {
		telemetry.RecordError(ctx, err)
		respondWithFailure(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payload)
}

// GetBelt handles GET /api/belts/{x}/{y}?size=&belts=.
// Crate tiers are only defined for the standard 100 belts.
func (h *ChunkHandlers) GetBelt(w http.ResponseWriter, r *http.Request) {
	x, err := worldgen.ParseCoordinate("x", r.PathValue("x"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	y, err := worldgen.ParseCoordinate("y", r.PathValue("y"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	size, err := optionalInt(r, "size", h.defaultSize)
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	belts, err := optionalInt(r, "belts", ringmap.DefaultBelts)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	belt, err := ringmap.BeltIndex(x, y, size, belts)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	resp := BeltResponse{
		X:                 x,
		Y:                 y,
		Size:              size,
		Belts:             belts,
		Belt:              belt,
		OnPathOfAscension: ringmap.IsOnPathOfAscension(x, y),
	}
	if belts == ringmap.DefaultBelts {
		resp.CrateTier = worldgen.CrateTierForBelt(belt)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GetGeneratorVersion handles GET /api/generator/version.
func (h *ChunkHandlers) GetGeneratorVersion(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, GeneratorVersionResponse{
		Version:         worldgen.Version,
		SeedFingerprint: worldgen.SeedFingerprint(h.chunks.Seed()),
		PRNG:            "mulberry32",
		LocalSeedFormat: "{seed}:{worldID}:{x},{y}:b{belt}",
		Belts:           ringmap.DefaultBelts,
		DefaultSize:     h.defaultSize,
	})
}

// GetCacheStats handles GET /debug/cache.
func (h *ChunkHandlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.chunks.Stats())
}

// generate produces one chunk inside a span
func (h *ChunkHandlers) generate(ctx context.Context, worldID int64, x, y, size int) (worldgen.Chunk, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "worldgen.GenerateChunk", trace.WithAttributes(
		attribute.Int64("world.id", worldID),
		attribute.Int("tile.x", x),
		attribute.Int("tile.y", y),
		attribute.Int("map.size", size),
	))
	defer span.End()

	op := h.profiler.Start("chunk_generation")
	chunk, err := h.chunks.Chunk(worldID, x, y, size)
	op.AddItems(1)
	op.End()
	if err != nil {
		telemetry.RecordError(ctx, err)
		return worldgen.Chunk{}, err
	}
	span.SetAttributes(attribute.Int("chunk.belt", chunk.Belt))
	return chunk, nil
}

// resolveSize returns ?size= when present, the registered world size otherwise.
// The world must exist either way.
func (h *ChunkHandlers) resolveSize(r *http.Request, worldID int64) (int, error) {
	world, err := h.worlds.GetWorld(r.Context(), worldID)
	if err != nil {
		return 0, err
	}
	return optionalInt(r, "size", world.Size)
}
