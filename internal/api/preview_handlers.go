package api

import (
	"bytes"
	"log"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirage/server/internal/chunkcache"
	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/performance"
	"github.com/mirage/server/internal/preview"
	"github.com/mirage/server/internal/telemetry"
	"github.com/mirage/server/internal/worldgen"
)

// PreviewHandlers renders generated areas as PNG images.
type PreviewHandlers struct {
	worlds   *database.WorldStorage
	chunks   *chunkcache.Cache
	profiler *performance.Profiler
	workers  int
}

// NewPreviewHandlers creates preview handlers. workers <= 0 uses one worker per CPU.
func NewPreviewHandlers(worlds *database.WorldStorage, chunks *chunkcache.Cache, profiler *performance.Profiler, workers int) *PreviewHandlers {
	return &PreviewHandlers{
		worlds:   worlds,
		chunks:   chunks,
		profiler: profiler,
		workers:  workers,
	}
}

// GetPreview handles GET /api/worlds/{id}/preview.png?x0=&y0=&x1=&y1=.
func (h *PreviewHandlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	worldID, err := worldgen.ParseWorldID(r.PathValue("id"))
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	area, err := parseArea(r, preview.MaxSide)
	if err != nil {
		respondWithFailure(w, err)
		return
	}
	if err := area.Validate(); err != nil {
		respondWithFailure(w, err)
		return
	}
	world, err := h.worlds.GetWorld(r.Context(), worldID)
	if err != nil {
		respondWithFailure(w, err)
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), "preview.Render", trace.WithAttributes(
		attribute.Int64("world.id", worldID),
		attribute.Int("preview.width", area.Width()),
		attribute.Int("preview.height", area.Height()),
	))
	defer span.End()

	op := h.profiler.Start("preview_render")
	img, err := preview.Render(ctx, h.chunks, worldID, world.Size, area, h.workers)
	op.AddItems(area.Width() * area.Height())
	op.End()
	if err != nil {
		telemetry.RecordError(ctx, err)
		respondWithFailure(w, err)
		return
	}

	// Encode before writing headers so failures still produce a JSON error
	var buf bytes.Buffer
	if err := preview.EncodePNG(&buf, img); err != nil {
		telemetry.RecordError(ctx, err)
		respondWithFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[API] Failed to write preview: %v", err)
	}
}
