// Package preview draws a rectangle of generated tiles as an image, one pixel per tile.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"runtime"
	"sync"

	"github.com/mirage/server/internal/worldgen"
)

// MaxSide is the largest width or height a preview may have, in tiles
const MaxSide = 512

var (
	// ErrAreaTooLarge is returned for areas wider or taller than MaxSide
	ErrAreaTooLarge = errors.New("preview area too large")
	// ErrInvalidArea is returned when a corner lies past the opposite corner
	ErrInvalidArea = errors.New("invalid preview area")
)

// ChunkSource produces chunks; both worldgen.Generator and chunkcache.Cache satisfy it
type ChunkSource interface {
	Chunk(worldID int64, x, y, size int) (worldgen.Chunk, error)
}

// Area is an inclusive tile rectangle
type Area struct {
	X0, Y0, X1, Y1 int
}

// Width returns the number of columns. Only meaningful once Fits has passed.
func (a Area) Width() int { return a.X1 - a.X0 + 1 }

// Height returns the number of rows. Only meaningful once Fits has passed.
func (a Area) Height() int { return a.Y1 - a.Y0 + 1 }

// span is hi-lo computed in uint, which is exact for any lo <= hi
func span(lo, hi int) uint {
	return uint(hi) - uint(lo)
}

// Fits reports whether the corners are ordered and neither side exceeds maxSide tiles.
// It never adds to a coordinate, so corners near math.MinInt or math.MaxInt are safe.
func (a Area) Fits(maxSide int) bool {
	if a.X1 < a.X0 || a.Y1 < a.Y0 || maxSide <= 0 {
		return false
	}
	return span(a.X0, a.X1) < uint(maxSide) && span(a.Y0, a.Y1) < uint(maxSide)
}

// Validate checks ordering and size limits
func (a Area) Validate() error {
	if a.X1 < a.X0 || a.Y1 < a.Y0 {
		return fmt.Errorf("%w (%d,%d)-(%d,%d): corners out of order", ErrInvalidArea, a.X0, a.Y0, a.X1, a.Y1)
	}
	if !a.Fits(MaxSide) {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d) exceeds %dx%d", ErrAreaTooLarge, a.X0, a.Y0, a.X1, a.Y1, MaxSide, MaxSide)
	}
	return nil
}

var (
	biomeColors = map[worldgen.Biome]color.RGBA{
		worldgen.BiomeRustDesert:  {183, 91, 47, 255},
		worldgen.BiomeAshenPlain:  {128, 124, 118, 255},
		worldgen.BiomeVineThicket: {58, 130, 62, 255},
		worldgen.BiomeCrystalSalt: {170, 214, 230, 255},
	}
	bossGateColor  = color.RGBA{230, 30, 30, 255}
	ascensionColor = color.RGBA{250, 210, 60, 255}
)

// TileColor is the preview colour of one chunk. Outer belts are darker.
func TileColor(chunk worldgen.Chunk) color.RGBA {
	if chunk.Flags.BossGate {
		return bossGateColor
	}
	if chunk.Flags.OnPathOfAscension {
		return ascensionColor
	}
	base, ok := biomeColors[chunk.Biome]
	if !ok {
		return color.RGBA{0, 0, 0, 255}
	}
	// brightness runs from 40% at belt 1 to 100% at belt 100
	shade := 40 + 60*(chunk.Belt-1)/99
	return color.RGBA{
		R: uint8(int(base.R) * shade / 100),
		G: uint8(int(base.G) * shade / 100),
		B: uint8(int(base.B) * shade / 100),
		A: 255,
	}
}

// Render draws area with one pixel per tile. Pixel (0, 0) is tile (X0, Y0).
// Rows are shared among workerCount goroutines; zero means GOMAXPROCS.
func Render(ctx context.Context, src ChunkSource, worldID int64, size int, area Area, workerCount int) (*image.RGBA, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	workerCount = min(workerCount, area.Height())

	img := image.NewRGBA(image.Rect(0, 0, area.Width(), area.Height()))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh := make(chan int, 8)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	go func() {
		defer close(rowCh)
		for row := 0; row < area.Height(); row++ {
			select {
			case rowCh <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			// Offsets, not absolute bounds: X1 may be math.MaxInt
			for row := range rowCh {
				if ctx.Err() != nil {
					continue
				}
				y := area.Y0 + row
				for col := 0; col < area.Width(); col++ {
					x := area.X0 + col
					chunk, err := src.Chunk(worldID, x, y, size)
					if err != nil {
						fail(fmt.Errorf("render tile (%d, %d): %w", x, y, err))
						break
					}
					img.SetRGBA(col, row, TileColor(chunk))
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	// only the caller can have cancelled ctx at this point
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

// EncodePNG writes img as a PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
