package compression

import (
	"encoding/base64"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Wire formats for compressed chunk batches
const (
	FormatGzip = "binary_gzip"
	FormatZstd = "binary_zstd"
)

// CompressedChunks represents compressed chunk data ready for transmission
type CompressedChunks struct {
	Format           string `json:"format"`            // "binary_gzip" or "binary_zstd"
	Data             string `json:"data"`              // Base64-encoded compressed data
	Size             int    `json:"size"`              // Compressed size in bytes
	UncompressedSize int    `json:"uncompressed_size"` // Uncompressed size in bytes
	Count            int    `json:"count"`             // Number of tiles
}

// FormatCompressedChunks formats compressed chunk data for JSON transmission
func FormatCompressedChunks(format string, compressedData []byte, uncompressedSize, count int) (*CompressedChunks, error) {
	if format != FormatGzip && format != FormatZstd {
		return nil, fmt.Errorf("unknown compression format %q", format)
	}

	return &CompressedChunks{
		Format:           format,
		Data:             base64.StdEncoding.EncodeToString(compressedData),
		Size:             len(compressedData),
		UncompressedSize: uncompressedSize,
		Count:            count,
	}, nil
}

// CompressAndFormat encodes, compresses and formats tiles in one step
func CompressAndFormat(format string, worldID int64, tiles []Tile) (*CompressedChunks, error) {
	raw, err := EncodeTiles(worldID, tiles)
	if err != nil {
		return nil, err
	}
	compressed, err := compress(format, raw)
	if err != nil {
		return nil, err
	}
	return FormatCompressedChunks(format, compressed, len(raw), len(tiles))
}

// Decode reverses CompressAndFormat
func Decode(payload *CompressedChunks) (int64, []Tile, error) {
	compressed, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	raw, err := decompress(payload.Format, compressed)
	if err != nil {
		return 0, nil, err
	}
	return DecodeTiles(raw)
}

// Ratio is the compressed size as a fraction of the uncompressed size
func (c *CompressedChunks) Ratio() float64 {
	if c.UncompressedSize == 0 {
		return 0
	}
	return float64(c.Size) / float64(c.UncompressedSize)
}

// String summarizes the payload for logs, e.g. "12 tiles 1.2 kB -> 380 B (31.7%)"
func (c *CompressedChunks) String() string {
	return fmt.Sprintf("%d tiles %s -> %s (%.1f%%)",
		c.Count,
		humanize.Bytes(uint64(c.UncompressedSize)),
		humanize.Bytes(uint64(c.Size)),
		c.Ratio()*100,
	)
}
