package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/mirage/server/internal/worldgen"
)

const (
	// Magic number for the chunk batch format
	TilesMagic = "MRGC"
	// Current format version
	TilesVersion = 1
	// Gzip compression level (balance between size and speed)
	DefaultGzipLevel = 6
)

const (
	flagBossGate          = 1 << 0
	flagOnPathOfAscension = 1 << 1
)

// ErrCorrupt is returned when a batch cannot be decoded
var ErrCorrupt = errors.New("corrupt chunk batch")

// Tile is a generated chunk with its coordinate
type Tile struct {
	X     int            `json:"x"`
	Y     int            `json:"y"`
	Chunk worldgen.Chunk `json:"chunk"`
}

// TilesHeader represents the binary format header
type TilesHeader struct {
	Magic   [4]byte // "MRGC"
	Version uint8
	_       [3]byte
	Count   uint32
	WorldID int64
}

// tileRecord is the fixed part of one tile. Mobs follow as (type uint8, level uint16) pairs.
type tileRecord struct {
	X         int64
	Y         int64
	Belt      uint8
	Biome     uint8
	CrateTier uint8
	Flags     uint8
	PortalMin uint16
	MobCount  uint8
}

var crateTiers = [...]worldgen.CrateTier{worldgen.CrateRingOuter, worldgen.CrateRingMid, worldgen.CrateRingInner}

// EncodeTiles writes tiles in the little-endian MRGC layout
func EncodeTiles(worldID int64, tiles []Tile) ([]byte, error) {
	var buf bytes.Buffer

	header := TilesHeader{
		Version: TilesVersion,
		Count:   uint32(len(tiles)),
		WorldID: worldID,
	}
	copy(header.Magic[:], TilesMagic)
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, tile := range tiles {
		chunk := tile.Chunk
		biome, ok := indexOf(worldgen.Biomes[:], chunk.Biome)
		if !ok {
			return nil, fmt.Errorf("unknown biome %q at (%d, %d)", chunk.Biome, tile.X, tile.Y)
		}
		tier, ok := indexOf(crateTiers[:], chunk.CrateTier)
		if !ok {
			return nil, fmt.Errorf("unknown crate tier %q at (%d, %d)", chunk.CrateTier, tile.X, tile.Y)
		}
		if len(chunk.Portal.Requires) != 1 {
			return nil, fmt.Errorf("expected one portal requirement at (%d, %d), got %d", tile.X, tile.Y, len(chunk.Portal.Requires))
		}

		record := tileRecord{
			X:         int64(tile.X),
			Y:         int64(tile.Y),
			Belt:      uint8(chunk.Belt),
			Biome:     uint8(biome),
			CrateTier: uint8(tier),
			PortalMin: uint16(chunk.Portal.Requires[0].Min),
			MobCount:  uint8(len(chunk.Mobs)),
		}
		if chunk.Flags.BossGate {
			record.Flags |= flagBossGate
		}
		if chunk.Flags.OnPathOfAscension {
			record.Flags |= flagOnPathOfAscension
		}
		if err := binary.Write(&buf, binary.LittleEndian, record); err != nil {
			return nil, fmt.Errorf("failed to write tile: %w", err)
		}

		for _, mob := range chunk.Mobs {
			var mobType uint8
			if mob.Type == worldgen.MobScav {
				mobType = 1
			}
			if err := binary.Write(&buf, binary.LittleEndian, mobType); err != nil {
				return nil, fmt.Errorf("failed to write mob type: %w", err)
			}
			if err := binary.Write(&buf, binary.LittleEndian, uint16(mob.Level)); err != nil {
				return nil, fmt.Errorf("failed to write mob level: %w", err)
			}
		}
	}

	return buf.Bytes(), nil
}

// DecodeTiles parses the MRGC layout
func DecodeTiles(data []byte) (int64, []Tile, error) {
	r := bytes.NewReader(data)

	var header TilesHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(header.Magic[:]) != TilesMagic {
		return 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header.Magic[:])
	}
	if header.Version != TilesVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	// Every record takes at least 23 bytes
	if int64(header.Count)*23 > int64(r.Len()) {
		return 0, nil, fmt.Errorf("%w: count %d exceeds payload", ErrCorrupt, header.Count)
	}

	tiles := make([]Tile, 0, header.Count)
	for i := uint32(0); i < header.Count; i++ {
		var record tileRecord
		if err := binary.Read(r, binary.LittleEndian, &record); err != nil {
			return 0, nil, fmt.Errorf("%w: tile %d: %v", ErrCorrupt, i, err)
		}
		if int(record.Biome) >= len(worldgen.Biomes) || int(record.CrateTier) >= len(crateTiers) {
			return 0, nil, fmt.Errorf("%w: tile %d has out-of-range enum", ErrCorrupt, i)
		}

		mobs := make([]worldgen.Mob, 0, record.MobCount)
		for j := uint8(0); j < record.MobCount; j++ {
			var mobType uint8
			var level uint16
			if err := binary.Read(r, binary.LittleEndian, &mobType); err != nil {
				return 0, nil, fmt.Errorf("%w: tile %d mob %d: %v", ErrCorrupt, i, j, err)
			}
			if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
				return 0, nil, fmt.Errorf("%w: tile %d mob %d: %v", ErrCorrupt, i, j, err)
			}
			mob := worldgen.Mob{Type: worldgen.MobCrawler, Level: int(level)}
			if mobType == 1 {
				mob.Type = worldgen.MobScav
			}
			mobs = append(mobs, mob)
		}

		tiles = append(tiles, Tile{
			X: int(record.X),
			Y: int(record.Y),
			Chunk: worldgen.Chunk{
				Belt:      int(record.Belt),
				Biome:     worldgen.Biomes[record.Biome],
				Mobs:      mobs,
				CrateTier: crateTiers[record.CrateTier],
				Portal: worldgen.Portal{
					Requires: []worldgen.Requirement{{Stat: worldgen.StatDefense, Min: int(record.PortalMin)}},
				},
				Flags: worldgen.Flags{
					BossGate:          record.Flags&flagBossGate != 0,
					OnPathOfAscension: record.Flags&flagOnPathOfAscension != 0,
				},
			},
		})
	}
	if r.Len() != 0 {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return header.WorldID, tiles, nil
}

func indexOf[T comparable](values []T, v T) (int, bool) {
	for i, candidate := range values {
		if candidate == v {
			return i, true
		}
	}
	return 0, false
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func compress(format string, data []byte) ([]byte, error) {
	switch format {
	case FormatGzip:
		return gzipCompress(data, DefaultGzipLevel)
	case FormatZstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression format %q", format)
	}
}

func decompress(format string, data []byte) ([]byte, error) {
	switch format {
	case FormatGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip: %w", err)
		}
		return out, nil
	case FormatZstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression format %q", format)
	}
}

// gzipCompress compresses data using gzip
func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write to gzip: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}
