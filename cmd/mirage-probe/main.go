package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mirage/server/internal/procedural"
	"github.com/mirage/server/internal/worldgen"
)

// mirage-probe checks that a remote server generates the same chunks as this
// build, or prints locally generated chunks as JSON when no server is given.
func main() {
	server := flag.String("server", "", "base URL of a running server; empty prints local chunks")
	seed := flag.String("seed", os.Getenv("WORLD_SEED"), "world seed used for local generation")
	worldID := flag.Int64("world", 0, "world id")
	x0 := flag.Int("x0", 0, "first column")
	y0 := flag.Int("y0", 0, "first row")
	x1 := flag.Int("x1", 0, "last column")
	y1 := flag.Int("y1", 0, "last row")
	size := flag.Int("size", 240, "map size in tiles")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	retries := flag.Int("retries", 3, "retries for failed requests")
	flag.Parse()

	if *seed == "" {
		log.Fatal("a seed is required (-seed or WORLD_SEED)")
	}
	if *x1 < *x0 || *y1 < *y0 {
		log.Fatalf("corners out of order: (%d,%d)-(%d,%d)", *x0, *y0, *x1, *y1)
	}

	gen := worldgen.NewGenerator(*seed)
	if *server == "" {
		if err := printLocal(gen, *worldID, *x0, *y0, *x1, *y1, *size); err != nil {
			log.Fatal(err)
		}
		return
	}

	client := procedural.NewClient(*server, *timeout, *retries)
	mismatches, err := compare(context.Background(), client, gen, *worldID, *x0, *y0, *x1, *y1, *size)
	if err != nil {
		log.Fatal(err)
	}
	if mismatches > 0 {
		os.Exit(1)
	}
}

func printLocal(gen *worldgen.Generator, worldID int64, x0, y0, x1, y1, size int) error {
	enc := json.NewEncoder(os.Stdout)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			chunk, err := gen.Chunk(worldID, x, y, size)
			if err != nil {
				return err
			}
			if err := enc.Encode(procedural.ChunkResponse{WorldID: worldID, X: x, Y: y, Size: size, Chunk: chunk}); err != nil {
				return err
			}
		}
	}
	return nil
}

// compare fetches every tile of the area and reports tiles that differ from
// local generation. It returns the number of mismatches.
func compare(ctx context.Context, client *procedural.Client, gen *worldgen.Generator, worldID int64, x0, y0, x1, y1, size int) (int, error) {
	health, err := client.HealthCheck(ctx)
	if err != nil {
		return 0, err
	}
	if health.GeneratorVersion != worldgen.Version {
		return 0, fmt.Errorf("server runs generator v%d, this build is v%d", health.GeneratorVersion, worldgen.Version)
	}
	if health.SeedFingerprint != gen.Fingerprint() {
		return 0, fmt.Errorf("server seed fingerprint %s does not match local %s", health.SeedFingerprint, gen.Fingerprint())
	}

	start := time.Now()
	checked, mismatches := 0, 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			remote, err := client.GenerateChunk(ctx, worldID, x, y, size)
			if err != nil {
				return mismatches, fmt.Errorf("tile (%d,%d): %w", x, y, err)
			}
			local, err := gen.Chunk(worldID, x, y, size)
			if err != nil {
				return mismatches, err
			}
			checked++
			if !reflect.DeepEqual(remote.Chunk, local) {
				mismatches++
				log.Printf("MISMATCH (%d,%d): remote=%+v local=%+v", x, y, remote.Chunk, local)
			}
		}
	}

	log.Printf("Checked %s tiles of world %d in %s: %d mismatches",
		humanize.Comma(int64(checked)), worldID, time.Since(start).Round(time.Millisecond), mismatches)
	return mismatches, nil
}
