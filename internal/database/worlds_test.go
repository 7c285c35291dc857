package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mirage/server/internal/testutil"
)

func newTestWorldStorage(t *testing.T) *WorldStorage {
	t.Helper()
	db, driver := testutil.SetupTestDB(t)
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	// Calling it twice must be harmless
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}
	storage := NewWorldStorage(db, driver)
	storage.now = func() time.Time { return time.Unix(1700000000, 0) }
	return storage
}

func sameWorld(a, b *World) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Size == b.Size && a.CreatedAt.Equal(b.CreatedAt)
}

func TestWorldStorage_CreateAndGetWorld(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	created, err := storage.CreateWorld(ctx, 7, "shard-seven", 135)
	if err != nil {
		t.Fatalf("CreateWorld failed: %v", err)
	}
	if created.ID != 7 || created.Name != "shard-seven" || created.Size != 135 {
		t.Errorf("Unexpected world %+v", created)
	}

	got, err := storage.GetWorld(ctx, 7)
	if err != nil {
		t.Fatalf("GetWorld failed: %v", err)
	}
	if !sameWorld(got, created) {
		t.Errorf("Expected %+v, got %+v", created, got)
	}
	if got.CreatedAt.Unix() != 1700000000 {
		t.Errorf("Expected created_at 1700000000, got %d", got.CreatedAt.Unix())
	}
}

func TestWorldStorage_GetWorldNotFound(t *testing.T) {
	storage := newTestWorldStorage(t)

	_, err := storage.GetWorld(context.Background(), 404)
	if !errors.Is(err, ErrWorldNotFound) {
		t.Errorf("Expected ErrWorldNotFound, got %v", err)
	}
}

func TestWorldStorage_CreateWorldConflicts(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	if _, err := storage.CreateWorld(ctx, 1, "prime", 240); err != nil {
		t.Fatalf("CreateWorld failed: %v", err)
	}

	tests := []struct {
		name      string
		id        int64
		worldName string
	}{
		{"duplicate id", 1, "other"},
		{"duplicate name", 2, "prime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.CreateWorld(ctx, tt.id, tt.worldName, 240)
			if !errors.Is(err, ErrWorldExists) {
				t.Errorf("Expected ErrWorldExists, got %v", err)
			}
		})
	}
}

func TestWorldStorage_CreateWorldValidation(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	if _, err := storage.CreateWorld(ctx, 1, "", 240); err == nil {
		t.Error("Expected error for empty name")
	}
	if _, err := storage.CreateWorld(ctx, 1, "zero", 0); err == nil {
		t.Error("Expected error for zero size")
	}
}

func TestWorldStorage_ListWorlds(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	worlds, err := storage.ListWorlds(ctx)
	if err != nil {
		t.Fatalf("ListWorlds failed: %v", err)
	}
	if len(worlds) != 0 {
		t.Fatalf("Expected empty registry, got %d worlds", len(worlds))
	}

	for _, id := range []int64{9, -3, 4} {
		if _, err := storage.CreateWorld(ctx, id, testutil.RandomString(8), 240); err != nil {
			t.Fatalf("CreateWorld(%d) failed: %v", id, err)
		}
	}

	worlds, err = storage.ListWorlds(ctx)
	if err != nil {
		t.Fatalf("ListWorlds failed: %v", err)
	}
	expected := []int64{-3, 4, 9}
	if len(worlds) != len(expected) {
		t.Fatalf("Expected %d worlds, got %d", len(expected), len(worlds))
	}
	for i, id := range expected {
		if worlds[i].ID != id {
			t.Errorf("worlds[%d].ID = %d, expected %d", i, worlds[i].ID, id)
		}
	}
}

func TestWorldStorage_DeleteWorld(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	if _, err := storage.CreateWorld(ctx, 3, "doomed", 240); err != nil {
		t.Fatalf("CreateWorld failed: %v", err)
	}
	if err := storage.DeleteWorld(ctx, 3); err != nil {
		t.Fatalf("DeleteWorld failed: %v", err)
	}
	if _, err := storage.GetWorld(ctx, 3); !errors.Is(err, ErrWorldNotFound) {
		t.Errorf("Expected ErrWorldNotFound after delete, got %v", err)
	}
	if err := storage.DeleteWorld(ctx, 3); !errors.Is(err, ErrWorldNotFound) {
		t.Errorf("Expected ErrWorldNotFound on second delete, got %v", err)
	}
}

func TestWorldStorage_EnsureWorld(t *testing.T) {
	storage := newTestWorldStorage(t)
	ctx := context.Background()

	first, err := storage.EnsureWorld(ctx, 0, "prime", 240)
	if err != nil {
		t.Fatalf("EnsureWorld failed: %v", err)
	}
	again, err := storage.EnsureWorld(ctx, 0, "renamed", 10)
	if err != nil {
		t.Fatalf("second EnsureWorld failed: %v", err)
	}
	if !sameWorld(again, first) {
		t.Errorf("Expected existing world to be kept, got %+v", again)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM worlds WHERE id = ? AND name = ?"
	if got := Rebind("sqlite", query); got != query {
		t.Errorf("sqlite query changed: %s", got)
	}
	expected := "SELECT * FROM worlds WHERE id = $1 AND name = $2"
	if got := Rebind("postgres", query); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}
