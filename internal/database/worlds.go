package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrWorldNotFound is returned when no world has the requested ID
	ErrWorldNotFound = errors.New("world not found")
	// ErrWorldExists is returned when a world ID or name is already taken
	ErrWorldExists = errors.New("world already exists")
)

// World is a registered world. Chunks are never stored; they are regenerated from (seed, ID).
type World struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// WorldStorage handles the world registry
type WorldStorage struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewWorldStorage creates a new world storage for the given driver (sqlite or postgres)
func NewWorldStorage(db *sql.DB, driver string) *WorldStorage {
	return &WorldStorage{db: db, driver: driver, now: time.Now}
}

// CreateWorld registers a world
func (s *WorldStorage) CreateWorld(ctx context.Context, id int64, name string, size int) (*World, error) {
	if name == "" {
		return nil, fmt.Errorf("invalid world name: must not be empty")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid world size: %d (must be > 0)", size)
	}

	world := &World{ID: id, Name: name, Size: size, CreatedAt: s.now().UTC().Truncate(time.Second)}
	query := Rebind(s.driver, `INSERT INTO worlds (id, name, size, created_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, world.ID, world.Name, world.Size, world.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("world %d (%s): %w", id, name, ErrWorldExists)
		}
		return nil, fmt.Errorf("failed to insert world: %w", err)
	}
	return world, nil
}

// EnsureWorld registers a world unless one with the same ID already exists
func (s *WorldStorage) EnsureWorld(ctx context.Context, id int64, name string, size int) (*World, error) {
	existing, err := s.GetWorld(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrWorldNotFound) {
		return nil, err
	}
	return s.CreateWorld(ctx, id, name, size)
}

// GetWorld retrieves a world by ID
func (s *WorldStorage) GetWorld(ctx context.Context, id int64) (*World, error) {
	query := Rebind(s.driver, `SELECT id, name, size, created_at FROM worlds WHERE id = ?`)
	world, err := scanWorld(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world %d: %w", id, ErrWorldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query world: %w", err)
	}
	return world, nil
}

// ListWorlds returns all worlds ordered by ID
func (s *WorldStorage) ListWorlds(ctx context.Context) ([]*World, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, size, created_at FROM worlds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query worlds: %w", err)
	}
	defer rows.Close()

	worlds := make([]*World, 0)
	for rows.Next() {
		world, err := scanWorld(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan world: %w", err)
		}
		worlds = append(worlds, world)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worlds: %w", err)
	}
	return worlds, nil
}

// DeleteWorld removes a world from the registry
func (s *WorldStorage) DeleteWorld(ctx context.Context, id int64) error {
	query := Rebind(s.driver, `DELETE FROM worlds WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("world %d: %w", id, ErrWorldNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorld(row rowScanner) (*World, error) {
	var world World
	var createdAt int64
	if err := row.Scan(&world.ID, &world.Name, &world.Size, &createdAt); err != nil {
		return nil, err
	}
	world.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &world, nil
}

// isUniqueViolation reports whether err is a unique or primary key violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
