package database

import (
	"database/sql"
	"fmt"
)

const worldsTable = `
	CREATE TABLE IF NOT EXISTS worlds (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL CHECK (size > 0),
		created_at BIGINT NOT NULL
	)
`

// EnsureSchema creates the worlds table if it does not exist.
// The statement is portable across sqlite and postgres.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(worldsTable); err != nil {
		return fmt.Errorf("failed to create worlds table: %w", err)
	}
	return nil
}
