// Package history keeps the small recency list of catalog identifiers a user
// has drafted from before. Pure convenience cache; losing it costs nothing.
package history

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newWithDB wires an existing handle, used by tests with a mock db.
func newWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recent_cubes (
			cube_id TEXT PRIMARY KEY,
			last_used TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// Touch records that the cube id was just used.
func (s *Store) Touch(ctx context.Context, cubeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recent_cubes (cube_id, last_used) VALUES (?, CURRENT_TIMESTAMP)
		ON CONFLICT(cube_id) DO UPDATE SET last_used = CURRENT_TIMESTAMP
	`, cubeID)
	return err
}

// Recent lists the most recently used cube ids, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT cube_id FROM recent_cubes ORDER BY last_used DESC, cube_id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
