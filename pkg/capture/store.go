package capture

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a capture ID is not in the store.
var ErrNotFound = errors.New("capture: not found")

//go:embed schema.sql
var schemaSQL string

// Store indexes saved captures in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the capture index at path.
// Use ":memory:" for a throwaway index.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open capture store: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate capture store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one capture.
func (s *Store) Record(ctx context.Context, o Output) error {
	query := `
		INSERT INTO captures (id, path, uri, size_bytes, width, height, lens, flash_mode, flash_fired, luma, taken_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Path, o.URI, o.Size, o.Width, o.Height,
		o.Meta.Lens, o.Meta.FlashMode, o.Meta.FlashFired, o.Meta.Luma,
		o.TakenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

const selectColumns = `id, path, uri, size_bytes, width, height, lens, flash_mode, flash_fired, luma, taken_at_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanOutput(row scanner) (Output, error) {
	var (
		o       Output
		takenNs int64
	)
	err := row.Scan(&o.ID, &o.Path, &o.URI, &o.Size, &o.Width, &o.Height,
		&o.Meta.Lens, &o.Meta.FlashMode, &o.Meta.FlashFired, &o.Meta.Luma, &takenNs)
	if err != nil {
		return Output{}, err
	}
	o.TakenAt = time.Unix(0, takenNs)
	return o, nil
}

// Get returns the capture with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Output, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM captures WHERE id = ?`, id)
	o, err := scanOutput(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Output{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Output{}, fmt.Errorf("failed to read capture: %w", err)
	}
	return o, nil
}

// List returns the most recent captures, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Output, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM captures ORDER BY taken_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var out []Output
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Count returns the number of indexed captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return n, nil
}
