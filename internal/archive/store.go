// Package archive persists render runs to a SQLite database so a survey's
// map history can be listed and its exact input recovered later.
package archive

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of runs to buffer before flushing to the database.
	DefaultBatchSize = 32
)

// Run is one archived render.
type Run struct {
	ID        int64
	CreatedAt time.Time
	TreesPath string
	Output    string
	Format    string
	Trees     int
	Species   int
	Skipped   int
	Source    []byte // tree survey GeoJSON (gzip-compressed in storage)
}

// Store writes render runs to a SQLite archive.
type Store struct {
	db        *sql.DB
	path      string
	batch     []Run
	batchSize int
	mu        sync.Mutex
}

// Open creates or opens an archive database and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:        db,
		path:      path,
		batch:     make([]Run, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			trees_path TEXT NOT NULL,
			output TEXT NOT NULL,
			format TEXT NOT NULL,
			trees INTEGER NOT NULL,
			species INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			source BLOB
		);

		CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Record adds a run to the batch. When the batch is full, it is automatically
// flushed. The source GeoJSON is gzip-compressed before storage.
func (s *Store) Record(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	s.batch = append(s.batch, run)

	if len(s.batch) >= s.batchSize {
		return s.flushLocked()
	}

	return nil
}

// Flush writes any buffered runs to the database.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked writes buffered runs to the database. Must be called with lock held.
func (s *Store) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO runs
		(created_at, trees_path, output, format, trees, species, skipped, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, run := range s.batch {
		compressed, err := gzipCompress(run.Source)
		if err != nil {
			return fmt.Errorf("failed to compress source for %s: %w", run.Output, err)
		}

		if _, err := stmt.Exec(
			run.CreatedAt.UTC().Format(time.RFC3339Nano),
			run.TreesPath, run.Output, run.Format,
			run.Trees, run.Species, run.Skipped,
			compressed,
		); err != nil {
			return fmt.Errorf("failed to insert run for %s: %w", run.Output, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.batch = s.batch[:0]
	return nil
}

// List returns the most recent runs, newest first, without their source
// blobs.
func (s *Store) List(limit int) ([]Run, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`SELECT id, created_at, trees_path, output, format, trees, species, skipped
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &created, &run.TreesPath, &run.Output, &run.Format,
			&run.Trees, &run.Species, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", created, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Source returns the decompressed survey GeoJSON of one archived run.
func (s *Store) Source(id int64) ([]byte, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}

	var compressed []byte
	err := s.db.QueryRow("SELECT source FROM runs WHERE id = ?", id).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}

	return gzipDecompress(compressed)
}

// Close flushes any remaining runs and closes the database.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip reader: %w", err)
	}
	defer gr.Close()

	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress source: %w", err)
	}
	return out, nil
}
