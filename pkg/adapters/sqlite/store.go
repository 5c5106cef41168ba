// Package sqlite persists progress snapshots in a single-file SQLite database.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is needed.
// Pass ":memory:" as the path for a throwaway database in tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.ProgressStore on SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS progress_snapshots (
			snapshot_key TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			incident_number TEXT NOT NULL,
			last_filled_question_id INTEGER,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create progress_snapshots table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts the snapshot under its key.
func (s *Store) Save(ctx context.Context, snap *domain.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var lastFilled sql.NullInt64
	if snap.LastFilledQuestionID != nil {
		lastFilled = sql.NullInt64{Int64: int64(*snap.LastFilledQuestionID), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_snapshots
			(snapshot_key, workflow_name, incident_number, last_filled_question_id, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_key) DO UPDATE SET
			last_filled_question_id = excluded.last_filled_question_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, snap.Key(), snap.WorkflowName, snap.IncidentNumber, lastFilled, string(payload), snap.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot by workflow and incident.
func (s *Store) Load(ctx context.Context, workflow, incident string) (*domain.ProgressSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("store is closed")
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM progress_snapshots WHERE snapshot_key = ?`,
		domain.SnapshotKey(workflow, incident),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap domain.ProgressSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

// Delete removes a snapshot. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, workflow, incident string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM progress_snapshots WHERE snapshot_key = ?`,
		domain.SnapshotKey(workflow, incident),
	)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns every stored key in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_key FROM progress_snapshots ORDER BY snapshot_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the database handle. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
