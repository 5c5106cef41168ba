package ports

import (
	"context"

	"github.com/aretw0/playbook/pkg/domain"
)

// ProgressStore persists traversal progress, keyed by (workflow name, incident number).
// This enables "stop & resume" runs.
type ProgressStore interface {
	// Save overwrites the snapshot stored under snapshot.Key(). It never merges.
	Save(ctx context.Context, snapshot *domain.ProgressSnapshot) error

	// Load retrieves the snapshot for a workflow and incident.
	// Returns domain.ErrSnapshotNotFound when absent and domain.ErrSnapshotCorrupt
	// when the stored record cannot be decoded.
	Load(ctx context.Context, workflow, incident string) (*domain.ProgressSnapshot, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, workflow, incident string) error

	// List returns the keys of every stored snapshot.
	List(ctx context.Context) ([]string, error)
}
