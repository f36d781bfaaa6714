package ports

import (
	"context"

	"gocp/domain/core"
	"gocp/domain/snapshot"
)

// SnapshotRepository stores predictor snapshots.
type SnapshotRepository interface {
	// Put stores a new snapshot.
	Put(ctx context.Context, snap snapshot.Snapshot) error

	// Get returns the snapshot with the given ID, or a NOT_FOUND error.
	Get(ctx context.Context, id core.ID) (snapshot.Snapshot, error)

	// List returns every stored snapshot, newest first.
	List(ctx context.Context) ([]snapshot.Snapshot, error)

	// Delete removes a snapshot; deleting a missing one is a NOT_FOUND error.
	Delete(ctx context.Context, id core.ID) error
}
