// Package store persists engine snapshots. Two backends share one
// interface: a JSON file for DB-less runs and Postgres for deployments.
package store

import (
	"context"

	"rackrent/internal/engine"
)

// Store loads and saves full game snapshots. Load reports found=false on a
// cold start (nothing saved yet, or the save was unreadable).
type Store interface {
	Load(ctx context.Context) (engine.Snapshot, bool, error)
	Save(ctx context.Context, snap engine.Snapshot) error
	Close()
}
