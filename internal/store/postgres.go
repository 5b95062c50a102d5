package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rackrent/internal/engine"
)

// PostgresStore keeps the snapshot as a single jsonb row. One game per
// database; the primary key pins the row.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_snapshots (
			id       INT PRIMARY KEY CHECK (id = 1),
			saved_at TIMESTAMPTZ NOT NULL,
			data     JSONB NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("ensure snapshot table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (engine.Snapshot, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM game_snapshots WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Same policy as the file store: a bad save is set aside, not fatal.
		s.log.Warn("corrupted snapshot row, starting fresh", "err", err)
		return engine.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_snapshots (id, saved_at, data)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET saved_at = EXCLUDED.saved_at, data = EXCLUDED.data`,
		snap.SavedAt, data)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
