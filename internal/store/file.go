package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"rackrent/internal/engine"
)

// FileStore keeps the snapshot as one JSON document on disk. Saves go
// through a temp file and rename so a crash mid-write never corrupts the
// existing save.
type FileStore struct {
	path string
	log  *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, log: logger}
}

// Load reads the snapshot. A missing file is a cold start. An unreadable
// file is moved aside to <path>.corrupt and treated as a cold start, so a
// bad save never blocks the server from booting.
func (s *FileStore) Load(_ context.Context) (engine.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		backup := s.path + ".corrupt"
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			s.log.Error("could not move corrupted snapshot aside", "path", s.path, "err", renameErr)
		} else {
			s.log.Warn("corrupted snapshot moved aside, starting fresh", "backup", backup, "err", err)
		}
		return engine.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *FileStore) Save(_ context.Context, snap engine.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rackrent-save-*")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp save: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

func (s *FileStore) Close() {}
