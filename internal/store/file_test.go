package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rackrent/internal/engine"
)

func testFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "save.json")
	return NewFileStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileStoreColdStart(t *testing.T) {
	s := testFileStore(t)
	_, found, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("found a snapshot in an empty dir")
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	s := testFileStore(t)
	eng := engine.New(engine.Config{StartingMoneyCents: 123 * engine.CentsPerCredit}, nil)
	eng.SubmitRequest(engine.NewCustomerRequest("Mira Webshop", engine.TierIndividual,
		engine.ResourceShape{VCPU: 1, RAMGB: 2, DiskGB: 40}, engine.PeriodWeekly, 1, 800, time.Now()))

	if err := s.Save(context.Background(), eng.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, found, err := s.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("load = %v found %v", err, found)
	}
	if snap.Company.MoneyCents != 123*engine.CentsPerCredit {
		t.Fatalf("money = %d, want %d", snap.Company.MoneyCents, 123*engine.CentsPerCredit)
	}
	if len(snap.Requests) != 1 || snap.Requests[0].Customer != "Mira Webshop" {
		t.Fatalf("requests = %+v", snap.Requests)
	}

	restored := engine.New(engine.Config{}, nil)
	restored.RestoreFrom(snap)
	if got := restored.Company().MoneyCents(); got != 123*engine.CentsPerCredit {
		t.Fatalf("restored money = %d", got)
	}
}

func TestFileStoreCorruptSaveIsSetAside(t *testing.T) {
	s := testFileStore(t)
	if err := os.WriteFile(s.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("plant corrupt file: %v", err)
	}

	_, found, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("corrupt snapshot reported as found")
	}
	if _, err := os.Stat(s.path + ".corrupt"); err != nil {
		t.Fatalf("corrupt file not moved aside: %v", err)
	}
	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		t.Fatalf("original corrupt file still present")
	}

	// A later save reuses the path cleanly.
	if err := s.Save(context.Background(), engine.Snapshot{SavedAt: time.Now()}); err != nil {
		t.Fatalf("save after corruption: %v", err)
	}
	if _, found, _ := s.Load(context.Background()); !found {
		t.Fatalf("fresh save not readable")
	}
}
