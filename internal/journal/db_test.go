package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	database, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	tables := []string{"session_entries", "export_entries", "exports", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_WALEnabled(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestOpen_MarksInterruptedExports(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store := NewStore(db1.Conn())
	ctx := context.Background()
	if err := store.RecordExport(ctx, &ExportEntry{JobID: "job-running", ExportID: "e1", Status: "processing", Progress: 40}); err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}
	if err := store.RecordExport(ctx, &ExportEntry{JobID: "job-done", ExportID: "e2", Status: "completed", Progress: 100}); err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer db2.Close()
	store = NewStore(db2.Conn())

	running, err := store.GetExport(ctx, "job-running")
	if err != nil {
		t.Fatalf("GetExport() error = %v", err)
	}
	if running.Status != StatusInterrupted {
		t.Errorf("status = %s, want %s", running.Status, StatusInterrupted)
	}

	done, _ := store.GetExport(ctx, "job-done")
	if done.Status != "completed" {
		t.Errorf("completed export status = %s, want completed", done.Status)
	}

	history, err := store.ListExportEntries(ctx, "job-running", 10)
	if err != nil {
		t.Fatalf("ListExportEntries() error = %v", err)
	}
	if len(history) != 2 || history[0].Status != StatusInterrupted || history[0].Progress != 40 || history[0].ExportID != "e1" {
		t.Fatalf("history = %+v, want an interrupted entry on top", history)
	}
	if doneHistory, _ := store.ListExportEntries(ctx, "job-done", 10); len(doneHistory) != 1 {
		t.Errorf("completed export history = %d entries, want 1", len(doneHistory))
	}
}

func TestOpen_SecondOpenLeavesInterruptedAlone(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db1.Store().RecordExport(ctx, &ExportEntry{JobID: "job-1", Status: "pending"}); err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}
	db1.Close()

	for i := 0; i < 2; i++ {
		d, err := Open(dbPath, nil)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+2, err)
		}
		d.Close()
	}

	d, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()
	history, err := d.Store().ListExportEntries(ctx, "job-1", 10)
	if err != nil {
		t.Fatalf("ListExportEntries() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2 (recorded + one interrupted)", len(history))
	}
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/journal.db")
	if !strings.HasPrefix(got, "/tmp/journal.db?_pragma=") {
		t.Fatalf("dsn() = %q", got)
	}
	for _, p := range []string{"busy_timeout%285000%29", "journal_mode%28WAL%29", "foreign_keys%28ON%29"} {
		if !strings.Contains(got, p) {
			t.Errorf("dsn() = %q, missing %s", got, p)
		}
	}
}
