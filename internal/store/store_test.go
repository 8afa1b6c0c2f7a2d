package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/storywatch/storyfold/internal/event"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM canonical_events").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{
		"documents", "event_clusters", "canonical_events",
		"daily_mentions", "consolidation_runs", "merge_log",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_DataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	id, err := s1.CreateEvent(ctx, event.CanonicalEvent{Name: "Port Expansion", Country: "KE"})
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	ev, err := s2.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("GetEvent() after reopen failed: %v", err)
	}
	if ev.Name != "Port Expansion" {
		t.Errorf("name = %q, want %q", ev.Name, "Port Expansion")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version query failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

// Trigger tests: the SQL backstop for the one-level hierarchy. The
// store layer normally rejects these before SQL does, so go straight
// at the database.

func TestTrigger_RejectsInsertUnderChild(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	masterID := createMaster(t, s, "KE", "Master")
	childID := createChild(t, s, "KE", "Child", masterID)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_events
		(master_event_id, name, country, created_at, updated_at)
		VALUES (?, 'Grandchild', 'KE', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`, childID)
	if err == nil {
		t.Fatal("expected trigger to reject insert under a child")
	}
}

func TestTrigger_RejectsUpdateToChildParent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	masterID := createMaster(t, s, "KE", "Master")
	childID := createChild(t, s, "KE", "Child", masterID)
	otherID := createMaster(t, s, "KE", "Other")

	_, err := s.db.ExecContext(ctx, `
		UPDATE canonical_events SET master_event_id = ? WHERE id = ?
	`, childID, otherID)
	if err == nil {
		t.Fatal("expected trigger to reject reparent under a child")
	}
}

func TestForeignKey_RestrictsEventDeleteWithMentions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	masterID := createMaster(t, s, "KE", "Master")
	addMention(t, s, masterID, "2024-01-01", 5, "d1")

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM canonical_events WHERE id = ?`, masterID)
	if err == nil {
		t.Fatal("expected RESTRICT to block deleting an event with mentions")
	}
}
