package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/storywatch/storyfold/internal/event"
)

// createTestStore creates a fresh on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createMaster inserts a validated master event and returns its ID.
func createMaster(t *testing.T, s *Store, country, name string) int64 {
	t.Helper()
	id, err := s.CreateEvent(context.Background(), event.CanonicalEvent{
		Name:      name,
		Country:   country,
		Validated: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent(master %q) failed: %v", name, err)
	}
	return id
}

// createChild inserts a child event under masterID and returns its ID.
func createChild(t *testing.T, s *Store, country, name string, masterID int64) int64 {
	t.Helper()
	id, err := s.CreateEvent(context.Background(), event.CanonicalEvent{
		Name:          name,
		Country:       country,
		MasterEventID: &masterID,
	})
	if err != nil {
		t.Fatalf("CreateEvent(child %q) failed: %v", name, err)
	}
	return id
}

// addMention records coverage for an event on a day and returns the
// mention ID.
func addMention(t *testing.T, s *Store, eventID int64, day string, articles int, docs ...string) int64 {
	t.Helper()
	id, err := s.UpsertMention(context.Background(), event.Mention{
		EventID:      eventID,
		Date:         event.Day(day),
		ArticleCount: articles,
		DocIDs:       event.NewDocSet(docs...),
	})
	if err != nil {
		t.Fatalf("UpsertMention(%d, %s) failed: %v", eventID, day, err)
	}
	return id
}
