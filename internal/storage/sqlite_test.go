package storage

import (
	"errors"
	"testing"

	"github.com/levchenko/complychat/internal/backend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaceHistory(t *testing.T) {
	s := newTestStore(t)

	first := []backend.HistoryEntry{
		{SessionID: "s1", Preview: "what does GDPR require?"},
		{SessionID: "s2", Preview: "audit thresholds"},
	}
	if err := s.ReplaceHistory(first); err != nil {
		t.Fatalf("ReplaceHistory: %v", err)
	}

	got, err := s.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].SessionID != "s1" || got[1].SessionID != "s2" {
		t.Errorf("order not preserved: %v", got)
	}
	if got[0].Preview != "what does GDPR require?" {
		t.Errorf("preview = %q", got[0].Preview)
	}

	// A second replace drops the old list entirely.
	second := []backend.HistoryEntry{{SessionID: "s3", Preview: "new"}}
	if err := s.ReplaceHistory(second); err != nil {
		t.Fatalf("second ReplaceHistory: %v", err)
	}
	got, err = s.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "s3" {
		t.Errorf("cache not replaced wholesale: %v", got)
	}
}

func TestReplaceHistory_Empty(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceHistory([]backend.HistoryEntry{{SessionID: "s1"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceHistory(nil); err != nil {
		t.Fatalf("ReplaceHistory(nil): %v", err)
	}
	got, err := s.History()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
}

func TestClientState(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetState("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetState(missing) = %v, want ErrNotFound", err)
	}

	if err := s.SetState("k", "v1"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := s.SetState("k", "v2"); err != nil {
		t.Fatalf("SetState overwrite: %v", err)
	}

	got, err := s.GetState("k")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got != "v2" {
		t.Errorf("GetState = %q, want v2", got)
	}
}

func TestLastSession(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LastSession(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LastSession on empty store = %v, want ErrNotFound", err)
	}

	if err := s.SetLastSession("sess-42"); err != nil {
		t.Fatalf("SetLastSession: %v", err)
	}
	got, err := s.LastSession()
	if err != nil {
		t.Fatalf("LastSession: %v", err)
	}
	if got != "sess-42" {
		t.Errorf("LastSession = %q", got)
	}
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetLastSession("persisted"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening runs migrations idempotently and sees the stored state.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s2.Close()

	got, err := s2.LastSession()
	if err != nil {
		t.Fatalf("LastSession: %v", err)
	}
	if got != "persisted" {
		t.Errorf("LastSession = %q", got)
	}
}
