package history

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndGet(t *testing.T) {
	s := newTestStore(t)

	e, err := s.Append("hello world", "en", 1.2, "/tmp/rec.wav")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("entry id not assigned")
	}
	if time.Since(e.CreatedAt) > time.Minute {
		t.Fatalf("implausible CreatedAt %v", e.CreatedAt)
	}

	got, err := s.Get(e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "hello world" || got.Language != "en" || got.Duration != 1.2 {
		t.Fatalf("entry = %+v", got)
	}
	if got.AudioFile != "/tmp/rec.wav" {
		t.Fatalf("audio file = %q", got.AudioFile)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.Append(text, "en", 1, ""); err != nil {
			t.Fatalf("Append(%s): %v", text, err)
		}
	}

	entries, err := s.Recent(2, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Text != "third" || entries[1].Text != "second" {
		t.Fatalf("order = %q, %q", entries[0].Text, entries[1].Text)
	}
}

func TestRecentSearch(t *testing.T) {
	s := newTestStore(t)
	for _, text := range []string{"meeting notes", "shopping list", "More Meeting follow-ups"} {
		if _, err := s.Append(text, "en", 1, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := s.Recent(10, "meeting")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("search matched %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Text == "shopping list" {
			t.Fatal("search returned non-matching entry")
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	e1, _ := s.Append("one", "en", 1, "")
	s.Append("two", "en", 1, "")

	if err := s.Delete(e1.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(e1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, _ = s.Count()
	if n != 0 {
		t.Fatalf("count after clear = %d", n)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestStore(t)
	s.Append("hello, \"quoted\" text", "en", 1.5, "")
	s.Append("zweiter eintrag", "de", 0.8, "")

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(records))
	}
	if records[0][0] != "id" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][2] != "hello, \"quoted\" text" {
		t.Fatalf("first row text = %q", records[1][2])
	}
	if records[2][3] != "de" {
		t.Fatalf("second row language = %q", records[2][3])
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Append("persisted", "en", 1, "")
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	entries, err := s2.Recent(10, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "persisted" {
		t.Fatalf("entries after reopen = %+v", entries)
	}
}
