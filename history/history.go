// Package history persists finished transcriptions in a local SQLite
// database.
package history

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("history entry not found")

// Entry is one stored transcription.
type Entry struct {
	ID        int64
	CreatedAt time.Time
	Text      string
	Language  string
	Duration  float64 // audio length in seconds
	AudioFile string  // artifact path, empty once cleaned up
}

// Store wraps the SQLite database holding the transcription history.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	text TEXT NOT NULL,
	language TEXT,
	duration REAL,
	audio_file TEXT
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at);
`

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	slog.Info("history store opened", "path", path)
	return &Store{db: db}, nil
}

// Append stores a new entry and returns it with ID and CreatedAt set.
func (s *Store) Append(text, language string, duration float64, audioFile string) (*Entry, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO transcriptions (created_at, text, language, duration, audio_file) VALUES (?, ?, ?, ?, ?)`,
		now.Format(time.RFC3339), text, language, duration, audioFile,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("history entry id: %w", err)
	}
	return &Entry{
		ID:        id,
		CreatedAt: now,
		Text:      text,
		Language:  language,
		Duration:  duration,
		AudioFile: audioFile,
	}, nil
}

// Recent returns up to limit entries, newest first. A non-empty search
// filters entries whose text contains it, case-insensitively.
func (s *Store) Recent(limit int, search string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, text, language, duration, audio_file
		FROM transcriptions`
	args := []any{}
	if search != "" {
		query += ` WHERE text LIKE ? COLLATE NOCASE`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a single entry by id.
func (s *Store) Get(id int64) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, text, language, duration, audio_file FROM transcriptions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes one entry.
func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM transcriptions`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transcriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Export writes the full history as CSV, oldest first.
func (s *Store) Export(w io.Writer) error {
	rows, err := s.db.Query(
		`SELECT id, created_at, text, language, duration, audio_file FROM transcriptions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "created_at", "text", "language", "duration_seconds"}); err != nil {
		return err
	}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		rec := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format(time.RFC3339),
			e.Text,
			e.Language,
			strconv.FormatFloat(e.Duration, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var e Entry
	var createdAt string
	var language, audioFile sql.NullString
	var duration sql.NullFloat64
	if err := r.Scan(&e.ID, &createdAt, &e.Text, &language, &duration, &audioFile); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry timestamp: %w", err)
	}
	e.CreatedAt = t
	e.Language = language.String
	e.Duration = duration.Float64
	e.AudioFile = audioFile.String
	return e, nil
}
