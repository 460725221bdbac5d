// Package history keeps a local record of finished sessions in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"anyvoice/pipeline"

	_ "modernc.org/sqlite"
)

// DefaultKeep is how many entries Prune leaves behind when no limit is given.
const DefaultKeep = 500

// Entry is one finished session as stored on disk. Audio is never kept.
type Entry struct {
	ID            string
	State         string
	Transcript    string
	CorrectedText string
	Copied        bool
	Error         string
	DurationMs    int64
	StartedAt     time.Time
	EndedAt       time.Time
}

func EntryFromSession(s pipeline.Session) Entry {
	e := Entry{
		ID:            s.ID,
		State:         s.State.String(),
		Transcript:    s.Transcript,
		CorrectedText: s.CorrectedText,
		Copied:        s.Copied,
		DurationMs:    s.Artifact.Duration.Milliseconds(),
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}
	if s.Err != nil {
		e.Error = s.Err.Error()
	}
	return e
}

type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// DefaultPath is history.db under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "anyvoice", "history.db"), nil
}

func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    transcript TEXT,
    corrected_text TEXT,
    copied INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores e, replacing any entry with the same ID.
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.EndedAt.IsZero() {
		e.EndedAt = s.clock()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.EndedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, state, transcript, corrected_text, copied, error, duration_ms, started_at, ended_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state=excluded.state, transcript=excluded.transcript,
		   corrected_text=excluded.corrected_text, copied=excluded.copied, error=excluded.error,
		   duration_ms=excluded.duration_ms, ended_at=excluded.ended_at`,
		e.ID, e.State, e.Transcript, e.CorrectedText, e.Copied, e.Error, e.DurationMs,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.EndedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, transcript, corrected_text, copied, error, duration_ms, started_at, ended_at
		 FROM sessions ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var transcript, corrected, errText sql.NullString
		var started, ended string
		if err := rows.Scan(&e.ID, &e.State, &transcript, &corrected, &e.Copied, &errText, &e.DurationMs, &started, &ended); err != nil {
			return nil, err
		}
		e.Transcript = transcript.String
		e.CorrectedText = corrected.String
		e.Error = errText.String
		if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
			e.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, ended); err == nil {
			e.EndedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastCorrected returns the newest non-empty corrected text.
func (s *Store) LastCorrected(ctx context.Context) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT corrected_text FROM sessions
		 WHERE state = 'completed' AND corrected_text != ''
		 ORDER BY ended_at DESC LIMIT 1`).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return text, err
}

// Prune keeps the newest keep entries and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (
		SELECT id FROM sessions ORDER BY ended_at DESC LIMIT -1 OFFSET ?
	)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
