// Package audit records session decisions (applications, skips, action
// failures) in a local SQLite database. The trail is observability, not
// state: a failing audit store never blocks or fails the run, and the
// ledger remains the only source of truth for duplicate suppression.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS application_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	job_id     TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	success    INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_application_events_job
	ON application_events(job_id, created_at);
`

// Event is one session decision to record.
type Event struct {
	// Event names the decision: "applied", "skipped", "action_failed",
	// "session_started", "session_completed", "session_failed".
	Event string

	// JobID identifies the job the decision concerns, when there is one.
	JobID string

	// Detail is free text: a skip reason, an error, a job description in
	// markdown.
	Detail string

	Success bool
}

// Logger writes application events. A nil *Logger is a no-op, so callers
// never need to branch on whether auditing is configured.
type Logger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the audit database at path with WAL and
// busy-timeout pragmas, applies the schema, and returns a Logger.
func Open(path string, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: schema: %w", err)
	}

	return &Logger{db: db, logger: logger, now: time.Now}, nil
}

// New wraps an already-opened database, applying the schema. Used by
// tests with an in-memory database.
func New(db *sql.DB, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	return &Logger{db: db, logger: logger, now: time.Now}, nil
}

// Record writes one event. Failures are slog-logged and swallowed so a
// broken audit store never interrupts the session.
func (l *Logger) Record(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO application_events (event, job_id, detail, success, created_at)
		VALUES (?,?,?,?,?)`,
		ev.Event, ev.JobID, ev.Detail, ev.Success, l.now().Unix())
	if err != nil {
		l.logger.Error("audit: event write failed", "event", ev.Event, "job_id", ev.JobID, "error", err)
	}
}

// Row is a stored event, as returned by Recent.
type Row struct {
	Event     string
	JobID     string
	Detail    string
	Success   bool
	CreatedAt time.Time
}

// Recent returns the latest n events, newest first.
func (l *Logger) Recent(ctx context.Context, n int) ([]Row, error) {
	if l == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event, job_id, detail, success, created_at
		FROM application_events
		ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ts int64
		if err := rows.Scan(&r.Event, &r.JobID, &r.Detail, &r.Success, &ts); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}
