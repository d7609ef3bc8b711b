// Package audit persists an append-only log of token resolutions.
//
// The in-memory store stays the source of truth for live state; this log
// exists so the operator can answer "what did I approve from my phone last
// night" after the fact. Writes are best-effort: a failed append is logged
// and never blocks or fails the resolution that triggered it.
package audit

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	// Pure-Go SQLite driver, imported for side effects (registers the
	// driver). No CGO keeps cross-compilation easy.
	_ "modernc.org/sqlite"
)

// Sources for a resolution, recorded for each entry.
const (
	// SourceClick is an approve/deny notification action link.
	SourceClick = "click"

	// SourcePage is a custom-text submission from the resolution page.
	SourcePage = "page"
)

// Entry is one resolved action.
type Entry struct {
	// ID is the unique identifier for this audit entry.
	ID string

	// Token is the action token that was resolved.
	Token string

	// SessionID is the owning agent session.
	SessionID string

	// Kind is the action's decision kind (permission, idle, ...).
	Kind string

	// Outcome is "allow", "deny", or "text".
	Outcome string

	// Text is the custom text for text outcomes, empty otherwise.
	Text string

	// Source is how the resolution arrived (SourceClick or SourcePage).
	Source string

	// Dispatch is the keystroke delivery result ("ok", "session_not_found",
	// "failure", or empty when no dispatch was attempted).
	Dispatch string

	// DecidedAt is when the resolution happened.
	DecidedAt time.Time
}

// Log is a SQLite-backed resolution audit log.
type Log struct {
	db *sql.DB
	mu sync.Mutex // Guards writes; SQLite serializes anyway, this bounds busy errors.
}

// Open opens or creates the audit database at the given path and ensures
// the schema exists. Use ":memory:" for tests.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS resolution_audit (
			id         TEXT PRIMARY KEY,
			token      TEXT NOT NULL,
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			source     TEXT NOT NULL,
			dispatch   TEXT NOT NULL DEFAULT '',
			decided_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_resolution_audit_decided_at
			ON resolution_audit(decided_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	log.Printf("audit: database ready at %s", path)
	return &Log{db: db}, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends an entry. A nil receiver is a no-op so call sites don't
// need to branch on whether auditing is enabled. The entry ID is generated
// when empty; DecidedAt defaults to now.
func (l *Log) Record(entry *Entry) error {
	if l == nil {
		return nil
	}
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.DecidedAt.IsZero() {
		entry.DecidedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	const query = `
		INSERT INTO resolution_audit
			(id, token, session_id, kind, outcome, text, source, dispatch, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.Exec(query,
		entry.ID,
		entry.Token,
		entry.SessionID,
		entry.Kind,
		entry.Outcome,
		entry.Text,
		entry.Source,
		entry.Dispatch,
		entry.DecidedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save audit entry: %w", err)
	}
	return nil
}

// Recent returns entries newest first. Use limit <= 0 for all entries.
func (l *Log) Recent(limit int) ([]*Entry, error) {
	if l == nil {
		return nil, nil
	}

	query := `
		SELECT id, token, session_id, kind, outcome, text, source, dispatch, decided_at
		FROM resolution_audit
		ORDER BY decided_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var decidedAt string
		if err := rows.Scan(&e.ID, &e.Token, &e.SessionID, &e.Kind, &e.Outcome,
			&e.Text, &e.Source, &e.Dispatch, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, decidedAt); parseErr == nil {
			e.DecidedAt = t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
