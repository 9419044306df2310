// Package ledger persists quill's session telemetry in SQLite: model
// invocations with token usage and cost, tool-call stats, and remembered
// tool approvals. The ledger is advisory; nothing in it is ever fed
// back to the model.
package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Ledger wraps the session database. Open it once at startup; rows are
// attributed to the session set by StartSession.
type Ledger struct {
	db        *sql.DB
	path      string
	sessionID string
}

// Summary aggregates one session's activity.
type Summary struct {
	Invocations      int
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	ToolCalls        int
	ToolErrors       int
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS invocations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost              REAL NOT NULL DEFAULT 0,
	duration_ms       INTEGER NOT NULL,
	created_at        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tool_calls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	tool        TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	is_error    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS approvals (
	tool        TEXT PRIMARY KEY,
	approved_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session_id);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id);
`

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	// WAL mode for concurrent reads, foreign keys enabled
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}

	l := &Ledger{db: db, path: path}
	slog.Info("ledger opened", "path", path)
	return l, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// StartSession registers a new session and attributes subsequent rows
// to it.
func (l *Ledger) StartSession(id string) error {
	now := timestamp()
	if _, err := l.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, now,
	); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	l.sessionID = id
	slog.Debug("session started", "session", id)
	return nil
}

// SessionID returns the current session identifier.
func (l *Ledger) SessionID() string {
	return l.sessionID
}

// RecordInvocation stores one model invocation's usage.
func (l *Ledger) RecordInvocation(model string, promptTokens, completionTokens int, cost float64, d time.Duration) error {
	_, err := l.db.Exec(
		`INSERT INTO invocations (session_id, model, prompt_tokens, completion_tokens, cost, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.sessionID, model, promptTokens, completionTokens, cost, d.Milliseconds(), timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// RecordToolCall stores one tool execution's outcome.
func (l *Ledger) RecordToolCall(tool string, d time.Duration, isError bool) error {
	errFlag := 0
	if isError {
		errFlag = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO tool_calls (session_id, tool, duration_ms, is_error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		l.sessionID, tool, d.Milliseconds(), errFlag, timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// IsApproved reports whether the tool has a remembered always-allow
// decision.
func (l *Ledger) IsApproved(tool string) bool {
	var one int
	err := l.db.QueryRow("SELECT 1 FROM approvals WHERE tool = ?", tool).Scan(&one)
	return err == nil
}

// Approve remembers an always-allow decision for the tool.
func (l *Ledger) Approve(tool string) error {
	_, err := l.db.Exec(
		`INSERT INTO approvals (tool, approved_at) VALUES (?, ?)
		 ON CONFLICT(tool) DO UPDATE SET approved_at = excluded.approved_at`,
		tool, timestamp(),
	)
	return err
}

// ClearApprovals removes every remembered approval.
func (l *Ledger) ClearApprovals() error {
	_, err := l.db.Exec("DELETE FROM approvals")
	return err
}

// SessionSummary aggregates the current session's recorded activity.
func (l *Ledger) SessionSummary() (*Summary, error) {
	var s Summary
	err := l.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(cost), 0)
		 FROM invocations WHERE session_id = ?`,
		l.sessionID,
	).Scan(&s.Invocations, &s.PromptTokens, &s.CompletionTokens, &s.Cost)
	if err != nil {
		return nil, fmt.Errorf("summarize invocations: %w", err)
	}

	err = l.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_error), 0)
		 FROM tool_calls WHERE session_id = ?`,
		l.sessionID,
	).Scan(&s.ToolCalls, &s.ToolErrors)
	if err != nil {
		return nil, fmt.Errorf("summarize tool calls: %w", err)
	}

	return &s, nil
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
