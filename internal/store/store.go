// Package store is the durable audit trail for runs and daily prompts,
// backed by modernc.org/sqlite. An embedded database keeps the daily
// scheduler and lockfile history across restarts; it is explicitly NOT a
// conversation-history store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	engine_id TEXT NOT NULL,
	resume_raw TEXT NOT NULL DEFAULT '',
	ok INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	ended_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_prompts (
	id TEXT PRIMARY KEY,
	cron TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	engine_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	last_fired_at DATETIME
);

CREATE TABLE IF NOT EXISTS lock_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	pid INTEGER NOT NULL,
	action TEXT NOT NULL,
	at DATETIME NOT NULL
);
`

// Store wraps a sqlite connection holding the run audit log, the daily
// prompt table and lockfile acquisition history.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: one writer at a time is simplest and sufficient here.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordRun appends one completed run to the audit log.
func (s *Store) RecordRun(ctx context.Context, threadID, engineID, resumeRaw string, ok bool, errMsg string, startedAt, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (thread_id, engine_id, resume_raw, ok, error, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		threadID, engineID, resumeRaw, boolToInt(ok), errMsg, startedAt, endedAt)
	return err
}

// RecordLockEvent appends one lockfile acquire/steal/release event, used
// for diagnosing AlreadyRunning disputes after the fact.
func (s *Store) RecordLockEvent(ctx context.Context, fingerprint string, pid int, action string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lock_events (fingerprint, pid, action, at) VALUES (?, ?, ?, ?)`,
		fingerprint, pid, action, time.Now())
	return err
}

// DailyPromptRow is one row of the daily_prompts table.
type DailyPromptRow struct {
	ID       string
	Cron     string
	ThreadID string
	EngineID string
	Prompt   string
	Enabled  bool
}

// ListDailyPrompts returns every enabled daily prompt, for the scheduler
// to register with cron at startup.
func (s *Store) ListDailyPrompts(ctx context.Context) ([]DailyPromptRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, cron, thread_id, engine_id, prompt, enabled FROM daily_prompts WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyPromptRow
	for rows.Next() {
		var r DailyPromptRow
		var enabled int
		if err := rows.Scan(&r.ID, &r.Cron, &r.ThreadID, &r.EngineID, &r.Prompt, &enabled); err != nil {
			return nil, err
		}
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertDailyPrompt inserts or replaces a daily prompt row by id.
func (s *Store) UpsertDailyPrompt(ctx context.Context, r DailyPromptRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_prompts (id, cron, thread_id, engine_id, prompt, enabled) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cron=excluded.cron, thread_id=excluded.thread_id, engine_id=excluded.engine_id, prompt=excluded.prompt, enabled=excluded.enabled`,
		r.ID, r.Cron, r.ThreadID, r.EngineID, r.Prompt, boolToInt(r.Enabled))
	return err
}

// MarkDailyPromptFired updates the last_fired_at timestamp after cron
// dispatches a prompt.
func (s *Store) MarkDailyPromptFired(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE daily_prompts SET last_fired_at = ? WHERE id = ?`, at, id)
	return err
}

// ListDailyPromptsForThread returns every daily prompt (enabled or not)
// owned by threadID, for the "/schedule list" command.
func (s *Store) ListDailyPromptsForThread(ctx context.Context, threadID string) ([]DailyPromptRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cron, thread_id, engine_id, prompt, enabled FROM daily_prompts WHERE thread_id = ? ORDER BY id`,
		threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyPromptRow
	for rows.Next() {
		var r DailyPromptRow
		var enabled int
		if err := rows.Scan(&r.ID, &r.Cron, &r.ThreadID, &r.EngineID, &r.Prompt, &enabled); err != nil {
			return nil, err
		}
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteDailyPrompt removes prompt id, scoped to threadID so one thread
// cannot delete another thread's schedule. Reports whether a row existed.
func (s *Store) DeleteDailyPrompt(ctx context.Context, threadID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM daily_prompts WHERE id = ? AND thread_id = ?`, id, threadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetDailyPromptEnabled flips the enabled flag of prompt id, scoped to
// threadID. Reports whether a row existed.
func (s *Store) SetDailyPromptEnabled(ctx context.Context, threadID, id string, enabled bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_prompts SET enabled = ? WHERE id = ? AND thread_id = ?`,
		boolToInt(enabled), id, threadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
