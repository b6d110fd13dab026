package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry states, matching poller.State strings
const (
	StateCompleted = "COMPLETED"
	StateAborted   = "ABORTED"
)

// Journal is an append-mostly log of polling cycles backed by SQLite.
// It is never read back by the poller.
type Journal struct {
	db *sql.DB
}

// Entry represents one recorded cycle
type Entry struct {
	ID           string // cycle UUID
	URL          string
	Profile      string
	State        string
	StatusCode   int
	RequestTime  time.Time // zero if unknown
	ResponseTime time.Time // zero if unknown
	Body         string
	Error        string
	RecordedAt   time.Time
}

// Open creates or opens a journal at dbPath. Use ":memory:" for a
// process-local journal.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are per-connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			profile TEXT,
			state TEXT NOT NULL,
			status_code INTEGER NOT NULL DEFAULT 0,
			request_time INTEGER,
			response_time INTEGER,
			body TEXT,
			error TEXT,
			recorded_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_recorded_at ON cycles(recorded_at);
		CREATE INDEX IF NOT EXISTS idx_state ON cycles(state, recorded_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record inserts an entry. RecordedAt defaults to now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	query := `
		INSERT INTO cycles (id, url, profile, state, status_code, request_time, response_time, body, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		e.ID,
		e.URL,
		e.Profile,
		e.State,
		e.StatusCode,
		nullableMillis(e.RequestTime),
		nullableMillis(e.ResponseTime),
		e.Body,
		e.Error,
		e.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, url, COALESCE(profile, ''), state, status_code,
			request_time, response_time, COALESCE(body, ''), COALESCE(error, ''), recorded_at
		FROM cycles
		ORDER BY recorded_at DESC, rowid DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var requestMillis, responseMillis sql.NullInt64
		var recordedMillis int64

		err := rows.Scan(
			&e.ID,
			&e.URL,
			&e.Profile,
			&e.State,
			&e.StatusCode,
			&requestMillis,
			&responseMillis,
			&e.Body,
			&e.Error,
			&recordedMillis,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		e.RequestTime = fromNullableMillis(requestMillis)
		e.ResponseTime = fromNullableMillis(responseMillis)
		e.RecordedAt = time.UnixMilli(recordedMillis)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycles: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries. An empty state counts all entries.
func (j *Journal) Count(ctx context.Context, state string) (int, error) {
	query := "SELECT COUNT(*) FROM cycles"
	args := []any{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, state)
	}

	var count int
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cycles: %w", err)
	}

	return count, nil
}

// Cleanup removes entries recorded more than maxAge ago
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	result, err := j.db.ExecContext(ctx, "DELETE FROM cycles WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old cycles: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullableMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64)
}
