// Package history is the out-of-core durable record of submitted tasks and
// their results. It is grounded on the original coordinator's SQLite-backed
// persistence module, adapted to Go's database/sql with the mattn/go-sqlite3
// driver. The dispatcher only ever writes through this package (see
// dispatcher.HistorySink); only the HTTP query surface reads from it.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
)

// Record is one row of task history: the submission fields plus whatever
// result fields have arrived so far.
type Record struct {
	TaskID      string
	Command     string
	Status      string
	WorkerID    string
	Stdout      string
	Stderr      string
	ExitCode    *int32
	DurationMs  uint64
	SubmittedAt int64
	CompletedAt int64
}

// Store wraps a single SQLite connection. SQLite serializes writers
// internally; WAL mode lets the HTTP query surface's reads proceed
// concurrently with the dispatcher's writes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		task_id      TEXT PRIMARY KEY,
		command      TEXT NOT NULL,
		status       TEXT NOT NULL,
		worker_id    TEXT,
		stdout       TEXT,
		stderr       TEXT,
		exit_code    INTEGER,
		duration_ms  INTEGER,
		submitted_at INTEGER NOT NULL,
		completed_at INTEGER
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSubmission inserts a pending row. A duplicate task id is ignored,
// since dispatch retries re-enqueue the same task without resubmitting it
// through the HTTP layer.
func (s *Store) RecordSubmission(t *protocol.Task) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO tasks (task_id, command, status, submitted_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Command, protocol.StatusPending.String(), time.Now().Unix(),
	)
	if err != nil {
		logger.WithComponent("history").Error().Err(err).Str("task_id", t.ID).Msg("failed to record submission")
	}
}

// RecordResult upserts the final outcome for a task.
func (s *Store) RecordResult(r *protocol.TaskResult) {
	_, err := s.db.Exec(
		`INSERT INTO tasks (task_id, command, status, worker_id, stdout, stderr, exit_code, duration_ms, submitted_at, completed_at)
		 VALUES (?, '', ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			worker_id = excluded.worker_id,
			stdout = excluded.stdout,
			stderr = excluded.stderr,
			exit_code = excluded.exit_code,
			duration_ms = excluded.duration_ms,
			completed_at = excluded.completed_at`,
		r.TaskID, r.Status.String(), r.WorkerID, r.Stdout, r.Stderr, r.ExitCode, r.DurationMs,
		time.Now().Unix(), r.CompletedAt,
	)
	if err != nil {
		logger.WithComponent("history").Error().Err(err).Str("task_id", r.TaskID).Msg("failed to record result")
	}
}

// GetTask fetches a single row by task id.
func (s *Store) GetTask(taskID string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT task_id, command, status, worker_id, stdout, stderr, exit_code, duration_ms, submitted_at, completed_at
		 FROM tasks WHERE task_id = ?`, taskID)
	return scanRecord(row)
}

// ListRecent returns the most recently submitted rows, newest first.
func (s *Store) ListRecent(limit int) ([]*Record, error) {
	rows, err := s.db.Query(
		`SELECT task_id, command, status, worker_id, stdout, stderr, exit_code, duration_ms, submitted_at, completed_at
		 FROM tasks ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list recent: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus returns aggregate row counts grouped by status.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Ping verifies the connection is alive, for the admin health endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	return scanInto(row)
}

func scanRows(row scanner) (*Record, error) {
	return scanInto(row)
}

func scanInto(row scanner) (*Record, error) {
	var r Record
	var workerID, stdout, stderr sql.NullString
	var exitCode sql.NullInt64
	var completedAt sql.NullInt64

	err := row.Scan(&r.TaskID, &r.Command, &r.Status, &workerID, &stdout, &stderr, &exitCode, &r.DurationMs, &r.SubmittedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	r.WorkerID = workerID.String
	r.Stdout = stdout.String
	r.Stderr = stderr.String
	if exitCode.Valid {
		v := int32(exitCode.Int64)
		r.ExitCode = &v
	}
	r.CompletedAt = completedAt.Int64
	return &r, nil
}
