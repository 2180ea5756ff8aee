// Package store is the persistent store: transactional storage for
// jobs and config key/value pairs, realized on an embedded SQLite database
// in write-ahead-log mode with every transaction beginning BEGIN IMMEDIATE
// so the claim-next primitive is linearizable across OS processes.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rezkam/queuectl/internal/clock"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Job states, mirrored verbatim in the jobs.state column.
const (
	StatePending    = "pending"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateDead       = "dead"
)

const lastErrorMaxLen = 512

// StoreTimeout bounds every store transaction, per the concurrency model's
// 30-second store timeout.
const StoreTimeout = 30 * time.Second

// Job is a row of the jobs table.
type Job struct {
	ID                   string
	Command              string
	State                string
	Attempts             int
	MaxRetries           int
	CreatedAt            string
	UpdatedAt            string
	AvailableAt          string
	ProcessingStartedAt  *string
	CompletedAt          *string
	LastError            *string
}

// ConfigEntry is a row of the config table.
type ConfigEntry struct {
	Key       string
	Value     string
	UpdatedAt string
}

// ErrAlreadyExists is returned by InsertJob when id collides with an
// existing row. The queue engine translates this into its
// AlreadyExists error kind; the store itself stays adapter-free.
var ErrAlreadyExists = errors.New("store: job already exists")

// Store wraps a *sql.DB holding the jobs and config tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at dbPath in WAL
// mode with BEGIN IMMEDIATE as the default transaction lock, and applies
// the embedded goose migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// modernc.org/sqlite takes pragmas as _pragma=name(value) pairs;
	// the mattn-style _journal_mode=WAL form is silently ignored by this
	// driver, which would leave the claim path without WAL or a busy
	// timeout.
	busyMS := int(StoreTimeout / time.Millisecond)
	dsn := fmt.Sprintf("%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(on)", dbPath, busyMS)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// SQLite allows exactly one writer; a single connection avoids
	// SQLITE_BUSY storms between pooled connections in this same process
	// while WAL mode still lets other OS processes read/write concurrently.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedDefaults(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) seedDefaults(ctx context.Context) error {
	defaults := []ConfigEntry{
		{Key: "max_retries_default", Value: "3"},
		{Key: "backoff_base", Value: "2"},
		{Key: "poll_interval", Value: "2.0"},
	}
	for _, d := range defaults {
		if err := s.EnsureConfigDefault(ctx, d.Key, d.Value); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, StoreTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertJob inserts a new job row. Returns ErrAlreadyExists if the id is
// already taken.
func (s *Store) InsertJob(ctx context.Context, j Job) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (id, command, state, attempts, max_retries, created_at, updated_at, available_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			j.ID, j.Command, j.State, j.Attempts, j.MaxRetries, j.CreatedAt, j.UpdatedAt, j.AvailableAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const jobColumns = `id, command, state, attempts, max_retries, created_at, updated_at, available_at, processing_started_at, completed_at, last_error`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries,
		&j.CreatedAt, &j.UpdatedAt, &j.AvailableAt, &j.ProcessingStartedAt, &j.CompletedAt, &j.LastError); err != nil {
		return Job{}, err
	}
	return j, nil
}

// GetJob returns the job with the given id, or found=false if absent.
func (s *Store) GetJob(ctx context.Context, id string) (job Job, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("get job: %w", err)
	}
	return j, true, nil
}

// ListJobs returns jobs ordered by created_at, id ascending, optionally
// filtered to a single state. state == "" returns every job.
func (s *Store) ListJobs(ctx context.Context, state string) ([]Job, error) {
	var rows *sql.Rows
	var err error
	if state == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC, id ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE state = ? ORDER BY created_at ASC, id ASC`, state)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountByState returns the number of jobs in each state present in the
// table; states with zero jobs are omitted.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("count by state: scan: %w", err)
		}
		out[state] = count
	}
	return out, rows.Err()
}

// ClaimNext selects the oldest eligible pending/failed job and atomically
// transitions it to processing, returning found=false if none is eligible.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (job Job, found bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		nowStr := clock.Format(now)
		row := tx.QueryRowContext(ctx, `
			SELECT `+jobColumns+` FROM jobs
			WHERE state IN ('pending', 'failed') AND available_at <= ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1`, nowStr)

		j, scanErr := scanJob(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		if scanErr != nil {
			return fmt.Errorf("claim next: select: %w", scanErr)
		}

		_, execErr := tx.ExecContext(ctx, `
			UPDATE jobs SET state = ?, processing_started_at = ?, updated_at = ? WHERE id = ?`,
			StateProcessing, nowStr, nowStr, j.ID)
		if execErr != nil {
			return fmt.Errorf("claim next: update: %w", execErr)
		}

		j.State = StateProcessing
		j.ProcessingStartedAt = &nowStr
		j.UpdatedAt = nowStr
		job = j
		found = true
		return nil
	})
	if err != nil {
		return Job{}, false, err
	}
	return job, found, nil
}

// MarkCompleted transitions id from processing to completed.
func (s *Store) MarkCompleted(ctx context.Context, id string, attempts int, now time.Time) error {
	nowStr := clock.Format(now)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET state = ?, attempts = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			StateCompleted, attempts, nowStr, nowStr, id)
		if err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		return nil
	})
}

// MarkFailed transitions id to failed (retryable) or dead (exhausted):
// state becomes dead when attempts > maxRetries, else failed with
// available_at pushed out by backoffSeconds.
func (s *Store) MarkFailed(ctx context.Context, id string, attempts, maxRetries int, errMsg string, now time.Time, backoffSeconds float64) error {
	nowStr := clock.Format(now)
	newState := StateFailed
	availableAt := nowStr
	if attempts > maxRetries {
		newState = StateDead
	} else if backoffSeconds > 0 {
		availableAt = clock.Format(now.Add(time.Duration(backoffSeconds * float64(time.Second))))
	}
	truncated := truncateLastError(errMsg)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET state = ?, attempts = ?, available_at = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			newState, attempts, availableAt, truncated, nowStr, id)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	})
}

func truncateLastError(msg string) string {
	r := []rune(msg)
	if len(r) <= lastErrorMaxLen {
		return msg
	}
	const marker = "...[truncated]"
	keep := lastErrorMaxLen - len(marker)
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + marker
}

// ResetJob requeues id: state=pending, attempts=0, available_at=now.
// last_error is left untouched for diagnostic retention.
func (s *Store) ResetJob(ctx context.Context, id string, now time.Time) error {
	nowStr := clock.Format(now)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET state = ?, attempts = 0, available_at = ?, updated_at = ? WHERE id = ?`,
			StatePending, nowStr, nowStr, id)
		if err != nil {
			return fmt.Errorf("reset job: %w", err)
		}
		return nil
	})
}

// DeleteJob removes id. Deleting an absent id is not an error.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		return nil
	})
}

// GetConfig returns key's value, or found=false if unset.
func (s *Store) GetConfig(ctx context.Context, key string) (value string, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config: %w", err)
	}
	return value, true, nil
}

// SetConfig upserts key=value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	now := clock.Format(clock.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		return nil
	})
}

// EnsureConfigDefault inserts key=value only if key is not already set.
func (s *Store) EnsureConfigDefault(ctx context.Context, key, value string) error {
	now := clock.Format(clock.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO NOTHING`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("ensure config default: %w", err)
		}
		return nil
	})
}

// ListConfig returns every config row ordered by key.
func (s *Store) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM config ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	var out []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list config: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
