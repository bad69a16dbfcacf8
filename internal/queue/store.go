package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"demostudio/internal/config"
)

// timeFormat pads nanoseconds to a fixed width so the lexicographic ORDER BY
// and next_run_at comparisons in SQL match chronological order. RFC3339Nano
// trims trailing fractional zeros and breaks that property within a second.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages job persistence backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	policies map[Lane]Policy
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    lane TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'waiting',
    attempts INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL,
    progress REAL NOT NULL DEFAULT 0,
    result TEXT,
    error TEXT,
    created_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT,
    next_run_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_lane_state ON jobs (lane, state, next_run_at);
`

// Open initializes or connects to the job database and applies lane policies
// derived from configuration.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs schema: %w", err)
	}

	return &Store{
		db:       db,
		path:     dbPath,
		policies: policiesFromConfig(cfg),
	}, nil
}

func policiesFromConfig(cfg *config.Config) map[Lane]Policy {
	return map[Lane]Policy{
		LaneTransform: policyFromLane(cfg.Queue.Transform),
		LaneVoice:     policyFromLane(cfg.Queue.Voice),
		LaneExport:    policyFromLane(cfg.Queue.Export),
	}
}

func policyFromLane(lane config.LanePolicy) Policy {
	return Policy{
		MaxAttempts:   lane.MaxAttempts,
		BackoffBase:   time.Duration(lane.BackoffSeconds) * time.Second,
		KeepCompleted: lane.KeepCompleted,
		KeepFailed:    lane.KeepFailed,
	}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Policy returns the retry policy fixed for a lane.
func (s *Store) Policy(lane Lane) Policy {
	return s.policies[lane]
}

// DBPath returns the SQLite file backing the store.
func (s *Store) DBPath() string {
	return s.path
}

// Enqueue persists a new waiting job and returns it. Payloads must be built
// with the New*Payload constructors so they are validated before acceptance.
func (s *Store) Enqueue(ctx context.Context, lane Lane, kind string, payload []byte) (*Job, error) {
	policy, ok := s.policies[lane]
	if !ok {
		return nil, fmt.Errorf("unknown lane %q", lane)
	}
	if len(payload) == 0 {
		return nil, errors.New("payload is required")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(timeFormat)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, lane, kind, payload, state, attempts, max_attempts, progress, created_at, next_run_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, 0, ?, ?)`,
		id,
		string(lane),
		kind,
		string(payload),
		string(StateWaiting),
		policy.MaxAttempts,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ClaimNext atomically claims the oldest runnable waiting job in a lane,
// moving it to active and counting the attempt. Returns nil when no job is
// due.
func (s *Store) ClaimNext(ctx context.Context, lane Lane) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(timeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT id FROM jobs
         WHERE lane = ? AND state = ? AND next_run_at <= ?
         ORDER BY created_at LIMIT 1`,
		string(lane),
		string(StateWaiting),
		timestamp,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, attempts = attempts + 1, started_at = ?, progress = 0, error = NULL
         WHERE id = ? AND state = ?`,
		string(StateActive),
		timestamp,
		id,
		string(StateWaiting),
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Complete marks an active job completed with its result.
func (s *Store) Complete(ctx context.Context, id, result string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, result = ?, progress = 100, finished_at = ?
         WHERE id = ?`,
		string(StateCompleted),
		nullableString(result),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. When attempts remain the job is rescheduled
// with the lane's exponential backoff; otherwise it transitions to failed
// with the message preserved verbatim. The returned state tells the caller
// which outcome applied.
func (s *Store) Fail(ctx context.Context, job *Job, message string) (State, error) {
	if job == nil {
		return "", errors.New("job is nil")
	}
	policy := s.policies[job.Lane]
	now := time.Now().UTC()

	if job.Attempts >= policy.MaxAttempts {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET state = ?, error = ?, finished_at = ? WHERE id = ?`,
			string(StateFailed),
			message,
			now.Format(timeFormat),
			job.ID,
		)
		if err != nil {
			return "", fmt.Errorf("mark job failed: %w", err)
		}
		return StateFailed, nil
	}

	// Delay before the next attempt k is base * 2^(k-1).
	delay := policy.BackoffDelay(job.Attempts)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET state = ?, next_run_at = ?, progress = 0 WHERE id = ?`,
		string(StateWaiting),
		now.Add(delay).Format(timeFormat),
		job.ID,
	)
	if err != nil {
		return "", fmt.Errorf("reschedule job: %w", err)
	}
	return StateWaiting, nil
}

// UpdateProgress persists advisory progress for an active job. Progress never
// decreases; stale updates are ignored.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress = MAX(progress, ?) WHERE id = ? AND state = ?`,
		percent,
		id,
		string(StateActive),
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by lane (empty lane means all), newest first.
func (s *Store) List(ctx context.Context, lane Lane) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if lane == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE lane = ? ORDER BY created_at DESC`, string(lane))
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LaneStats returns a point-in-time snapshot of state counts for one lane.
func (s *Store) LaneStats(ctx context.Context, lane Lane) (Stats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT state, COUNT(1) FROM jobs WHERE lane = ? GROUP BY state`,
		string(lane),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("lane stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, err
		}
		switch state {
		case StateWaiting:
			stats.Waiting = count
		case StateActive:
			stats.Active = count
		case StateCompleted:
			stats.Completed = count
		case StateFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// RetryFailed moves failed jobs back to waiting with a fresh attempt budget.
// Without ids it retries every failed job.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET state = ?, attempts = 0, error = NULL, progress = 0, next_run_at = ? WHERE state = ?`,
			string(StateWaiting),
			now,
			string(StateFailed),
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, string(StateWaiting), now)
	placeholders := make([]byte, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	query := `UPDATE jobs SET state = ?, attempts = 0, error = NULL, progress = 0, next_run_at = ?
        WHERE id IN (` + string(placeholders) + `) AND state = '` + string(StateFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckActive returns active jobs to waiting. Used at daemon startup to
// recover jobs orphaned by an unclean shutdown.
func (s *Store) ResetStuckActive(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET state = ?, progress = 0, next_run_at = ? WHERE state = ?`,
		string(StateWaiting),
		now,
		string(StateActive),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, lane, kind, payload, state, attempts, max_attempts, progress, result, error, created_at, started_at, finished_at, next_run_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          string
		lane        string
		kind        string
		payload     string
		state       string
		attempts    int
		maxAttempts int
		progress    float64
		result      sql.NullString
		errMsg      sql.NullString
		createdRaw  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		nextRunRaw  string
	)
	if err := scanner.Scan(
		&id,
		&lane,
		&kind,
		&payload,
		&state,
		&attempts,
		&maxAttempts,
		&progress,
		&result,
		&errMsg,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&nextRunRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Lane:        Lane(lane),
		Kind:        kind,
		Payload:     []byte(payload),
		State:       State(state),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Progress:    progress,
		Result:      result.String,
		Error:       errMsg.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := time.Parse(time.RFC3339Nano, startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	if nextRun, err := time.Parse(time.RFC3339Nano, nextRunRaw); err == nil {
		job.NextRunAt = nextRun
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
