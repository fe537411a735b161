package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrRunNotFound is returned when no archived run has the requested id.
var ErrRunNotFound = errors.New("archived run not found")

const schema = `
CREATE TABLE IF NOT EXISTS task_runs (
	id                     UUID PRIMARY KEY,
	task_name              TEXT NOT NULL,
	correlation_id         TEXT NOT NULL,
	start_time             TIMESTAMPTZ NOT NULL,
	end_time               TIMESTAMPTZ NOT NULL,
	duration_ms            BIGINT NOT NULL,
	result_codes           TEXT[] NOT NULL DEFAULT '{}',
	hex_code               TEXT NOT NULL DEFAULT '',
	result_source          TEXT NOT NULL DEFAULT '',
	result_message         TEXT NOT NULL DEFAULT '',
	outcome                TEXT NOT NULL,
	launch_request_ignored BOOLEAN NOT NULL DEFAULT FALSE,
	event_count            INTEGER NOT NULL,
	events                 JSONB NOT NULL DEFAULT '[]',
	archived_at            TIMESTAMPTZ NOT NULL,
	UNIQUE (task_name, correlation_id)
);
CREATE INDEX IF NOT EXISTS task_runs_task_start_idx ON task_runs (task_name, start_time DESC);`

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB wraps a PostgreSQL connection pool for the run archive.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, dsn string, opts PoolOptions) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

// EnsureSchema creates the archive table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveRun upserts a run keyed by task and correlation id. Re-archiving a run
// keeps its id and refreshes the rest.
func (db *DB) SaveRun(ctx context.Context, run *ArchivedRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.ArchivedAt.IsZero() {
		run.ArchivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO task_runs (id, task_name, correlation_id, start_time, end_time,
			duration_ms, result_codes, hex_code, result_source, result_message,
			outcome, launch_request_ignored, event_count, events, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (task_name, correlation_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration_ms = EXCLUDED.duration_ms,
			result_codes = EXCLUDED.result_codes,
			hex_code = EXCLUDED.hex_code,
			result_source = EXCLUDED.result_source,
			result_message = EXCLUDED.result_message,
			outcome = EXCLUDED.outcome,
			launch_request_ignored = EXCLUDED.launch_request_ignored,
			event_count = EXCLUDED.event_count,
			events = EXCLUDED.events,
			archived_at = EXCLUDED.archived_at
		RETURNING id`

	err := db.pool.QueryRow(ctx, query,
		run.ID, run.TaskName, run.CorrelationID, run.StartTime, run.EndTime,
		run.DurationMS, run.ResultCodes, run.HexCode, run.ResultSource,
		truncateForDB(run.ResultMessage, 4096),
		run.Outcome, run.LaunchRequestIgnored, run.EventCount, run.Events,
		run.ArchivedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("saving run %s/%s: %w", run.TaskName, run.CorrelationID, err)
	}
	return nil
}

// GetRun retrieves a single archived run, events included.
func (db *DB) GetRun(ctx context.Context, id string) (*ArchivedRun, error) {
	query := `
		SELECT id, task_name, correlation_id, start_time, end_time, duration_ms,
			result_codes, hex_code, result_source, result_message, outcome,
			launch_request_ignored, event_count, events, archived_at
		FROM task_runs WHERE id = $1`

	var run ArchivedRun
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.TaskName, &run.CorrelationID, &run.StartTime, &run.EndTime,
		&run.DurationMS, &run.ResultCodes, &run.HexCode, &run.ResultSource,
		&run.ResultMessage, &run.Outcome, &run.LaunchRequestIgnored,
		&run.EventCount, &run.Events, &run.ArchivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns queries archived runs with optional filters, newest first.
// Events are not loaded.
func (db *DB) ListRuns(ctx context.Context, filter RunFilter) ([]ArchivedRun, error) {
	query := `
		SELECT id, task_name, correlation_id, start_time, end_time, duration_ms,
			result_codes, hex_code, result_source, result_message, outcome,
			launch_request_ignored, event_count, archived_at
		FROM task_runs
		WHERE ($1 = '' OR lower(task_name) = lower($1))
		  AND ($2 = '' OR outcome = $2)
		  AND ($3::timestamptz IS NULL OR start_time >= $3)
		  AND ($4::timestamptz IS NULL OR start_time < $4)
		ORDER BY start_time DESC
		LIMIT $5 OFFSET $6`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, query,
		filter.TaskName, filter.Outcome, filter.Since, filter.Until, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var results []ArchivedRun
	for rows.Next() {
		var run ArchivedRun
		if err := rows.Scan(
			&run.ID, &run.TaskName, &run.CorrelationID, &run.StartTime, &run.EndTime,
			&run.DurationMS, &run.ResultCodes, &run.HexCode, &run.ResultSource,
			&run.ResultMessage, &run.Outcome, &run.LaunchRequestIgnored,
			&run.EventCount, &run.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		results = append(results, run)
	}

	return results, rows.Err()
}

// truncateForDB cuts s to at most maxLen bytes on a rune boundary.
func truncateForDB(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
