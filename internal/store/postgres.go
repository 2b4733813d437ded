package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harbour-analytics/transit-crime-cli/internal/db"
	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'fetching',
	diagnostics JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(model.RunStatusFetching), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{ID: id, Status: model.RunStatusFetching, StartedAt: now}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1 WHERE id = $2`, string(status), runID)
	return eris.Wrap(err, "postgres: update run status")
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, diag *model.Diagnostics) error {
	data, err := json.Marshal(diag)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostics")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, diagnostics = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), data, time.Now().UTC(), runID)
	return eris.Wrap(err, "postgres: complete run")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID)
	return eris.Wrap(err, "postgres: fail run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs WHERE id = $1`, runID)
	run, err := scanPostgresRun(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		run      model.Run
		status   string
		diagJSON []byte
		errMsg   *string
		finished *time.Time
	)
	if err := row.Scan(&run.ID, &status, &diagJSON, &errMsg, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if errMsg != nil {
		run.Error = *errMsg
	}
	run.FinishedAt = finished
	if len(diagJSON) > 0 {
		var d model.Diagnostics
		if err := json.Unmarshal(diagJSON, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal diagnostics")
		}
		run.Diagnostics = &d
	}
	return &run, nil
}
