package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'fetching',
	diagnostics TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStatusFetching), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{ID: id, Status: model.RunStatusFetching, StartedAt: now}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE id = ?`, string(status), runID)
	return eris.Wrap(err, "sqlite: update run status")
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, diag *model.Diagnostics) error {
	data, err := json.Marshal(diag)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostics")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, diagnostics = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(data), time.Now().UTC(), runID)
	return eris.Wrap(err, "sqlite: complete run")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID)
	return eris.Wrap(err, "sqlite: fail run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs WHERE id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*model.Run, error) {
	var (
		run      model.Run
		status   string
		diagJSON sql.NullString
		errMsg   sql.NullString
		finished sql.NullTime
	)
	if err := row.Scan(&run.ID, &status, &diagJSON, &errMsg, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.Error = errMsg.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if diagJSON.Valid && diagJSON.String != "" {
		var d model.Diagnostics
		if err := json.Unmarshal([]byte(diagJSON.String), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal diagnostics")
		}
		run.Diagnostics = &d
	}
	return &run, nil
}
