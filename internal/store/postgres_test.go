package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "fetching", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusFetching, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1 WHERE id = \$2`).
		WithArgs("resolving", "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunStatus(context.Background(), "run-1", model.RunStatusResolving)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, diagnostics = \$2, finished_at = \$3 WHERE id = \$4`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.Diagnostics{Associations: 7})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2, finished_at = \$3 WHERE id = \$4`).
		WithArgs("failed", "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", "boom")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	finished := started.Add(time.Minute)
	diagJSON := []byte(`{"crime_rows": 10, "associations": 4}`)

	mock.ExpectQuery(`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "diagnostics", "error", "started_at", "finished_at"}).
			AddRow("run-1", "complete", diagJSON, (*string)(nil), started, &finished))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Diagnostics)
	assert.Equal(t, 10, run.Diagnostics.CrimeRows)
	assert.Equal(t, 4, run.Diagnostics.Associations)
	require.NotNil(t, run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, status, diagnostics, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "diagnostics", "error", "started_at", "finished_at"}).
			AddRow("run-2", "complete", []byte(nil), (*string)(nil), started, (*time.Time)(nil)).
			AddRow("run-1", "failed", []byte(nil), ptr("boom"), started.Add(-time.Hour), (*time.Time)(nil)))

	runs, err := s.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, "boom", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
