// Package store persists run records and their diagnostics so operators can
// inspect what recent pipeline executions dropped or failed on. Output
// artifacts never pass through here; they go straight to disk.
package store

import (
	"context"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// Store defines the persistence interface for pipeline runs.
type Store interface {
	CreateRun(ctx context.Context) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, diag *model.Diagnostics) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
