package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusFetching    RunStatus = "fetching"
	RunStatusResolving   RunStatus = "resolving"
	RunStatusAssociating RunStatus = "associating"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Diagnostics counts records dropped or degraded along the pipeline. These
// are reported alongside the run, never embedded in the output artifacts.
type Diagnostics struct {
	CrimeRows          int            `json:"crime_rows"`
	MalformedRows      int            `json:"malformed_rows"`
	DistrictFiltered   int            `json:"district_filtered"`
	ResolvedByTier     map[string]int `json:"resolved_by_tier"`
	Unmatched          int            `json:"unmatched"`
	InvalidMonths      int            `json:"invalid_months"`
	MissingOffence     int            `json:"missing_offence"`
	DuplicateRouteIDs  int            `json:"duplicate_route_ids"`
	Associations       int            `json:"associations"`
	ByMethod           map[string]int `json:"associations_by_method"`
	RoutesWithActivity int            `json:"routes_with_activity"`

	// Wall-clock milliseconds spent per stage.
	StageMillis map[string]int64 `json:"stage_millis,omitempty"`
}

// Run is one end-to-end pipeline execution recorded in the store.
type Run struct {
	ID          string       `json:"id"`
	Status      RunStatus    `json:"status"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}
