package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Month is a calendar month parsed from a crime record's date column.
// The zero value is the explicit "invalid or missing" marker: such records
// stay in route totals but are excluded from the monthly trend.
type Month struct {
	Year  int
	Mon   time.Month
	Valid bool
}

// NewMonth builds a valid month.
func NewMonth(year int, mon time.Month) Month {
	return Month{Year: year, Mon: mon, Valid: true}
}

// monthLayouts are the date formats seen across published crime extracts.
var monthLayouts = []string{"2006-01-02", "02/01/2006", "2006-01"}

// ParseMonth parses a date string into a Month. Unparseable or impossible
// calendar dates (e.g. 2023-02-31, 31/02/2023) yield the invalid marker,
// not an error.
func ParseMonth(s string) Month {
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Month{Year: t.Year(), Mon: t.Month(), Valid: true}
		}
	}
	return Month{}
}

// Label returns the year-month label used as a trend histogram key.
func (m Month) Label() string {
	if !m.Valid {
		return ""
	}
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Before reports whether m is an earlier month than other. Invalid months
// compare before nothing.
func (m Month) Before(other Month) bool {
	if !m.Valid || !other.Valid {
		return false
	}
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Mon < other.Mon
}

// Time returns the first day of the month in UTC. Only meaningful when Valid.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// CrimeIncident is one police record after ingest. ID is assigned by the
// ingest stage (row ordinal); it exists so associations can be deduplicated
// without assuming anything about the source data.
type CrimeIncident struct {
	ID       int
	Offence  string // ANZSOC-style offence division, may be empty
	District string // normalized territorial authority name
	Month    Month
	AreaKey  AreaKey

	// Set by the resolver. Nil means the record fell through every tier and
	// is excluded from the spatial stages.
	Geom     geom.T
	TierRank int
}

// Resolved reports whether a geometry was attached by the resolver.
func (c *CrimeIncident) Resolved() bool { return c.Geom != nil }
