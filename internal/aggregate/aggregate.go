// Package aggregate folds the association set into the per-route statistics
// served to the visualization layer.
package aggregate

import (
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// RouteDetail holds the derived views for one route with at least one
// association. A crime missing a valid month or an offence category stays in
// the route total but drops out of the corresponding view only.
type RouteDetail struct {
	MonthlyTrend  map[string]int `json:"monthly_trend"`
	TypeBreakdown map[string]int `json:"type_breakdown"`
}

// DateRange is the span of valid incident months across all associated
// crimes. Valid is false when no associated crime carries a parseable month,
// including the zero-association case.
type DateRange struct {
	Start model.Month
	End   model.Month
	Valid bool
}

// Result is the full aggregation output.
type Result struct {
	Totals    map[string]int
	Details   map[string]RouteDetail
	DateRange DateRange
}

// Aggregate counts associations per route and builds the month and offence
// views. The association set is already deduplicated per (crime, route)
// pair, so the total is simply the number of set entries for the route.
func Aggregate(associations []model.Association, crimes []*model.CrimeIncident) Result {
	byID := make(map[int]*model.CrimeIncident, len(crimes))
	for _, c := range crimes {
		byID[c.ID] = c
	}

	res := Result{
		Totals:  make(map[string]int),
		Details: make(map[string]RouteDetail),
	}

	for _, a := range associations {
		crime, ok := byID[a.CrimeID]
		if !ok {
			zap.L().Warn("aggregate: association references unknown crime",
				zap.Int("crime_id", a.CrimeID),
				zap.String("route_id", a.RouteID),
			)
			continue
		}

		res.Totals[a.RouteID]++

		detail, ok := res.Details[a.RouteID]
		if !ok {
			detail = RouteDetail{
				MonthlyTrend:  make(map[string]int),
				TypeBreakdown: make(map[string]int),
			}
		}
		if crime.Month.Valid {
			detail.MonthlyTrend[crime.Month.Label()]++
			res.DateRange = extend(res.DateRange, crime.Month)
		}
		if crime.Offence != "" {
			detail.TypeBreakdown[crime.Offence]++
		}
		res.Details[a.RouteID] = detail
	}

	zap.L().Info("aggregate: statistics built",
		zap.Int("routes_with_activity", len(res.Details)),
		zap.Int("associations", len(associations)),
		zap.Bool("date_range_valid", res.DateRange.Valid),
	)
	return res
}

func extend(r DateRange, m model.Month) DateRange {
	if !r.Valid {
		return DateRange{Start: m, End: m, Valid: true}
	}
	if m.Before(r.Start) {
		r.Start = m
	}
	if r.End.Before(m) {
		r.End = m
	}
	return r
}
