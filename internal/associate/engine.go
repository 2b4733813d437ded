// Package associate computes which crime areas relate to which bus routes.
// Two independent predicates feed one deduplicated association set: the
// crime area intersecting (or lying within a configured buffer of) the
// route's line, and the crime area containing a stop served by the route.
package associate

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/crs"
	"github.com/harbour-analytics/transit-crime-cli/internal/model"
	"github.com/harbour-analytics/transit-crime-cli/internal/spatial"
)

// Options tunes the engine for one run.
type Options struct {
	// BufferMeters widens the line predicate: 0 keeps exact intersection.
	BufferMeters float64
	// UseStopMethod enables the stop-containment predicate.
	UseStopMethod bool
}

// Engine associates resolved crime records with routes. All geometries are
// reprojected once up front; the predicates never see geographic
// coordinates.
type Engine struct {
	proj crs.Projection
	opts Options
}

// New creates an Engine that projects into the given reference.
func New(proj crs.Projection, opts Options) *Engine {
	return &Engine{proj: proj, opts: opts}
}

// pairKey identifies one (crime, route) pair for deduplication.
type pairKey struct {
	crimeID int
	routeID string
}

// Associate returns the deduplicated association set for the given inputs.
// Empty inputs yield an empty set; records without resolved geometry must
// not be passed in (the resolver already excludes them).
func (e *Engine) Associate(crimes []*model.CrimeIncident, routes []model.Route, stops []model.Stop) ([]model.Association, error) {
	if len(crimes) == 0 || len(routes) == 0 {
		return nil, nil
	}

	projCrimes := make([]geomRecord, 0, len(crimes))
	for _, c := range crimes {
		g, err := e.proj.ProjectGeom(c.Geom)
		if err != nil {
			return nil, err
		}
		projCrimes = append(projCrimes, geomRecord{id: c.ID, area: g})
	}

	seen := make(map[pairKey]bool)
	var out []model.Association
	emit := func(crimeID int, routeID string, method model.AssociationMethod) {
		k := pairKey{crimeID: crimeID, routeID: routeID}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, model.Association{CrimeID: crimeID, RouteID: routeID, Method: method})
	}

	lineCount, err := e.lineMethod(projCrimes, routes, emit)
	if err != nil {
		return nil, err
	}

	stopCount := 0
	if e.opts.UseStopMethod {
		stopCount, err = e.stopMethod(projCrimes, stops, emit)
		if err != nil {
			return nil, err
		}
	}

	zap.L().Info("associate: association set built",
		zap.Int("pairs", len(out)),
		zap.Int("line_method", lineCount),
		zap.Int("stop_method", stopCount),
		zap.Float64("buffer_meters", e.opts.BufferMeters),
	)
	return out, nil
}

type geomRecord struct {
	id   int
	area geom.T
}

// lineMethod emits pairs where the crime area is within the buffer distance
// of the route line (exact intersection when the buffer is zero).
func (e *Engine) lineMethod(crimes []geomRecord, routes []model.Route, emit func(int, string, model.AssociationMethod)) (int, error) {
	count := 0
	for _, r := range routes {
		line, err := e.proj.ProjectGeom(r.Geom)
		if err != nil {
			return count, err
		}
		for _, c := range crimes {
			hit, err := spatial.WithinDistanceOfLine(c.area, line, e.opts.BufferMeters)
			if err != nil {
				return count, err
			}
			if hit {
				emit(c.id, r.ID, model.MethodLineIntersect)
				count++
			}
		}
	}
	return count, nil
}

// stopMethod emits pairs where the crime area contains a stop, once per
// route that the stop serves.
func (e *Engine) stopMethod(crimes []geomRecord, stops []model.Stop, emit func(int, string, model.AssociationMethod)) (int, error) {
	count := 0
	for _, s := range stops {
		if s.Geom == nil || len(s.Routes) == 0 {
			continue
		}
		pt, err := e.proj.ProjectGeom(s.Geom)
		if err != nil {
			return count, err
		}
		coords := pt.FlatCoords()
		for _, c := range crimes {
			contains, err := spatial.ContainsPoint(c.area, coords[:2])
			if err != nil {
				return count, err
			}
			if !contains {
				continue
			}
			for _, routeID := range s.Routes {
				emit(c.id, routeID, model.MethodStopContains)
				count++
			}
		}
	}
	return count, nil
}
