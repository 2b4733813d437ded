// Package assemble merges aggregate totals back onto route geometry and
// serializes the two output artifacts. It is the only stage that touches the
// filesystem; everything upstream works on in-memory entities.
package assemble

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/aggregate"
	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// notAvailable is the sentinel for a date range with no valid months.
const notAvailable = "N/A"

// Metadata describes one run's statistics document.
type Metadata struct {
	CrimePeriodStart  string  `json:"crime_period_start"`
	CrimePeriodEnd    string  `json:"crime_period_end"`
	BufferDistanceM   float64 `json:"buffer_distance_m"`
	AssociationMethod string  `json:"association_method"`
	DataSource        string  `json:"data_source"`
}

// StatsDocument is the route-keyed detail artifact.
type StatsDocument struct {
	Metadata Metadata                         `json:"metadata"`
	Routes   map[string]aggregate.RouteDetail `json:"routes"`
}

// Options carries the run facts echoed into the metadata block.
type Options struct {
	BufferMeters float64
	MethodTag    string
	DataSource   string
	GeoJSONPath  string
	StatsPath    string
}

// Assembler writes the artifacts for one run.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Write produces both artifacts. Every route appears in the GeoJSON with its
// total (0 when absent from the aggregate); the stats document only carries
// routes with at least one association. An empty pipeline result still
// yields both files.
func (a *Assembler) Write(routes []model.Route, agg aggregate.Result) error {
	if err := a.writeGeoJSON(routes, agg.Totals); err != nil {
		return err
	}
	if err := a.writeStats(agg); err != nil {
		return err
	}
	zap.L().Info("assemble: artifacts written",
		zap.String("geojson", a.opts.GeoJSONPath),
		zap.String("stats", a.opts.StatsPath),
		zap.Int("routes", len(routes)),
		zap.Int("routes_with_detail", len(agg.Details)),
	)
	return nil
}

func (a *Assembler) writeGeoJSON(routes []model.Route, totals map[string]int) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(routes))}
	for _, r := range routes {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.ID,
			Geometry: r.Geom,
			Properties: map[string]interface{}{
				"route_id":          r.ID,
				"total_crime_count": totals[r.ID],
			},
		})
	}

	data, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "assemble: marshal geojson")
	}
	return writeFile(a.opts.GeoJSONPath, data)
}

func (a *Assembler) writeStats(agg aggregate.Result) error {
	doc := a.BuildStats(agg)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "assemble: marshal stats")
	}
	return writeFile(a.opts.StatsPath, data)
}

// BuildStats constructs the stats document without writing it.
func (a *Assembler) BuildStats(agg aggregate.Result) StatsDocument {
	start, end := notAvailable, notAvailable
	if agg.DateRange.Valid {
		start = agg.DateRange.Start.Time().Format("2006-01-02")
		end = agg.DateRange.End.Time().Format("2006-01-02")
	}

	routes := agg.Details
	if routes == nil {
		routes = map[string]aggregate.RouteDetail{}
	}
	return StatsDocument{
		Metadata: Metadata{
			CrimePeriodStart:  start,
			CrimePeriodEnd:    end,
			BufferDistanceM:   a.opts.BufferMeters,
			AssociationMethod: a.opts.MethodTag,
			DataSource:        a.opts.DataSource,
		},
		Routes: routes,
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "assemble: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "assemble: write %s", path)
	}
	return nil
}
