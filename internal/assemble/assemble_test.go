package assemble

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/harbour-analytics/transit-crime-cli/internal/aggregate"
	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

func testAssembler(t *testing.T) (*Assembler, string, string) {
	t.Helper()
	dir := t.TempDir()
	geojsonPath := filepath.Join(dir, "routes.geojson")
	statsPath := filepath.Join(dir, "stats.json")
	a := New(Options{
		BufferMeters: 50,
		MethodTag:    "line_intersect + stop_contains",
		DataSource:   "test source",
		GeoJSONPath:  geojsonPath,
		StatsPath:    statsPath,
	})
	return a, geojsonPath, statsPath
}

func testRoute(id string) model.Route {
	return model.Route{ID: id, Geom: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})}
}

func TestWrite_MergesTotals(t *testing.T) {
	a, geojsonPath, _ := testAssembler(t)

	agg := aggregate.Result{
		Totals: map[string]int{"RT1": 3},
		Details: map[string]aggregate.RouteDetail{
			"RT1": {MonthlyTrend: map[string]int{"2023-01": 3}, TypeBreakdown: map[string]int{"Theft": 3}},
		},
		DateRange: aggregate.DateRange{
			Start: model.NewMonth(2023, time.January),
			End:   model.NewMonth(2023, time.January),
			Valid: true,
		},
	}

	require.NoError(t, a.Write([]model.Route{testRoute("RT1"), testRoute("RT2")}, agg))

	data, err := os.ReadFile(geojsonPath)
	require.NoError(t, err)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)

	byID := map[string]*geojson.Feature{}
	for _, f := range fc.Features {
		byID[f.Properties["route_id"].(string)] = f
	}
	assert.Equal(t, float64(3), byID["RT1"].Properties["total_crime_count"])
	// Routes without associations still appear, with a zero count.
	assert.Equal(t, float64(0), byID["RT2"].Properties["total_crime_count"])
}

func TestWrite_EmptyResultStillWritesBoth(t *testing.T) {
	a, geojsonPath, statsPath := testAssembler(t)

	require.NoError(t, a.Write(nil, aggregate.Result{}))

	_, err := os.Stat(geojsonPath)
	require.NoError(t, err)
	data, err := os.ReadFile(statsPath)
	require.NoError(t, err)

	var doc StatsDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "N/A", doc.Metadata.CrimePeriodStart)
	assert.Equal(t, "N/A", doc.Metadata.CrimePeriodEnd)
	assert.NotNil(t, doc.Routes)
	assert.Empty(t, doc.Routes)
}

func TestBuildStats_Metadata(t *testing.T) {
	a, _, _ := testAssembler(t)

	doc := a.BuildStats(aggregate.Result{
		DateRange: aggregate.DateRange{
			Start: model.NewMonth(2022, time.November),
			End:   model.NewMonth(2023, time.June),
			Valid: true,
		},
	})

	assert.Equal(t, "2022-11-01", doc.Metadata.CrimePeriodStart)
	assert.Equal(t, "2023-06-01", doc.Metadata.CrimePeriodEnd)
	assert.Equal(t, 50.0, doc.Metadata.BufferDistanceM)
	assert.Equal(t, "line_intersect + stop_contains", doc.Metadata.AssociationMethod)
	assert.Equal(t, "test source", doc.Metadata.DataSource)
}

func TestWrite_CreatesOutputDir(t *testing.T) {
	dir := t.TempDir()
	a := New(Options{
		GeoJSONPath: filepath.Join(dir, "nested", "routes.geojson"),
		StatsPath:   filepath.Join(dir, "nested", "stats.json"),
	})
	require.NoError(t, a.Write(nil, aggregate.Result{}))
	_, err := os.Stat(filepath.Join(dir, "nested", "routes.geojson"))
	assert.NoError(t, err)
}
