package arcgis

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// property reads a feature attribute as trimmed text. Numeric attributes are
// rendered without an exponent so codes like 4701234 survive intact.
func property(f *geojson.Feature, name string) string {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t))
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// AreaTable converts features into reference geometry rows for one
// resolution tier, normalizing each key to the tier's width. Boundary layers
// yield polygon rows, centroid layers yield point rows; anything else is
// skipped and counted.
func AreaTable(features []*geojson.Feature, keyField string, keyWidth, tierRank int) []model.AreaGeometry {
	rows := make([]model.AreaGeometry, 0, len(features))
	skipped := 0
	for _, f := range features {
		raw := property(f, keyField)
		if raw == "" || f.Geometry == nil {
			skipped++
			continue
		}
		var kind model.GeometryKind
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
			kind = model.KindPolygon
		case *geom.Point, *geom.MultiPoint:
			kind = model.KindPoint
		default:
			skipped++
			continue
		}
		rows = append(rows, model.AreaGeometry{
			Key:      model.NewAreaKey(raw, keyWidth),
			Geom:     f.Geometry,
			Kind:     kind,
			TierRank: tierRank,
		})
	}
	if skipped > 0 {
		zap.L().Debug("arcgis: skipped unusable area features",
			zap.String("key_field", keyField),
			zap.Int("skipped", skipped),
		)
	}
	return rows
}

// Routes converts features into route geometries, keeping only the given
// transport mode when modeField/mode are set. Duplicate route identifiers
// are kept; the caller decides how to treat them.
func Routes(features []*geojson.Feature, idField, modeField, mode string) []model.Route {
	routes := make([]model.Route, 0, len(features))
	skipped := 0
	for _, f := range features {
		if mode != "" && property(f, modeField) != mode {
			continue
		}
		id := property(f, idField)
		if id == "" || f.Geometry == nil {
			skipped++
			continue
		}
		switch f.Geometry.(type) {
		case *geom.LineString, *geom.MultiLineString:
		default:
			skipped++
			continue
		}
		routes = append(routes, model.Route{ID: id, Geom: f.Geometry})
	}
	if skipped > 0 {
		zap.L().Debug("arcgis: skipped unusable route features", zap.Int("skipped", skipped))
	}
	return routes
}

// Stops converts features into stop points. routesField holds the
// comma-separated route identifiers serving the stop.
func Stops(features []*geojson.Feature, idField, routesField string) []model.Stop {
	stops := make([]model.Stop, 0, len(features))
	skipped := 0
	for _, f := range features {
		id := property(f, idField)
		pt, ok := f.Geometry.(*geom.Point)
		if id == "" || !ok {
			skipped++
			continue
		}

		var served []string
		for _, r := range strings.Split(property(f, routesField), ",") {
			if r = strings.TrimSpace(r); r != "" {
				served = append(served, r)
			}
		}

		stops = append(stops, model.Stop{ID: id, Geom: pt, Routes: served})
	}
	if skipped > 0 {
		zap.L().Debug("arcgis: skipped unusable stop features", zap.Int("skipped", skipped))
	}
	return stops
}
