// Package shapefile loads a resolution tier's reference geometry table from
// a local shapefile, for runs where the area boundaries ship as a Stats
// download instead of a feature service.
package shapefile

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// LoadAreaTable reads the shapefile and returns one reference row per record
// with usable polygon geometry, keyed by the named attribute normalized to
// keyWidth.
func LoadAreaTable(path, keyField string, keyWidth, tierRank int) ([]model.AreaGeometry, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	keyIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(strings.TrimSpace(name), keyField) {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, eris.Errorf("shapefile: %s has no field %q", path, keyField)
	}

	var rows []model.AreaGeometry
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(keyIdx), "\x00"))
		poly, ok := shape.(*shp.Polygon)
		if raw == "" || !ok {
			skipped++
			continue
		}

		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		rows = append(rows, model.AreaGeometry{
			Key:      model.NewAreaKey(raw, keyWidth),
			Geom:     g,
			Kind:     model.KindPolygon,
			TierRank: tierRank,
		})
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	zap.L().Info("shapefile: area table loaded",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}
