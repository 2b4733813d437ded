package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
)

// writeDebugCSV dumps the resolved record set with its association fan-out,
// one row per (record, route) pair and one bare row for records with no
// association. Inspection aid only; the artifacts never include it.
func writeDebugCSV(path string, records []*model.CrimeIncident, associations []model.Association) error {
	byID := make(map[int][]model.Association, len(records))
	for _, a := range associations {
		byID[a.CrimeID] = append(byID[a.CrimeID], a)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create debug dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "pipeline: create debug csv")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "area_key", "district", "month", "offence", "tier_rank", "route_id", "method"}); err != nil {
		return eris.Wrap(err, "pipeline: write debug header")
	}

	rows := 0
	for _, rec := range records {
		base := []string{
			strconv.Itoa(rec.ID),
			rec.AreaKey.String(),
			rec.District,
			rec.Month.Label(),
			rec.Offence,
			strconv.Itoa(rec.TierRank),
		}
		assocs := byID[rec.ID]
		if len(assocs) == 0 {
			if err := w.Write(append(base, "", "")); err != nil {
				return eris.Wrap(err, "pipeline: write debug row")
			}
			rows++
			continue
		}
		for _, a := range assocs {
			if err := w.Write(append(base[:6:6], a.RouteID, string(a.Method))); err != nil {
				return eris.Wrap(err, "pipeline: write debug row")
			}
			rows++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "pipeline: flush debug csv")
	}

	zap.L().Info("pipeline: debug csv written",
		zap.String("path", path),
		zap.Int("rows", rows),
	)
	return nil
}
