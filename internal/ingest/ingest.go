// Package ingest turns the raw crime table into CrimeIncident records. The
// header is matched against the declared schema mapping once, up front; a
// missing mandatory column aborts the run before any row is processed.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/model"
	"github.com/harbour-analytics/transit-crime-cli/internal/schema"
)

// Options configures one ingest pass.
type Options struct {
	Mapping   schema.Mapping
	Districts []string
	// KeyWidth is the finest tier's key width; every record's area key is
	// normalized to it at ingest so the resolver and the reference tables
	// compare identically padded values.
	KeyWidth int
}

// Result is the ingested record set plus value-level diagnostics.
type Result struct {
	Records          []*model.CrimeIncident
	TotalRows        int
	MalformedRows    int
	DistrictFiltered int
	InvalidMonths    int
	MissingOffence   int
}

// Ingest consumes table rows (header first) and builds the filtered record
// set. Rows outside the metro district set are dropped and counted; rows
// with unparseable months or missing offence categories are kept and
// counted, since only the derived views exclude them.
func Ingest(ctx context.Context, rowCh <-chan []string, errCh <-chan error, opts Options) (Result, error) {
	var res Result

	header, ok := <-rowCh
	if !ok {
		if err := <-errCh; err != nil {
			return res, eris.Wrap(err, "ingest: read header")
		}
		return res, eris.New("ingest: empty crime table")
	}

	cols, err := opts.Mapping.Resolve(header)
	if err != nil {
		return res, err
	}

	districts := DistrictSet(opts.Districts)
	monthIdx := cols[schema.FieldMonth]
	keyIdx := cols[schema.FieldAreaKey]
	districtIdx := cols[schema.FieldDistrict]
	offenceIdx, hasOffence := cols[schema.FieldOffence]

	nextID := 0
	for row := range rowCh {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "ingest: context cancelled")
		}
		res.TotalRows++

		if !indexable(row, monthIdx, keyIdx, districtIdx) {
			res.MalformedRows++
			continue
		}

		district := CleanDistrict(row[districtIdx])
		if !districts[district] {
			res.DistrictFiltered++
			continue
		}

		rec := &model.CrimeIncident{
			ID:       nextID,
			District: district,
			Month:    model.ParseMonth(row[monthIdx]),
			AreaKey:  model.NewAreaKey(row[keyIdx], opts.KeyWidth),
		}
		if hasOffence && offenceIdx < len(row) {
			rec.Offence = row[offenceIdx]
		}

		if !rec.Month.Valid {
			res.InvalidMonths++
		}
		if rec.Offence == "" {
			res.MissingOffence++
		}

		res.Records = append(res.Records, rec)
		nextID++
	}

	if err := <-errCh; err != nil {
		return res, eris.Wrap(err, "ingest: read rows")
	}

	zap.L().Info("ingest: crime table processed",
		zap.Int("total_rows", res.TotalRows),
		zap.Int("kept", len(res.Records)),
		zap.Int("malformed_rows", res.MalformedRows),
		zap.Int("district_filtered", res.DistrictFiltered),
		zap.Int("invalid_months", res.InvalidMonths),
		zap.Int("missing_offence", res.MissingOffence),
	)
	return res, nil
}

// RowChannel adapts an in-memory table (e.g. an XLSX sheet) to the channel
// interface Ingest consumes.
func RowChannel(rows [][]string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(rowCh)
		defer close(errCh)
		for _, row := range rows {
			rowCh <- row
		}
	}()
	return rowCh, errCh
}

func indexable(row []string, idxs ...int) bool {
	for _, i := range idxs {
		if i >= len(row) {
			return false
		}
	}
	return true
}
