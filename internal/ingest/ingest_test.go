package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-analytics/transit-crime-cli/internal/schema"
)

func defaultOpts() Options {
	return Options{
		Mapping:   schema.Default(),
		Districts: []string{"Auckland", "Counties Manukau"},
		KeyWidth:  7,
	}
}

func ingestRows(t *testing.T, rows [][]string, opts Options) (Result, error) {
	t.Helper()
	rowCh, errCh := RowChannel(rows)
	return Ingest(context.Background(), rowCh, errCh, opts)
}

func TestIngest_Basic(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Meshblock", "Territorial Authority", "ANZSOC Division"},
		{"2023-01-01", "4701234", "Auckland", "Theft"},
		{"2023-02-01", "123", "Counties Manukau", "Assault"},
	}

	res, err := ingestRows(t, rows, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalRows)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "4701234", res.Records[0].AreaKey.String())
	assert.Equal(t, "0000123", res.Records[1].AreaKey.String())
	assert.Equal(t, "AUCKLAND", res.Records[0].District)
	assert.Equal(t, "Theft", res.Records[0].Offence)
	assert.Equal(t, "2023-01", res.Records[0].Month.Label())

	// IDs are sequential over kept records.
	assert.Equal(t, 0, res.Records[0].ID)
	assert.Equal(t, 1, res.Records[1].ID)
}

func TestIngest_DistrictFilter(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Meshblock", "Territorial Authority"},
		{"2023-01-01", "4701234", "Auckland."},
		{"2023-01-01", "4701235", "Wellington"},
		{"2023-01-01", "4701236", "Christchurch"},
	}

	res, err := ingestRows(t, rows, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRows)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.DistrictFiltered)
}

func TestIngest_InvalidMonthKept(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Meshblock", "Territorial Authority"},
		{"not-a-date", "4701234", "Auckland"},
	}

	res, err := ingestRows(t, rows, defaultOpts())
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.False(t, res.Records[0].Month.Valid)
	assert.Equal(t, 1, res.InvalidMonths)
}

func TestIngest_MissingOffenceKept(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Meshblock", "Territorial Authority", "ANZSOC Division"},
		{"2023-01-01", "4701234", "Auckland", ""},
	}

	res, err := ingestRows(t, rows, defaultOpts())
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Records[0].Offence)
	assert.Equal(t, 1, res.MissingOffence)
}

func TestIngest_MissingMandatoryColumn(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Territorial Authority"},
		{"2023-01-01", "Auckland"},
	}

	_, err := ingestRows(t, rows, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "area_key")
}

func TestIngest_ShortRowCountedAsMalformed(t *testing.T) {
	rows := [][]string{
		{"Year Month", "Meshblock", "Territorial Authority"},
		{"2023-01-01"},
		{"2023-01-01", "4701234", "Wellington"},
	}

	res, err := ingestRows(t, rows, defaultOpts())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	// A row too short to index is a malformed row, not a district drop.
	assert.Equal(t, 1, res.MalformedRows)
	assert.Equal(t, 1, res.DistrictFiltered)
}

func TestIngest_EmptyTable(t *testing.T) {
	_, err := ingestRows(t, nil, defaultOpts())
	assert.Error(t, err)
}
