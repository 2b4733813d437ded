package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DefaultMapping(t *testing.T) {
	header := []string{"ANZSOC Division", "Territorial Authority", "Year Month", "Meshblock"}
	cols, err := Default().Resolve(header)
	require.NoError(t, err)
	assert.Equal(t, 2, cols[FieldMonth])
	assert.Equal(t, 3, cols[FieldAreaKey])
	assert.Equal(t, 1, cols[FieldDistrict])
	assert.Equal(t, 0, cols[FieldOffence])
}

func TestResolve_AliasAndCase(t *testing.T) {
	header := []string{"yearmonth", "MB CODE", "district"}
	cols, err := Default().Resolve(header)
	require.NoError(t, err)
	assert.Equal(t, 0, cols[FieldMonth])
	assert.Equal(t, 1, cols[FieldAreaKey])
	assert.Equal(t, 2, cols[FieldDistrict])
}

func TestResolve_BOMHeader(t *testing.T) {
	// The police extract carries a BOM that survives latin1 decoding as
	// literal text on the first header cell.
	header := []string{"ï»¿Year Month", "Meshblock", "Territorial Authority"}
	cols, err := Default().Resolve(header)
	require.NoError(t, err)
	assert.Equal(t, 0, cols[FieldMonth])
}

func TestResolve_MissingMandatory(t *testing.T) {
	header := []string{"Year Month", "Territorial Authority"}
	_, err := Default().Resolve(header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "area_key")
}

func TestResolve_MissingOptional(t *testing.T) {
	header := []string{"Year Month", "Meshblock", "Territorial Authority"}
	cols, err := Default().Resolve(header)
	require.NoError(t, err)
	_, ok := cols[FieldOffence]
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	content := `fields:
  month:
    aliases: ["Date"]
  area_key:
    aliases: ["SA2 Code"]
  district:
    aliases: ["Region"]
  offence:
    aliases: ["Category"]
    optional: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)

	cols, err := m.Resolve([]string{"Region", "SA2 Code", "Date", "Category"})
	require.NoError(t, err)
	assert.Equal(t, 2, cols[FieldMonth])
	assert.Equal(t, 1, cols[FieldAreaKey])
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: {}\n"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
