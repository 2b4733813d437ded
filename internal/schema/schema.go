// Package schema maps canonical crime-table fields onto the source dataset's
// actual column headers through a declared alias list, resolved once at load
// time. A mandatory field with no matching column is a hard failure; the
// pipeline never guesses columns at runtime.
package schema

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Canonical field names.
const (
	FieldMonth    = "month"
	FieldAreaKey  = "area_key"
	FieldDistrict = "district"
	FieldOffence  = "offence"
)

// Mapping declares, per canonical field, the accepted source column names.
// Matching is case-insensitive after trimming.
type Mapping struct {
	Fields map[string]FieldSpec `yaml:"fields"`
}

// FieldSpec is one canonical field's alias list.
type FieldSpec struct {
	Aliases  []string `yaml:"aliases"`
	Optional bool     `yaml:"optional"`
}

// Columns is the result of resolving a Mapping against a header row:
// canonical field name to column index. Optional fields that matched nothing
// are absent.
type Columns map[string]int

// Default returns the built-in mapping for the NZ Police victimisation
// extract.
func Default() Mapping {
	return Mapping{Fields: map[string]FieldSpec{
		FieldMonth:    {Aliases: []string{"Year Month", "YearMonth", "Month Year"}},
		FieldAreaKey:  {Aliases: []string{"Meshblock", "Meshblock Code", "MB Code"}},
		FieldDistrict: {Aliases: []string{"Territorial Authority", "TA", "District"}},
		FieldOffence:  {Aliases: []string{"ANZSOC Division", "Offence Division", "Offence Type"}, Optional: true},
	}}
}

// LoadFile reads a mapping from a YAML file.
func LoadFile(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, eris.Wrapf(err, "schema: read mapping %s", path)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mapping{}, eris.Wrap(err, "schema: parse mapping")
	}
	if len(m.Fields) == 0 {
		return Mapping{}, eris.Errorf("schema: mapping %s declares no fields", path)
	}
	return m, nil
}

// Resolve matches the mapping against a header row. Every mandatory field
// must match exactly one alias or the resolution fails with an error naming
// the missing field and the observed headers.
func (m Mapping) Resolve(header []string) (Columns, error) {
	norm := make(map[string]int, len(header))
	for i, h := range header {
		norm[normalizeHeader(h)] = i
	}

	cols := make(Columns, len(m.Fields))
	for field, spec := range m.Fields {
		idx, found := -1, false
		for _, alias := range spec.Aliases {
			if i, ok := norm[normalizeHeader(alias)]; ok {
				idx, found = i, true
				break
			}
		}
		if !found {
			if spec.Optional {
				continue
			}
			return nil, eris.Errorf("schema: no column for mandatory field %q (aliases %v) in header %v",
				field, spec.Aliases, header)
		}
		cols[field] = idx
	}
	return cols, nil
}

// normalizeHeader trims whitespace and a UTF-8 BOM that survives latin1
// decoding as the literal bytes "ï»¿", then case-folds.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.TrimPrefix(h, "ï»¿")
	return strings.ToLower(strings.TrimSpace(h))
}
