package model

import (
	"strings"

	"github.com/twpayne/go-geom"
)

// AreaKey is a fixed-width administrative area code. The width travels with
// the value so that keys normalized for different tiers can never be compared
// by accident: a 7-digit meshblock key and the 6-digit area-unit key derived
// from it are distinct values even when their digits overlap.
type AreaKey struct {
	value string
	width int
}

// NewAreaKey normalizes raw into a key of the given width: surrounding
// whitespace is stripped and the result is left-padded with zeros. Raw values
// longer than width are kept as-is; they simply will not match anything.
func NewAreaKey(raw string, width int) AreaKey {
	v := strings.TrimSpace(raw)
	for len(v) < width {
		v = "0" + v
	}
	return AreaKey{value: v, width: width}
}

// Truncate derives a coarser key from the leading n characters.
func (k AreaKey) Truncate(n int) AreaKey {
	if n >= len(k.value) {
		return AreaKey{value: k.value, width: n}
	}
	return AreaKey{value: k.value[:n], width: n}
}

// String returns the normalized key text.
func (k AreaKey) String() string { return k.value }

// Width returns the declared key width.
func (k AreaKey) Width() int { return k.width }

// IsZero reports whether the key is empty.
func (k AreaKey) IsZero() bool { return strings.Trim(k.value, "0 ") == "" }

// GeometryKind distinguishes the shape a resolution tier yields.
type GeometryKind string

const (
	KindPolygon GeometryKind = "polygon"
	KindPoint   GeometryKind = "point"
)

// AreaGeometry is one reference geometry row: an area key plus its shape and
// the ordinal of the tier that supplied it.
type AreaGeometry struct {
	Key      AreaKey
	Geom     geom.T
	Kind     GeometryKind
	TierRank int
}
