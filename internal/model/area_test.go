package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAreaKey_Padding(t *testing.T) {
	k := NewAreaKey("123", 7)
	assert.Equal(t, "0000123", k.String())
	assert.Equal(t, 7, k.Width())
}

func TestNewAreaKey_Whitespace(t *testing.T) {
	k := NewAreaKey("  4701234 ", 7)
	assert.Equal(t, "4701234", k.String())
}

func TestNewAreaKey_LongerThanWidth(t *testing.T) {
	// Oversized values are kept as-is; they will simply never match.
	k := NewAreaKey("12345678", 7)
	assert.Equal(t, "12345678", k.String())
}

func TestAreaKey_Truncate(t *testing.T) {
	k := NewAreaKey("123", 7)
	coarse := k.Truncate(6)
	assert.Equal(t, "000012", coarse.String())
	assert.Equal(t, 6, coarse.Width())
}

func TestAreaKey_TruncateShorter(t *testing.T) {
	k := NewAreaKey("12", 2)
	assert.Equal(t, "12", k.Truncate(6).String())
	assert.Equal(t, 6, k.Truncate(6).Width())
}

func TestAreaKey_DistinctWidths(t *testing.T) {
	// The same digits at different widths must not compare equal.
	fine := NewAreaKey("123456", 7)
	coarse := NewAreaKey("123456", 6)
	assert.NotEqual(t, fine, coarse)
}

func TestAreaKey_IsZero(t *testing.T) {
	assert.True(t, NewAreaKey("", 7).IsZero())
	assert.True(t, NewAreaKey("0", 7).IsZero())
	assert.False(t, NewAreaKey("123", 7).IsZero())
}
