package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMonth_Valid(t *testing.T) {
	m := ParseMonth("2023-05-01")
	assert.True(t, m.Valid)
	assert.Equal(t, 2023, m.Year)
	assert.Equal(t, time.May, m.Mon)
	assert.Equal(t, "2023-05", m.Label())
}

func TestParseMonth_DayMonthYear(t *testing.T) {
	m := ParseMonth("15/11/2022")
	assert.True(t, m.Valid)
	assert.Equal(t, "2022-11", m.Label())
}

func TestParseMonth_Garbage(t *testing.T) {
	for _, s := range []string{"", "N/A", "05/2023", "2023-13-01", "2023-02-31", "31/02/2023"} {
		m := ParseMonth(s)
		assert.False(t, m.Valid, "input %q", s)
		assert.Empty(t, m.Label())
	}
}

func TestMonth_Before(t *testing.T) {
	a := NewMonth(2022, time.December)
	b := NewMonth(2023, time.January)
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))

	// Invalid months never order.
	assert.False(t, Month{}.Before(b))
	assert.False(t, b.Before(Month{}))
}

func TestCrimeIncident_Resolved(t *testing.T) {
	c := &CrimeIncident{ID: 1}
	assert.False(t, c.Resolved())
}
