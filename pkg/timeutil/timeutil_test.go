package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfWeek_MondayBoundary(t *testing.T) {
	// Wednesday 2026-08-26 15:30 UTC -> Monday 2026-08-24 00:00 UTC.
	wed := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), StartOfWeek(wed))

	// Sunday belongs to the week that started the previous Monday.
	sun := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), StartOfWeek(sun))

	// Monday itself is its own week start.
	mon := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, StartOfWeek(mon))
}

func TestWeekWindow_ContainsAndKey(t *testing.T) {
	wed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	w := CurrentWeek(wed)

	assert.True(t, w.Contains(wed))
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End)) // half-open interval
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
	assert.Equal(t, "2026-08-24", w.Key())
}

func TestLastWeek(t *testing.T) {
	wed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	w := LastWeek(wed)

	assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), w.End)
	assert.False(t, IsSameWeek(w.Start, wed))
}

func TestParseWeekKey(t *testing.T) {
	mon, err := ParseWeekKey("2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, mon.Weekday())

	_, err = ParseWeekKey("2026-08-26") // Wednesday
	assert.Error(t, err)

	_, err = ParseWeekKey("not-a-date")
	assert.Error(t, err)
}

func TestWeeksBetween(t *testing.T) {
	a := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)  // Monday week 1
	b := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) // Wednesday 3 weeks later

	assert.Equal(t, 3, WeeksBetween(a, b))
	assert.Equal(t, 3, WeeksBetween(b, a))
	assert.Equal(t, 0, WeeksBetween(b, b))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 8, 24, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
}
