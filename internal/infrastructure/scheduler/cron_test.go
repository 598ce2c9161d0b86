package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_RejectsMalformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"* * * * * *",
		"61 * * * *",
		"* 24 * * *",
		"* * * * 7",
		"*/0 * * * *",
		"a * * * *",
		"10-5 * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronExpression_NextWeeklyRollup(t *testing.T) {
	ce, err := ParseCronExpression("0 3 * * 1")
	require.NoError(t, err)

	// Saturday, so the next match is Monday 03:00.
	after := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Weekday(1), next.Weekday())
}

func TestCronExpression_NextSteps(t *testing.T) {
	ce, err := ParseCronExpression("*/15 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 8, 31, 12, 16, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC), ce.Next(after))

	// Already on a boundary: Next is strictly after.
	after = time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 12, 45, 0, 0, time.UTC), ce.Next(after))
}

func TestCronExpression_RangesAndLists(t *testing.T) {
	ce, err := ParseCronExpression("0 9-11 * * 1,3,5")
	require.NoError(t, err)

	// Monday 11:00 -> Wednesday 09:00.
	after := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronExpression_ImplementsSchedule(t *testing.T) {
	ce, err := ParseCronExpression("0 3 * * 1")
	require.NoError(t, err)

	var s Schedule = ce
	assert.Equal(t, "0 3 * * 1", s.String())
	assert.False(t, s.Next(time.Now()).IsZero())
}
