package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron schedule
// (minute hour day-of-month month day-of-week). It satisfies the
// Schedule interface, so cron jobs register on the same Scheduler as
// interval jobs.
//
// Field syntax: "*", "n", "n-m", comma lists, and step forms "*/s",
// "n-m/s". Weekday 0 is Sunday.
type CronExpression struct {
	raw string

	// One bitmask per field; bit v set means value v matches.
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
}

// ParseCronExpression parses a 5-field cron expression.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	for i, spec := range []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &ce.minutes},
		{"hour", 0, 23, &ce.hours},
		{"day", 1, 31, &ce.days},
		{"month", 1, 12, &ce.months},
		{"weekday", 0, 6, &ce.weekdays},
	} {
		bits, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, spec.name, err)
		}
		*spec.dst = bits
	}

	return ce, nil
}

// parseCronField expands one field into a bitmask of matching values.
func parseCronField(field string, min, max int) (uint64, error) {
	var bits uint64

	for _, part := range strings.Split(field, ",") {
		start, end, step := min, max, 1

		if body, stepStr, ok := strings.Cut(part, "/"); ok {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("bad step %q", stepStr)
			}
			step = s
			part = body
		}

		switch {
		case part == "*":
			// Full range.
		case strings.Contains(part, "-"):
			loStr, hiStr, _ := strings.Cut(part, "-")
			lo, err := strconv.Atoi(loStr)
			if err != nil {
				return 0, fmt.Errorf("bad range start %q", loStr)
			}
			hi, err := strconv.Atoi(hiStr)
			if err != nil {
				return 0, fmt.Errorf("bad range end %q", hiStr)
			}
			start, end = lo, hi
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			start = v
			if step == 1 {
				end = v
			}
			// "n/s" keeps running from n to the field maximum.
		}

		if start < min || end > max || start > end {
			return 0, fmt.Errorf("%q out of range [%d-%d]", part, min, max)
		}
		for v := start; v <= end; v += step {
			bits |= 1 << uint(v)
		}
	}

	if bits == 0 {
		return 0, fmt.Errorf("no matching values")
	}
	return bits, nil
}

// Next returns the first minute boundary after t that matches. An
// expression that never fires (impossible day/month combination)
// returns the zero time after scanning a full year.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(1, 0, 1)
	for ; next.Before(limit); next = next.Add(time.Minute) {
		if ce.matches(next) {
			return next
		}
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return ce.minutes&(1<<uint(t.Minute())) != 0 &&
		ce.hours&(1<<uint(t.Hour())) != 0 &&
		ce.days&(1<<uint(t.Day())) != 0 &&
		ce.months&(1<<uint(t.Month())) != 0 &&
		ce.weekdays&(1<<uint(t.Weekday())) != 0
}

// String returns the source expression.
func (ce *CronExpression) String() string {
	return ce.raw
}
