// Package timeutil provides UTC week-window utilities for Arena Tournament Hub.
// Weekly leaderboard scoring buckets submissions into ISO-style weeks
// (Monday 00:00:00 UTC to Sunday 23:59:59 UTC), so every window computation
// must agree on the same boundaries regardless of server timezone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(u.AddDate(0, 0, -daysToSubtract))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59) in UTC.
func EndOfWeek(t time.Time) time.Time {
	start := StartOfWeek(t)
	return EndOfDay(start.AddDate(0, 0, 6))
}

// PreviousWeek returns the start of the week before the one containing t.
func PreviousWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, -7)
}

// WeekWindow is a half-open interval [Start, End) covering one scoring week.
type WeekWindow struct {
	Start time.Time
	End   time.Time
}

// CurrentWeek returns the window for the week containing t.
func CurrentWeek(t time.Time) WeekWindow {
	start := StartOfWeek(t)
	return WeekWindow{Start: start, End: start.AddDate(0, 0, 7)}
}

// LastWeek returns the window for the week before the one containing t.
// The weekly rollup job processes last week's submissions after the week closes.
func LastWeek(t time.Time) WeekWindow {
	start := PreviousWeek(t)
	return WeekWindow{Start: start, End: start.AddDate(0, 0, 7)}
}

// Contains reports whether ts falls inside the window.
func (w WeekWindow) Contains(ts time.Time) bool {
	u := ts.UTC()
	return !u.Before(w.Start) && u.Before(w.End)
}

// Key returns a stable string key for the window (its Monday date).
// Used as the weekly population identifier in submission rows.
func (w WeekWindow) Key() string {
	return w.Start.Format(FormatDate)
}

// IsSameWeek checks if two times fall into the same scoring week.
func IsSameWeek(t1, t2 time.Time) bool {
	return StartOfWeek(t1).Equal(StartOfWeek(t2))
}

// IsSameDay checks if two times are on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	duration := a2.Sub(a1)
	days := int(duration.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// WeeksBetween calculates the number of whole scoring weeks between two times.
func WeeksBetween(t1, t2 time.Time) int {
	s1 := StartOfWeek(t1)
	s2 := StartOfWeek(t2)
	weeks := int(s2.Sub(s1).Hours() / (24 * 7))
	if weeks < 0 {
		weeks = -weeks
	}
	return weeks
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) as UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// ParseWeekKey parses a week key and validates it is a Monday.
func ParseWeekKey(value string) (time.Time, error) {
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, err
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("week key %q is not a Monday", value)
	}
	return t, nil
}
