package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date layout used for every persisted day key.
const DateLayout = "2006-01-02"

// DateKey returns the ISO date of t in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an ISO date key into local midnight in loc.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay returns local midnight of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days keeping the wall-clock time. It goes
// through time.Date so DST transitions never shift the hour.
func AddDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ShiftDateKey returns the ISO key n days after key.
func ShiftDateKey(key string, n int) (string, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", key, err)
	}
	return DateKey(t.AddDate(0, 0, n)), nil
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// IsFriday reports whether t is a Friday.
func IsFriday(t time.Time) bool {
	return t.Weekday() == time.Friday
}

// IsFridayKey reports whether the ISO date key is a Friday. Invalid keys are not.
func IsFridayKey(key string) bool {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return false
	}
	return IsFriday(t)
}

// IsDecember reports whether t falls in December.
func IsDecember(t time.Time) bool {
	return t.Month() == time.December
}

// IsRamadan reports whether t falls in the Hijri month of Ramadan.
func IsRamadan(t time.Time) bool {
	return Hijri(t).Month == 9
}
