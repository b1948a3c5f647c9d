// Package prayertest provides raw day fixtures for tests of the scheduling
// packages.
package prayertest

import (
	"context"
	"testing"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Loc is the fixture location.
var Loc = time.FixedZone("GMT", 0)

// Day returns the winter fixture day for date: Fajr 06:12, Sunrise 07:45,
// Dhuhr 12:00, Asr 13:30, Maghrib 16:00, Isha 17:30.
func Day(date string) prayer.RawDayTimes {
	return prayer.RawDayTimes{
		Date:    date,
		Fajr:    "06:12",
		Sunrise: "07:45",
		Dhuhr:   "12:00",
		Asr:     "13:30",
		Maghrib: "16:00",
		Isha:    "17:30",
	}
}

// Range returns n consecutive fixture days starting at from.
func Range(from string, n int) []prayer.RawDayTimes {
	out := make([]prayer.RawDayTimes, 0, n)
	for i := 0; i < n; i++ {
		d, err := timeutil.ShiftDateKey(from, i)
		if err != nil {
			panic(err)
		}
		out = append(out, Day(d))
	}
	return out
}

// Seed stores n fixture days from the given date in kv.
func Seed(t testing.TB, kv store.KV, from string, n int) *store.Days {
	t.Helper()
	days := store.NewDays(kv)
	if err := days.PutDays(context.Background(), Range(from, n)); err != nil {
		t.Fatalf("seed days: %v", err)
	}
	return days
}

// Deriver returns a default-config deriver in Loc.
func Deriver() *prayer.Deriver {
	return prayer.NewDeriver(prayer.DefaultConfig(), Loc, nil)
}

// At returns the wall-clock time on date in Loc.
func At(date string, hour, min int) time.Time {
	d, err := timeutil.ParseDate(date, Loc)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, Loc)
}
