package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

// Key prefixes owned by the day data layer.
const (
	DayPrefix         = "prayer_"
	FetchedYearPrefix = "fetched_year_"
)

// DayKey returns the key of a raw day, e.g. "prayer_2026-01-18".
func DayKey(date string) string { return DayPrefix + date }

// FetchedYearKey returns the marker key of a fetched year.
func FetchedYearKey(year int) string { return FetchedYearPrefix + strconv.Itoa(year) }

// Days is the typed accessor for raw prayer days and fetched-year markers.
type Days struct {
	kv KV
}

// NewDays wraps kv.
func NewDays(kv KV) *Days {
	return &Days{kv: kv}
}

// KV returns the underlying store.
func (d *Days) KV() KV { return d.kv }

// Day loads one raw day. A missing day returns ErrNotFound.
func (d *Days) Day(ctx context.Context, date string) (prayer.RawDayTimes, error) {
	var raw prayer.RawDayTimes
	if err := GetJSON(ctx, d.kv, DayKey(date), &raw); err != nil {
		return prayer.RawDayTimes{}, err
	}
	if raw.Date == "" {
		raw.Date = date
	}
	return raw, nil
}

// HasDay reports whether raw data exists for date.
func (d *Days) HasDay(ctx context.Context, date string) (bool, error) {
	_, err := d.kv.Get(ctx, DayKey(date))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PutDays persists every day under its date key.
func (d *Days) PutDays(ctx context.Context, days []prayer.RawDayTimes) error {
	for _, day := range days {
		if err := SetJSON(ctx, d.kv, DayKey(day.Date), day); err != nil {
			return err
		}
	}
	return nil
}

// Dates lists the dates that have raw data, sorted.
func (d *Days) Dates(ctx context.Context) ([]string, error) {
	keys, err := d.kv.Scan(ctx, DayPrefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, DayPrefix)
	}
	return keys, nil
}

// MarkYearFetched records that a whole year was fetched at the given time.
func (d *Days) MarkYearFetched(ctx context.Context, year int, at time.Time) error {
	return d.kv.Set(ctx, FetchedYearKey(year), []byte(at.Format(time.RFC3339)))
}

// YearFetched reports whether the year's marker exists.
func (d *Days) YearFetched(ctx context.Context, year int) (bool, error) {
	_, err := d.kv.Get(ctx, FetchedYearKey(year))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every raw day and fetched-year marker. Other keys are untouched.
func (d *Days) Clear(ctx context.Context) error {
	for _, prefix := range []string{DayPrefix, FetchedYearPrefix} {
		if _, err := RemovePrefix(ctx, d.kv, prefix); err != nil {
			return fmt.Errorf("clear %s*: %w", prefix, err)
		}
	}
	return nil
}
