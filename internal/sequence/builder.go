package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// DayReader loads raw days. Missing days return store.ErrNotFound.
type DayReader interface {
	Day(ctx context.Context, date string) (prayer.RawDayTimes, error)
}

// Builder derives sequences from persisted raw days.
type Builder struct {
	days    DayReader
	deriver *prayer.Deriver
	clock   timeutil.Clock
}

// NewBuilder returns a Builder.
func NewBuilder(days DayReader, deriver *prayer.Deriver, clock timeutil.Clock) *Builder {
	return &Builder{days: days, deriver: deriver, clock: clock}
}

// Deriver returns the builder's deriver.
func (b *Builder) Deriver() *prayer.Deriver { return b.deriver }

// Build returns the kind's sequence for center-1 .. center+1. center-2 is read
// when present so the first day gets its night prayers.
func (b *Builder) Build(ctx context.Context, kind prayer.Kind, center string) (*Sequence, error) {
	first, err := timeutil.ShiftDateKey(center, -1)
	if err != nil {
		return nil, err
	}
	raws, missing, err := b.load(ctx, first, 3)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &MissingDataError{Kind: kind, Dates: missing}
	}
	return b.derive(ctx, kind, center, first, raws)
}

// BuildWindow returns the kind's sequence over days consecutive dates starting
// at from. Missing dates are skipped; it fails only when none is present.
func (b *Builder) BuildWindow(ctx context.Context, kind prayer.Kind, from string, days int) (*Sequence, error) {
	if days < 1 {
		return nil, fmt.Errorf("window of %d days", days)
	}
	raws, missing, err := b.load(ctx, from, days)
	if err != nil {
		return nil, err
	}
	if len(missing) == days {
		return nil, &MissingDataError{Kind: kind, Dates: missing}
	}
	return b.derive(ctx, kind, from, from, raws)
}

// load reads n days from first, keyed by date, plus the day before first if
// stored.
func (b *Builder) load(ctx context.Context, first string, n int) (map[string]prayer.RawDayTimes, []string, error) {
	raws := make(map[string]prayer.RawDayTimes, n+1)
	var missing []string
	for i := -1; i < n; i++ {
		date, err := timeutil.ShiftDateKey(first, i)
		if err != nil {
			return nil, nil, err
		}
		raw, err := b.days.Day(ctx, date)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if i >= 0 {
				missing = append(missing, date)
			}
			continue
		case err != nil:
			return nil, nil, fmt.Errorf("load %s: %w", date, err)
		}
		raws[date] = raw
	}
	return raws, missing, nil
}

func (b *Builder) derive(ctx context.Context, kind prayer.Kind, center, first string, raws map[string]prayer.RawDayTimes) (*Sequence, error) {
	var all []prayer.Prayer
	for date, raw := range raws {
		if date < first {
			// Only feeds the next day's night prayers.
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var prev *prayer.RawDayTimes
		prevDate, err := timeutil.ShiftDateKey(date, -1)
		if err != nil {
			return nil, err
		}
		if p, ok := raws[prevDate]; ok {
			prev = &p
		}
		ps, err := b.deriver.Derive(raw, prev)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", date, err)
		}
		all = append(all, ps...)
	}
	return New(kind, center, all, b.clock.Now()), nil
}
