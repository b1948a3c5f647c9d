// Package syncer is the single bootstrap entry point: it decides whether
// fresh remote data is needed, persists it, and (re)initializes the
// sequences and countdowns.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/api"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Refresher rebuilds the live sequence of a kind.
type Refresher interface {
	Refresh(ctx context.Context, kind prayer.Kind) (*sequence.Sequence, error)
}

// Starter (re)starts the per-kind countdown tick.
type Starter interface {
	Start(kind prayer.Kind)
}

// Status is the outcome of the last sync.
type Status struct {
	At      time.Time `json:"at"`
	Fetched []int     `json:"fetched,omitempty"`
	Err     string    `json:"error,omitempty"`
}

// Controller runs Sync. Concurrent calls are serialized.
type Controller struct {
	days     *store.Days
	provider api.Provider
	seqs     Refresher
	ticks    Starter
	clock    timeutil.Clock
	loc      *time.Location

	mu     sync.Mutex
	status Status
	err    error
}

// New returns a Controller. Dates are evaluated in loc.
func New(days *store.Days, provider api.Provider, seqs Refresher, ticks Starter, clock timeutil.Clock, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.Local
	}
	return &Controller{days: days, provider: provider, seqs: seqs, ticks: ticks, clock: clock, loc: loc}
}

// Sync fetches a fresh year of data when the store is stale, then rebuilds
// both kinds' sequences and restarts their countdowns. Fetch and parse
// failures are returned without retrying; the cached data and the running
// sequences are left untouched in that case.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().In(c.loc)
	years, err := c.staleYears(ctx, now)
	var fetched []int
	if err == nil && len(years) > 0 {
		err = c.fetch(ctx, years)
		if err == nil {
			fetched = years
		}
	}
	if err != nil {
		log.Error().Err(err).Ints("years", years).Msg("sync failed")
	}

	errs := []error{err}
	for _, kind := range prayer.Kinds() {
		if _, rerr := c.seqs.Refresh(ctx, kind); rerr != nil {
			log.Warn().Err(rerr).Str("kind", kind.String()).Msg("sequence refresh failed")
			errs = append(errs, rerr)
		}
		if c.ticks != nil {
			c.ticks.Start(kind)
		}
	}

	err = errors.Join(errs...)
	c.err = err
	c.status = Status{At: now, Fetched: fetched}
	if err != nil {
		c.status.Err = err.Error()
	}
	return err
}

// staleYears returns the years to fetch, or none when the store is fresh.
func (c *Controller) staleYears(ctx context.Context, now time.Time) ([]int, error) {
	today := timeutil.DateKey(now)
	has, err := c.days.HasDay(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("check data for %s: %w", today, err)
	}

	year := now.Year()
	nextMissing := false
	if timeutil.IsDecember(now) {
		ok, err := c.days.YearFetched(ctx, year+1)
		if err != nil {
			return nil, fmt.Errorf("check fetched year %d: %w", year+1, err)
		}
		nextMissing = !ok
	}

	// On 1 January the window's previous day lives in last year's data.
	prevMissing := false
	if yesterday := timeutil.AddDays(timeutil.StartOfDay(now), -1); yesterday.Year() < year {
		ok, err := c.days.HasDay(ctx, timeutil.DateKey(yesterday))
		if err != nil {
			return nil, fmt.Errorf("check data for %s: %w", timeutil.DateKey(yesterday), err)
		}
		prevMissing = !ok
	}

	if has && !nextMissing && !prevMissing {
		return nil, nil
	}
	var years []int
	if prevMissing {
		years = append(years, year-1)
	}
	years = append(years, year)
	if nextMissing {
		years = append(years, year+1)
	}
	return years, nil
}

// fetch downloads and validates every year before replacing the cache.
func (c *Controller) fetch(ctx context.Context, years []int) error {
	var days []prayer.RawDayTimes
	for _, y := range years {
		yt, err := c.provider.FetchYear(ctx, y)
		if err != nil {
			return fmt.Errorf("fetch %d: %w", y, err)
		}
		for _, d := range yt.Days {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("fetch %d: %w", y, err)
			}
		}
		days = append(days, yt.Days...)
		log.Info().Int("year", y).Int("days", len(yt.Days)).Str("city", yt.City).Msg("fetched prayer times")
	}

	if err := c.days.Clear(ctx); err != nil {
		return fmt.Errorf("clear cached days: %w", err)
	}
	if err := c.days.PutDays(ctx, days); err != nil {
		return fmt.Errorf("persist days: %w", err)
	}
	at := c.clock.Now()
	for _, y := range years {
		if err := c.days.MarkYearFetched(ctx, y, at); err != nil {
			return fmt.Errorf("mark year %d: %w", y, err)
		}
	}
	return nil
}

// LastError returns the error of the last Sync, nil after a clean one.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// LastStatus returns the outcome of the last Sync.
func (c *Controller) LastStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
