// Package app is the scheduling context: it owns the process-wide sequence
// manager, countdown engine, notification scheduler and timers, and exposes
// the read values and actions the presentation layers use.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/api"
	"github.com/smokyabdulrahman/prayerd/internal/background"
	"github.com/smokyabdulrahman/prayerd/internal/countdown"
	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/syncer"
	"github.com/smokyabdulrahman/prayerd/internal/ticker"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// DefaultMidnightWatch is how often the calendar date is checked.
const DefaultMidnightWatch = 30 * time.Second

// syncTimeout bounds a sync triggered by the midnight watch.
const syncTimeout = 2 * time.Minute

// Deps are the collaborators of an App.
type Deps struct {
	KV       store.KV
	Provider api.Provider
	Notifier notify.Notifier
	Deriver  *prayer.Deriver
	Texts    notify.Texts
	// Clock defaults to the system clock in the deriver's location.
	Clock timeutil.Clock

	Notify           notify.Options
	TickInterval     time.Duration
	WakeInterval     time.Duration
	MidnightInterval time.Duration
}

// App wires the scheduling core together.
type App struct {
	clock timeutil.Clock
	loc   *time.Location

	KV         store.KV
	Days       *store.Days
	Manager    *sequence.Manager
	Timers     *ticker.Registry
	Engine     *countdown.Engine
	Scheduler  *notify.Scheduler
	Sync       *syncer.Controller
	Background *background.Runner

	midnightEvery time.Duration

	mu       sync.Mutex
	lastDate string
	syncing  atomic.Bool
	wg       sync.WaitGroup
}

// New builds an App from d.
func New(d Deps) *App {
	loc := d.Deriver.Location()
	clock := d.Clock
	if clock == nil {
		clock = timeutil.NewSystemClock(loc)
	}
	if d.MidnightInterval <= 0 {
		d.MidnightInterval = DefaultMidnightWatch
	}

	days := store.NewDays(d.KV)
	mgr := sequence.NewManager(sequence.NewBuilder(days, d.Deriver, clock), clock, d.KV)
	timers := ticker.New()
	engine := countdown.NewEngine(mgr, clock, timers, d.TickInterval)
	sched := notify.NewScheduler(d.KV, mgr, d.Notifier, clock, d.Texts, d.Notify)

	return &App{
		clock:         clock,
		loc:           loc,
		KV:            d.KV,
		Days:          days,
		Manager:       mgr,
		Timers:        timers,
		Engine:        engine,
		Scheduler:     sched,
		Sync:          syncer.New(days, d.Provider, mgr, engine, clock, loc),
		Background:    background.New(sched, d.WakeInterval),
		midnightEvery: d.MidnightInterval,
	}
}

// Clock returns the app clock.
func (a *App) Clock() timeutil.Clock { return a.clock }

// Location returns the schedule's location.
func (a *App) Location() *time.Location { return a.loc }

// Start is the cold-start path: sync, then watch for the date changing.
// A sync error is returned but the watch is armed regardless, so a later
// date change retries.
func (a *App) Start(ctx context.Context) error {
	err := a.Sync.Sync(ctx)
	a.watchMidnight()
	if err == nil {
		if _, rerr := a.Scheduler.RescheduleIfStale(ctx); rerr != nil {
			log.Warn().Err(rerr).Msg("initial notification reconcile failed")
		}
	}
	return err
}

// Resume is the foreground-resume path. It behaves like Start.
func (a *App) Resume(ctx context.Context) error {
	return a.Start(ctx)
}

// Stop cancels the countdown, overlay and midnight timers. Scheduled
// notifications stay armed.
func (a *App) Stop() {
	for _, k := range prayer.Kinds() {
		a.Engine.Stop(k)
	}
	a.Timers.Cancel(ticker.KeyOverlay)
	a.Timers.Cancel(ticker.KeyMidnightWatch)
}

// Close stops everything and waits for background work.
func (a *App) Close() {
	a.Stop()
	a.Engine.Close()
	a.Timers.StopAll()
	a.wg.Wait()
}

func (a *App) watchMidnight() {
	a.mu.Lock()
	a.lastDate = timeutil.DateKey(a.clock.Now().In(a.loc))
	a.mu.Unlock()

	a.Timers.Every(ticker.KeyMidnightWatch, a.midnightEvery, func(time.Time) {
		a.checkDate()
	})
}

// checkDate triggers an asynchronous sync when the calendar date changed.
func (a *App) checkDate() {
	today := timeutil.DateKey(a.clock.Now().In(a.loc))
	a.mu.Lock()
	changed := today != a.lastDate
	prev := a.lastDate
	a.lastDate = today
	a.mu.Unlock()

	if !changed {
		return
	}
	log.Info().Str("from", prev).Str("to", today).Msg("calendar date changed")
	a.syncAsync()
}

func (a *App) syncAsync() {
	if !a.syncing.CompareAndSwap(false, true) {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.syncing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := a.Sync.Sync(ctx); err != nil {
			return
		}
		if err := a.Scheduler.ReconcileAll(ctx, false); err != nil {
			log.Warn().Err(err).Msg("notification reconcile after date change failed")
		}
	}()
}

// RunBackground runs the periodic notification wake until ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	a.Background.Run(ctx)
}
