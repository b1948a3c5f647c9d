package countdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/ticker"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Source is the sequence owner the engine reads from.
type Source interface {
	Current(kind prayer.Kind) *sequence.Sequence
	Refresh(ctx context.Context, kind prayer.Kind) (*sequence.Sequence, error)
	NextOccurrence(ctx context.Context, kind prayer.Kind, name prayer.Name, now time.Time) (prayer.Prayer, error)
}

// EventType distinguishes observer notifications.
type EventType int

const (
	EventReading EventType = iota + 1
	EventOverlay
	EventDetailClosed
)

// Event is delivered to observers after every tick and detail close.
type Event struct {
	Type    EventType
	Kind    prayer.Kind
	Reading Reading
}

// Overlay is the state of the user-selected countdown.
type Overlay struct {
	Kind    prayer.Kind `json:"kind"`
	Index   int         `json:"index"`
	Open    bool        `json:"open"`
	Reading Reading     `json:"reading"`
}

// Engine drives the per-kind countdown timers and the overlay timer.
type Engine struct {
	src      Source
	clock    timeutil.Clock
	timers   *ticker.Registry
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	readings   map[prayer.Kind]Reading
	detail     map[prayer.Kind]bool
	selected   map[prayer.Kind]int
	refreshing map[prayer.Kind]bool
	overlay    *Overlay
	observers  map[int]func(Event)
	nextObs    int
}

// NewEngine returns an engine ticking every interval (one second when zero).
func NewEngine(src Source, clock timeutil.Clock, timers *ticker.Registry, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		src:        src,
		clock:      clock,
		timers:     timers,
		interval:   interval,
		ctx:        ctx,
		cancel:     cancel,
		readings:   make(map[prayer.Kind]Reading),
		detail:     make(map[prayer.Kind]bool),
		selected:   make(map[prayer.Kind]int),
		refreshing: make(map[prayer.Kind]bool),
		observers:  make(map[int]func(Event)),
	}
}

func timerKey(kind prayer.Kind) string {
	switch kind {
	case prayer.Standard:
		return ticker.KeyStandard
	case prayer.Extra:
		return ticker.KeyExtra
	}
	return kind.String()
}

// Start (re)starts the kind's countdown and samples it immediately.
func (e *Engine) Start(kind prayer.Kind) {
	e.timers.Every(timerKey(kind), e.interval, func(time.Time) {
		e.tick(kind, e.clock.Now())
	})
	e.TickOnce(kind)
}

// Stop cancels the kind's countdown.
func (e *Engine) Stop(kind prayer.Kind) {
	e.timers.Cancel(timerKey(kind))
}

// Close stops every timer the engine owns and waits for in-flight refreshes.
func (e *Engine) Close() {
	for _, k := range prayer.Kinds() {
		e.Stop(k)
	}
	e.timers.Cancel(ticker.KeyOverlay)
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until background refreshes started so far have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// TickOnce samples the kind's countdown now, serialized with timer callbacks.
func (e *Engine) TickOnce(kind prayer.Kind) {
	e.timers.Do(func() { e.tick(kind, e.clock.Now()) })
}

func (e *Engine) tick(kind prayer.Kind, now time.Time) {
	e.mu.Lock()
	prev, ok := e.readings[kind]
	e.mu.Unlock()
	if !ok {
		prev = Reading{Kind: kind}
	}

	seq := e.src.Current(kind)
	r, effects := Compute(now, seq, prev)

	if HasEffect(effects, EffectRefresh) {
		if !r.Valid {
			// Nothing left to show: rebuild before recomputing.
			fresh, err := e.src.Refresh(e.ctx, kind)
			if err != nil && !errors.Is(err, sequence.ErrExhausted) {
				log.Warn().Err(err).Str("kind", kind.String()).Msg("countdown refresh failed")
			}
			if fresh != nil {
				r, effects = Compute(now, fresh, prev)
			}
		} else {
			e.refreshAsync(kind)
		}
	}

	closed := false
	e.mu.Lock()
	e.readings[kind] = r
	if HasEffect(effects, EffectCloseDetail) && e.detail[kind] {
		e.detail[kind] = false
		closed = true
	}
	e.mu.Unlock()

	if closed {
		e.emit(Event{Type: EventDetailClosed, Kind: kind, Reading: r})
	}
	e.emit(Event{Type: EventReading, Kind: kind, Reading: r})
}

// refreshAsync rebuilds the kind's sequence off the tick path. At most one
// refresh per kind is in flight.
func (e *Engine) refreshAsync(kind prayer.Kind) {
	e.mu.Lock()
	if e.refreshing[kind] {
		e.mu.Unlock()
		return
	}
	e.refreshing[kind] = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			e.refreshing[kind] = false
			e.mu.Unlock()
		}()
		if _, err := e.src.Refresh(e.ctx, kind); err != nil {
			log.Warn().Err(err).Str("kind", kind.String()).Msg("background sequence refresh failed")
		}
	}()
}

// Reading samples kind at the current instant against the live sequence.
// It reports false until the kind has been started. Effects are left to the
// next tick.
func (e *Engine) Reading(kind prayer.Kind) (Reading, bool) {
	e.mu.Lock()
	last, ok := e.readings[kind]
	e.mu.Unlock()
	if !ok {
		return Reading{}, false
	}
	r, _ := Compute(e.clock.Now(), e.src.Current(kind), last)
	return r, true
}

// Watch registers an observer and returns its cancel function. Observers run
// on the timer goroutine and must not block.
func (e *Engine) Watch(fn func(Event)) (cancel func()) {
	e.mu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ---------------------------------------------------------------------------
// Detail views
// ---------------------------------------------------------------------------

// OpenDetail marks the kind's detail view as open.
func (e *Engine) OpenDetail(kind prayer.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detail[kind] = true
}

// CloseDetail marks the kind's detail view as closed.
func (e *Engine) CloseDetail(kind prayer.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detail[kind] = false
}

// DetailOpen reports whether the kind's detail view is open.
func (e *Engine) DetailOpen(kind prayer.Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detail[kind]
}

// ---------------------------------------------------------------------------
// Overlay
// ---------------------------------------------------------------------------

// Selected returns the kind's selected prayer index.
func (e *Engine) Selected(kind prayer.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected[kind]
}

// SetSelected selects a prayer index of the kind's canonical names. An open
// overlay on that kind is retargeted.
func (e *Engine) SetSelected(kind prayer.Kind, index int) error {
	if _, err := prayer.NameAt(kind, index); err != nil {
		return err
	}
	e.mu.Lock()
	e.selected[kind] = index
	retarget := e.overlay != nil && e.overlay.Open && e.overlay.Kind == kind
	e.mu.Unlock()

	if retarget {
		return e.openOverlay(kind, index)
	}
	return nil
}

// ToggleOverlay opens the overlay countdown for the kind's selected prayer,
// or closes it when already open on that kind. It returns the new open state.
func (e *Engine) ToggleOverlay(kind prayer.Kind) (bool, error) {
	e.mu.Lock()
	open := e.overlay != nil && e.overlay.Open && e.overlay.Kind == kind
	index := e.selected[kind]
	e.mu.Unlock()

	if open {
		e.closeOverlay()
		return false, nil
	}
	if err := e.openOverlay(kind, index); err != nil {
		return false, err
	}
	return true, nil
}

// OverlayState returns the overlay, or false when it is closed.
func (e *Engine) OverlayState() (Overlay, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil || !e.overlay.Open {
		return Overlay{}, false
	}
	ov := *e.overlay
	ov.Reading = overlayReading(ov.Kind, ov.Reading.Prayer, e.clock.Now())
	return ov, true
}

func (e *Engine) closeOverlay() {
	e.timers.Cancel(ticker.KeyOverlay)
	e.mu.Lock()
	e.overlay = nil
	e.mu.Unlock()
}

func (e *Engine) openOverlay(kind prayer.Kind, index int) error {
	name, err := prayer.NameAt(kind, index)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	target, err := e.overlayTarget(kind, name, now)
	if err != nil {
		return fmt.Errorf("overlay for %s: %w", name, err)
	}

	e.mu.Lock()
	e.overlay = &Overlay{Kind: kind, Index: index, Open: true, Reading: overlayReading(kind, target, now)}
	e.mu.Unlock()

	e.timers.Every(ticker.KeyOverlay, e.interval, func(time.Time) {
		e.overlayTick(e.clock.Now())
	})
	return nil
}

// overlayTarget returns the selected prayer of the display group if it is
// still ahead, otherwise the same name's next future occurrence.
func (e *Engine) overlayTarget(kind prayer.Kind, name prayer.Name, now time.Time) (prayer.Prayer, error) {
	seq := e.src.Current(kind)
	if p, ok := seq.Find(name, seq.DisplayDate(now)); ok && p.Datetime.After(now) {
		return p, nil
	}
	return e.src.NextOccurrence(e.ctx, kind, name, now)
}

// TickOverlay samples the overlay now, serialized with timer callbacks.
func (e *Engine) TickOverlay() {
	e.timers.Do(func() { e.overlayTick(e.clock.Now()) })
}

func (e *Engine) overlayTick(now time.Time) {
	e.mu.Lock()
	if e.overlay == nil || !e.overlay.Open {
		e.mu.Unlock()
		return
	}
	ov := *e.overlay
	e.mu.Unlock()

	target := ov.Reading.Prayer
	if !target.Datetime.After(now) {
		next, err := e.src.NextOccurrence(e.ctx, ov.Kind, target.Name, now)
		if err != nil {
			log.Warn().Err(err).Str("prayer", string(target.Name)).Msg("overlay has no next occurrence")
			return
		}
		target = next
	}
	ov.Reading = overlayReading(ov.Kind, target, now)

	e.mu.Lock()
	if e.overlay == nil || !e.overlay.Open || e.overlay.Index != ov.Index || e.overlay.Kind != ov.Kind {
		e.mu.Unlock()
		return
	}
	e.overlay.Reading = ov.Reading
	e.mu.Unlock()

	e.emit(Event{Type: EventOverlay, Kind: ov.Kind, Reading: ov.Reading})
}

func overlayReading(kind prayer.Kind, target prayer.Prayer, now time.Time) Reading {
	return Reading{
		Kind:             kind,
		Prayer:           target,
		SecondsRemaining: timeutil.SecondsUntil(target.Datetime, now),
		At:               now,
		Valid:            true,
	}
}
