package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// DisplayDatePrefix prefixes the persisted display date of each kind.
const DisplayDatePrefix = "display_date_"

// FallForwardDays bounds the search for a prayer's next occurrence outside
// the current window. Weekly prayers can be seven days out.
const FallForwardDays = 9

// DisplayDateKey returns the persisted display date key of a kind.
func DisplayDateKey(k prayer.Kind) string { return DisplayDatePrefix + k.String() }

// Manager is the single owner of the live sequences. Readers get immutable
// snapshots; Refresh swaps a whole new sequence in.
type Manager struct {
	builder *Builder
	clock   timeutil.Clock
	kv      store.KV

	refreshMu sync.Mutex
	mu        sync.RWMutex
	seqs      map[prayer.Kind]*Sequence
}

// NewManager returns a Manager with no sequences built yet.
func NewManager(builder *Builder, clock timeutil.Clock, kv store.KV) *Manager {
	return &Manager{
		builder: builder,
		clock:   clock,
		kv:      kv,
		seqs:    make(map[prayer.Kind]*Sequence),
	}
}

// Clock returns the manager's clock.
func (m *Manager) Clock() timeutil.Clock { return m.clock }

// Builder returns the manager's builder.
func (m *Manager) Builder() *Builder { return m.builder }

// today is the clock's calendar date in the derivation location.
func (m *Manager) today() (time.Time, string) {
	now := m.clock.Now().In(m.builder.deriver.Location())
	return now, timeutil.DateKey(now)
}

// Refresh rebuilds the kind's sequence around the clock's current date. It
// never steps day by day, so any gap since the last build heals in one call.
// When the rebuilt window has no upcoming prayer it tries the next day's
// window before giving up with ErrExhausted. On error the previous sequence
// stays current unless a newer, exhausted one was built.
func (m *Manager) Refresh(ctx context.Context, kind prayer.Kind) (*Sequence, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	now, center := m.today()
	seq, err := m.builder.Build(ctx, kind, center)
	if err != nil {
		return nil, fmt.Errorf("build %s sequence for %s: %w", kind, center, err)
	}

	if seq.Exhausted(now) {
		next, _ := timeutil.ShiftDateKey(center, 1)
		ahead, aerr := m.builder.Build(ctx, kind, next)
		if aerr != nil || ahead.Exhausted(now) {
			m.swap(ctx, kind, seq, now)
			if aerr != nil {
				return seq, fmt.Errorf("%w: %s after %s: %w", ErrExhausted, kind, center, aerr)
			}
			return seq, fmt.Errorf("%w: %s after %s", ErrExhausted, kind, next)
		}
		seq = ahead
	}

	m.swap(ctx, kind, seq, now)
	return seq, nil
}

func (m *Manager) swap(ctx context.Context, kind prayer.Kind, seq *Sequence, now time.Time) {
	m.mu.Lock()
	prev := m.seqs[kind]
	m.seqs[kind] = seq
	m.mu.Unlock()

	logger := log.With().Str("kind", kind.String()).Str("center", seq.Center).Logger()
	if prev == nil || prev.Center != seq.Center {
		logger.Debug().Int("prayers", seq.Len()).Msg("sequence rebuilt")
	}

	display := seq.DisplayDate(now)
	if display == "" {
		return
	}
	if err := m.kv.Set(ctx, DisplayDateKey(kind), []byte(display)); err != nil {
		logger.Warn().Err(err).Msg("failed to persist display date")
	}
}

// Current returns the live sequence of a kind, or nil before the first refresh.
func (m *Manager) Current(kind prayer.Kind) *Sequence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seqs[kind]
}

// NextPrayer returns the kind's next prayer or false when the window is exhausted.
func (m *Manager) NextPrayer(kind prayer.Kind) (prayer.Prayer, bool) {
	return m.Current(kind).Next(m.clock.Now())
}

// PrevPrayer returns the kind's most recent passed prayer.
func (m *Manager) PrevPrayer(kind prayer.Kind) (prayer.Prayer, bool) {
	return m.Current(kind).Prev(m.clock.Now())
}

// DisplayDate returns the currently active group date of a kind.
func (m *Manager) DisplayDate(kind prayer.Kind) string {
	return m.Current(kind).DisplayDate(m.clock.Now())
}

// SavedDisplayDate returns the last persisted display date, or "" if none.
func (m *Manager) SavedDisplayDate(ctx context.Context, kind prayer.Kind) (string, error) {
	v, err := m.kv.Get(ctx, DisplayDateKey(kind))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// NextOccurrence returns the first occurrence of name after now, looking in
// the live sequence first and then in a FallForwardDays window.
func (m *Manager) NextOccurrence(ctx context.Context, kind prayer.Kind, name prayer.Name, now time.Time) (prayer.Prayer, error) {
	if p, ok := m.Current(kind).NextOf(name, now); ok {
		return p, nil
	}
	from, _ := timeutil.ShiftDateKey(timeutil.DateKey(now.In(m.builder.deriver.Location())), -1)
	seq, err := m.builder.BuildWindow(ctx, kind, from, FallForwardDays+1)
	if err != nil {
		return prayer.Prayer{}, err
	}
	if p, ok := seq.NextOf(name, now); ok {
		return p, nil
	}
	return prayer.Prayer{}, fmt.Errorf("%w: no %s within %d days", ErrExhausted, name, FallForwardDays)
}

// Occurrences returns every occurrence of name in (from, from+days].
func (m *Manager) Occurrences(ctx context.Context, kind prayer.Kind, name prayer.Name, from time.Time, days int) ([]prayer.Prayer, error) {
	local := from.In(m.builder.deriver.Location())
	start, _ := timeutil.ShiftDateKey(timeutil.DateKey(local), -1)
	// The last night's prayers are derived from the day after until.
	seq, err := m.builder.BuildWindow(ctx, kind, start, days+3)
	if err != nil {
		return nil, err
	}
	until := timeutil.AddDays(local, days)

	var out []prayer.Prayer
	for _, p := range seq.Prayers {
		if p.Name == name && p.Datetime.After(from) && !p.Datetime.After(until) {
			out = append(out, p)
		}
	}
	return out, nil
}
