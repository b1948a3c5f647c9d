// Package countdown keeps the live per-kind countdowns to the next prayer and
// the user-selected overlay countdown.
package countdown

import (
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// GuardWindow is how close to a transition an open detail view is closed.
const GuardWindow = 2 * time.Second

// Reading is one countdown sample.
type Reading struct {
	Kind             prayer.Kind   `json:"kind"`
	Prayer           prayer.Prayer `json:"prayer"`
	SecondsRemaining int64         `json:"seconds_remaining"`
	At               time.Time     `json:"at"`
	// Valid is false when the sequence had no upcoming prayer.
	Valid bool `json:"valid"`
}

// Clock renders the remaining time as HH:MM:SS.
func (r Reading) Clock() string {
	return timeutil.FormatClock(r.SecondsRemaining)
}

// Effect is a side effect requested by Compute.
type Effect int

const (
	// EffectRefresh asks for the sequence to be rebuilt.
	EffectRefresh Effect = iota + 1
	// EffectCloseDetail asks for the kind's detail view to be closed.
	EffectCloseDetail
)

func (e Effect) String() string {
	switch e {
	case EffectRefresh:
		return "refresh"
	case EffectCloseDetail:
		return "close-detail"
	}
	return "unknown"
}

// Compute derives the reading at now from seq. prev is the previous reading
// of the same kind, used to detect that the shown prayer has passed. The
// remaining seconds are always taken from absolute timestamps and are never
// negative.
func Compute(now time.Time, seq *sequence.Sequence, prev Reading) (Reading, []Effect) {
	kind := prev.Kind
	if seq != nil {
		kind = seq.Kind
	}

	next, ok := seq.Next(now)
	if !ok {
		return Reading{Kind: kind, At: now}, []Effect{EffectRefresh}
	}

	r := Reading{
		Kind:             kind,
		Prayer:           next,
		SecondsRemaining: timeutil.SecondsUntil(next.Datetime, now),
		At:               now,
		Valid:            true,
	}

	var effects []Effect
	passed := prev.Valid && !prev.Prayer.Datetime.After(now)
	if passed {
		effects = append(effects, EffectRefresh)
	}
	if next.Datetime.Sub(now) <= GuardWindow || (passed && now.Sub(prev.Prayer.Datetime) < GuardWindow) {
		effects = append(effects, EffectCloseDetail)
	}
	return r, effects
}

// HasEffect reports whether e is in effects.
func HasEffect(effects []Effect, e Effect) bool {
	for _, x := range effects {
		if x == e {
			return true
		}
	}
	return false
}
