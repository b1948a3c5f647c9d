package app

import (
	"context"

	"github.com/smokyabdulrahman/prayerd/internal/background"
	"github.com/smokyabdulrahman/prayerd/internal/countdown"
	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/syncer"
)

// KindView is the read-only state of one schedule kind.
type KindView struct {
	Kind        prayer.Kind       `json:"kind"`
	DisplayDate string            `json:"display_date"`
	Prayers     []prayer.Prayer   `json:"prayers"`
	Next        *prayer.Prayer    `json:"next,omitempty"`
	Prev        *prayer.Prayer    `json:"prev,omitempty"`
	Countdown   countdown.Reading `json:"countdown"`
	Selected    int               `json:"selected"`
	DetailOpen  bool              `json:"detail_open"`
}

// Status summarizes the health of the scheduling context.
type Status struct {
	Sync       syncer.Status     `json:"sync"`
	Background background.Result `json:"background"`
	Timers     []string          `json:"timers"`
}

// View returns the current state of kind.
func (a *App) View(kind prayer.Kind) KindView {
	now := a.clock.Now()
	seq := a.Manager.Current(kind)
	v := KindView{
		Kind:        kind,
		DisplayDate: seq.DisplayDate(now),
		Selected:    a.Engine.Selected(kind),
		DetailOpen:  a.Engine.DetailOpen(kind),
	}
	if seq != nil {
		v.Prayers = seq.Prayers
	}
	if p, ok := seq.Next(now); ok {
		v.Next = &p
	}
	if p, ok := seq.Prev(now); ok {
		v.Prev = &p
	}
	if r, ok := a.Engine.Reading(kind); ok {
		v.Countdown = r
	}
	return v
}

// Status returns sync, background and timer state.
func (a *App) Status() Status {
	return Status{
		Sync:       a.Sync.LastStatus(),
		Background: a.Background.Last(),
		Timers:     a.Timers.Keys(),
	}
}

// Overlay returns the overlay countdown, or false when it is closed.
func (a *App) Overlay() (countdown.Overlay, bool) {
	return a.Engine.OverlayState()
}

// SetSelectedPrayerIndex selects the prayer the overlay counts down to.
func (a *App) SetSelectedPrayerIndex(kind prayer.Kind, index int) error {
	return a.Engine.SetSelected(kind, index)
}

// ToggleOverlay opens or closes the overlay countdown for kind.
func (a *App) ToggleOverlay(kind prayer.Kind) (bool, error) {
	return a.Engine.ToggleOverlay(kind)
}

// OpenDetail marks kind's detail view open. The engine closes it near a
// transition.
func (a *App) OpenDetail(kind prayer.Kind) {
	a.Engine.OpenDetail(kind)
}

// Preference returns the stored alert preference of a prayer.
func (a *App) Preference(ctx context.Context, kind prayer.Kind, index int) (notify.Preference, error) {
	return a.Scheduler.Preferences().Get(ctx, kind, index)
}

// UpdatePreference stores an alert preference and reconciles its
// notifications.
func (a *App) UpdatePreference(ctx context.Context, kind prayer.Kind, index int, pref notify.Preference) error {
	return a.Scheduler.UpdatePreference(ctx, kind, index, pref)
}

// Resync runs the sync entry point, as a manual refresh.
func (a *App) Resync(ctx context.Context) (syncer.Status, error) {
	err := a.Sync.Sync(ctx)
	return a.Sync.LastStatus(), err
}

// Notifications lists the scheduled notification records.
func (a *App) Notifications(ctx context.Context) ([]notify.Record, error) {
	return a.Scheduler.Records(ctx)
}
