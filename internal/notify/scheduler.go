package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Notifier is the OS-level scheduling primitive.
type Notifier interface {
	// Schedule arranges n to fire at n.FireAt and returns an opaque id.
	Schedule(ctx context.Context, n Notification) (string, error)
	Cancel(ctx context.Context, id string) error
	// Pending lists the ids scheduled and not yet fired.
	Pending(ctx context.Context) ([]string, error)
}

// OccurrenceSource lists future occurrences of a prayer.
type OccurrenceSource interface {
	Occurrences(ctx context.Context, kind prayer.Kind, name prayer.Name, from time.Time, days int) ([]prayer.Prayer, error)
}

// Texts renders notification titles and bodies.
type Texts interface {
	prayer.Localizer
	Format(key string, args ...string) string
}

// Defaults.
const (
	DefaultHorizonDays = 7
	DefaultStaleAfter  = 20 * time.Hour
)

// Options tunes the scheduler.
type Options struct {
	HorizonDays int
	StaleAfter  time.Duration
	TimeFormat  string
}

// Scheduler reconciles preferences against the OS notification primitive.
// Every reconciliation runs under one lock; a concurrent call waits.
type Scheduler struct {
	kv       store.KV
	prefs    *Preferences
	records  records
	occ      OccurrenceSource
	notifier Notifier
	clock    timeutil.Clock
	texts    Texts
	opts     Options

	mu sync.Mutex
}

// NewScheduler returns a Scheduler. texts may be nil.
func NewScheduler(kv store.KV, occ OccurrenceSource, notifier Notifier, clock timeutil.Clock, texts Texts, opts Options) *Scheduler {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = DefaultHorizonDays
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04"
	}
	return &Scheduler{
		kv:       kv,
		prefs:    NewPreferences(kv),
		records:  records{kv: kv},
		occ:      occ,
		notifier: notifier,
		clock:    clock,
		texts:    texts,
		opts:     opts,
	}
}

// Preferences returns the preference store.
func (s *Scheduler) Preferences() *Preferences { return s.prefs }

// UpdatePreference stores pref and reconciles the prayer with it.
func (s *Scheduler) UpdatePreference(ctx context.Context, kind prayer.Kind, index int, pref Preference) error {
	if err := s.prefs.Set(ctx, kind, index, pref); err != nil {
		return err
	}
	return s.Reconcile(ctx, kind, index, pref)
}

// Reconcile brings the scheduled notifications of one prayer in line with
// pref. Running it twice with unchanged inputs changes nothing.
func (s *Scheduler) Reconcile(ctx context.Context, kind prayer.Kind, index int, pref Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pendingSet(ctx)
	if err == nil {
		err = s.reconcile(ctx, kind, index, pref, pending)
	}
	return s.decide(err, kind, index)
}

// decide logs a reconcile failure and drops permission errors.
func (s *Scheduler) decide(err error, kind prayer.Kind, index int) error {
	if err == nil {
		return nil
	}
	logger := log.With().Str("kind", kind.String()).Int("index", index).Logger()
	if errors.Is(err, ErrPermissionDenied) {
		logger.Warn().Err(err).Msg("notifications not permitted, preference kept inactive")
		return nil
	}
	logger.Error().Err(err).Msg("reconcile failed")
	return err
}

func (s *Scheduler) pendingSet(ctx context.Context) (map[string]bool, error) {
	ids, err := s.notifier.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (s *Scheduler) reconcile(ctx context.Context, kind prayer.Kind, index int, pref Preference, pending map[string]bool) error {
	name, err := prayer.NameAt(kind, index)
	if err != nil {
		return err
	}
	if err := pref.Validate(); err != nil {
		return err
	}

	all, err := s.records.list(ctx)
	if err != nil {
		return err
	}
	var existing []Record
	for _, r := range all {
		if r.Kind == kind && r.PrayerIndex == index {
			existing = append(existing, r)
		}
	}

	var desired []Record
	now := s.clock.Now()
	if pref.AtTime != Off {
		occs, err := s.occ.Occurrences(ctx, kind, name, now, s.opts.HorizonDays)
		if err != nil {
			return fmt.Errorf("occurrences of %s: %w", name, err)
		}
		desired = s.desired(kind, index, pref, occs, now)
	}

	want := make(map[string]int, len(desired))
	for i, d := range desired {
		want[d.slot()] = i
	}

	kept := make(map[string]bool, len(existing))
	for _, r := range existing {
		i, ok := want[r.slot()]
		if ok && !kept[r.slot()] && pending[r.NotificationID] {
			kept[r.slot()] = true
			desired[i].ID = r.ID
			continue
		}
		if err := s.cancel(ctx, r, pending); err != nil {
			return err
		}
	}

	for _, d := range desired {
		if kept[d.slot()] {
			continue
		}
		if err := s.schedule(ctx, d, pref); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) desired(kind prayer.Kind, index int, pref Preference, occs []prayer.Prayer, now time.Time) []Record {
	var out []Record
	for _, p := range occs {
		if !p.Datetime.After(now) {
			continue
		}
		out = append(out, Record{
			Kind:          kind,
			PrayerIndex:   index,
			PrayerName:    p.Name,
			BelongsToDate: p.BelongsToDate,
			FireAt:        p.Datetime,
			Alert:         pref.AtTime,
			Channel:       AtTime,
		})
		if pref.Reminder == Off {
			continue
		}
		at := p.Datetime.Add(-time.Duration(pref.ReminderOffsetMinutes) * time.Minute)
		if !at.After(now) {
			continue
		}
		out = append(out, Record{
			Kind:          kind,
			PrayerIndex:   index,
			PrayerName:    p.Name,
			BelongsToDate: p.BelongsToDate,
			FireAt:        at,
			Alert:         pref.Reminder,
			Channel:       Reminder,
		})
	}
	return out
}

func (s *Scheduler) cancel(ctx context.Context, r Record, pending map[string]bool) error {
	if pending[r.NotificationID] {
		if err := s.notifier.Cancel(ctx, r.NotificationID); err != nil {
			return fmt.Errorf("cancel notification %s: %w", r.NotificationID, err)
		}
		delete(pending, r.NotificationID)
	}
	if err := s.records.remove(ctx, r.ID); err != nil {
		return fmt.Errorf("remove record %s: %w", r.ID, err)
	}
	log.Debug().Str("id", r.ID).Str("prayer", string(r.PrayerName)).Str("date", r.BelongsToDate).
		Str("channel", r.Channel.String()).Msg("notification cancelled")
	return nil
}

func (s *Scheduler) schedule(ctx context.Context, r Record, pref Preference) error {
	n := s.notification(r, pref)
	nid, err := s.notifier.Schedule(ctx, n)
	if err != nil {
		return fmt.Errorf("schedule %s %s for %s: %w", r.PrayerName, r.Channel, r.BelongsToDate, err)
	}
	r.ID = uuid.NewString()
	r.NotificationID = nid
	if err := s.records.put(ctx, r); err != nil {
		// Without a record the notification could never be cancelled.
		_ = s.notifier.Cancel(ctx, nid)
		return fmt.Errorf("save record: %w", err)
	}
	log.Debug().Str("id", r.ID).Str("prayer", string(r.PrayerName)).Str("date", r.BelongsToDate).
		Str("channel", r.Channel.String()).Time("fire_at", r.FireAt).Msg("notification scheduled")
	return nil
}

func (s *Scheduler) notification(r Record, pref Preference) Notification {
	n := Notification{
		FireAt:  r.FireAt,
		Sound:   r.Alert == Sound,
		Kind:    r.Kind,
		Prayer:  r.PrayerName,
		Date:    r.BelongsToDate,
		Channel: r.Channel,
	}
	name := string(r.PrayerName)
	if s.texts != nil {
		name = s.texts.DisplayName(r.PrayerName)
	}
	if r.Channel == Reminder {
		mins := pref.ReminderOffsetMinutes
		at := r.FireAt.Add(time.Duration(mins) * time.Minute)
		n.Title = s.text("notify.reminder.title", name, at, mins)
		n.Body = s.text("notify.reminder.body", name, at, mins)
		return n
	}
	n.Title = s.text("notify.at_time.title", name, r.FireAt, 0)
	n.Body = s.text("notify.at_time.body", name, r.FireAt, 0)
	return n
}

func (s *Scheduler) text(key, name string, at time.Time, mins int) string {
	if s.texts == nil {
		if mins > 0 {
			return fmt.Sprintf("%s in %d min", name, mins)
		}
		return name
	}
	return s.texts.Format(key, "name", name, "time", at.Format(s.opts.TimeFormat), "minutes", strconv.Itoa(mins))
}

// ReconcileAll reconciles every prayer of every kind with its stored
// preference. With force every OS-side notification is cancelled first and
// rebuilt from scratch. It records the reconciliation time.
func (s *Scheduler) ReconcileAll(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if force {
		if err := s.wipe(ctx); err != nil {
			log.Error().Err(err).Msg("forced reschedule failed")
			return err
		}
	}

	pending, err := s.pendingSet(ctx)
	if err != nil {
		log.Error().Err(err).Msg("full reconcile failed")
		return err
	}

	var errs []error
	for _, kind := range prayer.Kinds() {
		for index := range prayer.Names(kind) {
			pref, err := s.prefs.Get(ctx, kind, index)
			if err == nil {
				err = s.reconcile(ctx, kind, index, pref, pending)
			}
			if err := s.decide(err, kind, index); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := s.kv.Set(ctx, LastReconcileKey, []byte(s.clock.Now().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("record reconcile time: %w", err)
	}
	log.Info().Bool("force", force).Msg("notifications reconciled")
	return nil
}

func (s *Scheduler) wipe(ctx context.Context) error {
	ids, err := s.notifier.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending notifications: %w", err)
	}
	for _, id := range ids {
		if err := s.notifier.Cancel(ctx, id); err != nil {
			return fmt.Errorf("cancel notification %s: %w", id, err)
		}
	}
	if _, err := store.RemovePrefix(ctx, s.kv, RecordPrefix); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// LastReconcile returns the time of the last full reconciliation.
func (s *Scheduler) LastReconcile(ctx context.Context) (time.Time, bool, error) {
	v, err := s.kv.Get(ctx, LastReconcileKey)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, string(v))
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// ShouldReschedule reports whether the last full reconciliation is older
// than the staleness threshold, or never happened.
func (s *Scheduler) ShouldReschedule(ctx context.Context, now time.Time) (bool, error) {
	last, ok, err := s.LastReconcile(ctx)
	if err != nil {
		return false, err
	}
	return !ok || now.Sub(last) > s.opts.StaleAfter, nil
}

// RescheduleIfStale runs a forced full reconciliation when the last one is
// stale. It reports whether it ran.
func (s *Scheduler) RescheduleIfStale(ctx context.Context) (bool, error) {
	stale, err := s.ShouldReschedule(ctx, s.clock.Now())
	if err != nil || !stale {
		return false, err
	}
	return true, s.ReconcileAll(ctx, true)
}

// Records returns the scheduled notification records sorted by fire time.
func (s *Scheduler) Records(ctx context.Context) ([]Record, error) {
	recs, err := s.records.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].FireAt.Equal(recs[j].FireAt) {
			return recs[i].Channel < recs[j].Channel
		}
		return recs[i].FireAt.Before(recs[j].FireAt)
	})
	return recs, nil
}
