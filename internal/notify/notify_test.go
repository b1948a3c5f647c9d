package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/smokyabdulrahman/prayerd/internal/i18n"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/prayertest"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

type fakeNotifier struct {
	mu        sync.Mutex
	seq       int
	pending   map[string]Notification
	scheduled int
	cancelled int
	denied    bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{pending: make(map[string]Notification)}
}

func (f *fakeNotifier) Schedule(_ context.Context, n Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return "", ErrPermissionDenied
	}
	f.seq++
	id := fmt.Sprintf("os-%d", f.seq)
	f.pending[id] = n
	f.scheduled++
	return id, nil
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, id)
	f.cancelled++
	return nil
}

func (f *fakeNotifier) Pending(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeNotifier) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, id)
}

func (f *fakeNotifier) counts() (pending, scheduled, cancelled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), f.scheduled, f.cancelled
}

type fixture struct {
	kv       *store.Memory
	clock    *timeutil.FakeClock
	notifier *fakeNotifier
	sched    *Scheduler
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-10", 30)
	clock := timeutil.NewFakeClock(now)
	mgr := sequence.NewManager(sequence.NewBuilder(store.NewDays(kv), prayertest.Deriver(), clock), clock, kv)
	n := newFakeNotifier()
	s := NewScheduler(kv, mgr, n, clock, i18n.Default().For("en"), Options{})
	return &fixture{kv: kv, clock: clock, notifier: n, sched: s}
}

var asr = prayer.Index(prayer.Standard, prayer.Asr)

func byChannel(recs []Record, c Channel) []Record {
	var out []Record
	for _, r := range recs {
		if r.Channel == c {
			out = append(out, r)
		}
	}
	return out
}

func ids(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

func TestReconcile_AsrSoundWithSilentReminder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	pref := Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 10}

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))

	recs, err := f.sched.Records(ctx)
	require.NoError(t, err)
	atTime := byChannel(recs, AtTime)
	reminders := byChannel(recs, Reminder)
	require.Len(t, atTime, 7)
	require.Len(t, reminders, 7)

	for i, r := range atTime {
		date, _ := timeutil.ShiftDateKey("2026-01-18", i)
		assert.Equal(t, date, r.BelongsToDate)
		assert.True(t, r.FireAt.Equal(prayertest.At(date, 13, 30)), "at-time %v", r.FireAt)
		assert.Equal(t, Sound, r.Alert)
		assert.Equal(t, prayer.Asr, r.PrayerName)

		rem := reminders[i]
		assert.Equal(t, date, rem.BelongsToDate)
		assert.True(t, rem.FireAt.Equal(prayertest.At(date, 13, 20)), "reminder %v", rem.FireAt)
		assert.Equal(t, Silent, rem.Alert)
	}

	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 14, pending)

	n := f.notifier.pending[reminders[0].NotificationID]
	assert.False(t, n.Sound)
	assert.Equal(t, "Asr in 10 min", n.Title)
	assert.Equal(t, "Asr begins at 13:30", n.Body)
	assert.True(t, f.notifier.pending[atTime[0].NotificationID].Sound)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	pref := Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 10}

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
	before, _ := f.sched.Records(ctx)
	pending, scheduled, cancelled := f.notifier.counts()

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
	after, _ := f.sched.Records(ctx)
	p2, s2, c2 := f.notifier.counts()

	assert.Equal(t, ids(before), ids(after))
	assert.Equal(t, pending, p2)
	assert.Equal(t, scheduled, s2)
	assert.Equal(t, cancelled, c2)
}

func TestReconcile_ReminderOffLeavesAtTimeAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 10}))
	recs, _ := f.sched.Records(ctx)
	atTime := ids(byChannel(recs, AtTime))

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Sound, Reminder: Off, ReminderOffsetMinutes: 10}))
	recs, _ = f.sched.Records(ctx)

	assert.Equal(t, atTime, ids(byChannel(recs, AtTime)))
	assert.Empty(t, byChannel(recs, Reminder))
	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 7, pending)
}

func TestReconcile_OffCancelsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Silent, Reminder: Sound, ReminderOffsetMinutes: 15}))
	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Off, Reminder: Sound, ReminderOffsetMinutes: 15}))

	recs, _ := f.sched.Records(ctx)
	assert.Empty(t, recs)
	pending, _, _ := f.notifier.counts()
	assert.Zero(t, pending)
}

func TestReconcile_AlertChangeReplacesRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Sound}))
	before, _ := f.sched.Records(ctx)
	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, Preference{AtTime: Silent}))
	after, _ := f.sched.Records(ctx)

	require.Len(t, after, 7)
	for _, r := range after {
		assert.Equal(t, Silent, r.Alert)
	}
	assert.NotEqual(t, ids(before), ids(after))
	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 7, pending)
}

func TestReconcile_RollsHorizonForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	pref := Preference{AtTime: Sound}

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))

	recs, _ := f.sched.Records(ctx)
	require.Len(t, recs, 7)
	assert.Equal(t, "2026-01-19", recs[0].BelongsToDate)
	assert.Equal(t, "2026-01-25", recs[6].BelongsToDate)
	_, scheduled, cancelled := f.notifier.counts()
	assert.Equal(t, 8, scheduled)
	assert.Equal(t, 1, cancelled)
}

func TestReconcile_ReschedulesWhatTheOSLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	pref := Preference{AtTime: Sound}

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
	recs, _ := f.sched.Records(ctx)
	f.notifier.drop(recs[2].NotificationID)

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
	after, _ := f.sched.Records(ctx)
	require.Len(t, after, 7)
	assert.NotEqual(t, recs[2].ID, after[2].ID)
	assert.Equal(t, recs[3].ID, after[3].ID)
	pending, scheduled, _ := f.notifier.counts()
	assert.Equal(t, 7, pending)
	assert.Equal(t, 8, scheduled)
}

func TestReconcile_PermissionDeniedIsRecoverable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	f.notifier.denied = true

	require.NoError(t, f.sched.UpdatePreference(ctx, prayer.Standard, asr, Preference{AtTime: Sound}))

	recs, _ := f.sched.Records(ctx)
	assert.Empty(t, recs)
	// The preference is kept as requested.
	pref, err := f.sched.Preferences().Get(ctx, prayer.Standard, asr)
	require.NoError(t, err)
	assert.Equal(t, Sound, pref.AtTime)
}

func TestReconcile_ConcurrentCallsSerialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	pref := Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 10}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.sched.Reconcile(ctx, prayer.Standard, asr, pref))
		}()
	}
	wg.Wait()

	recs, _ := f.sched.Records(ctx)
	assert.Len(t, recs, 14)
	pending, scheduled, _ := f.notifier.counts()
	assert.Equal(t, 14, pending)
	assert.Equal(t, 14, scheduled)
}

func TestReconcile_FridayOnlyPrayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-17", 10, 0))
	idx := prayer.Index(prayer.Extra, prayer.Istijaba)

	require.NoError(t, f.sched.Reconcile(ctx, prayer.Extra, idx, Preference{AtTime: Sound}))

	recs, _ := f.sched.Records(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, "2026-01-23", recs[0].BelongsToDate)
}

func TestReconcile_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))

	assert.Error(t, f.sched.Reconcile(ctx, prayer.Extra, 7, Preference{AtTime: Sound}))
	assert.Error(t, f.sched.UpdatePreference(ctx, prayer.Standard, asr,
		Preference{AtTime: Sound, Reminder: Sound, ReminderOffsetMinutes: 3}))
}

// ---------------------------------------------------------------------------
// Full reconcile and staleness
// ---------------------------------------------------------------------------

func TestReconcileAll_ForceWipesAndRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))

	require.NoError(t, f.sched.Preferences().Set(ctx, prayer.Standard, asr, Preference{AtTime: Sound}))
	require.NoError(t, f.sched.Preferences().Set(ctx, prayer.Extra, prayer.Index(prayer.Extra, prayer.Duha), Preference{AtTime: Silent}))
	// A notification the scheduler does not know about.
	_, err := f.notifier.Schedule(ctx, Notification{Title: "stray"})
	require.NoError(t, err)

	stale, err := f.sched.ShouldReschedule(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.True(t, stale, "never reconciled")

	ran, err := f.sched.RescheduleIfStale(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	recs, _ := f.sched.Records(ctx)
	assert.Len(t, recs, 14)
	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 14, pending)

	stale, _ = f.sched.ShouldReschedule(ctx, f.clock.Now().Add(19*time.Hour))
	assert.False(t, stale)
	stale, _ = f.sched.ShouldReschedule(ctx, f.clock.Now().Add(21*time.Hour))
	assert.True(t, stale)

	ran, err = f.sched.RescheduleIfStale(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestReconcileAll_WithoutForceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, prayertest.At("2026-01-18", 10, 0))
	require.NoError(t, f.sched.Preferences().Set(ctx, prayer.Standard, asr, Preference{AtTime: Sound}))

	require.NoError(t, f.sched.ReconcileAll(ctx, false))
	_, scheduled, _ := f.notifier.counts()
	require.NoError(t, f.sched.ReconcileAll(ctx, false))
	_, s2, c2 := f.notifier.counts()

	assert.Equal(t, scheduled, s2)
	assert.Zero(t, c2)
	last, ok, err := f.sched.LastReconcile(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(f.clock.Now().Truncate(time.Second)))
}

func TestPreferences_Stored(t *testing.T) {
	ctx := context.Background()
	p := NewPreferences(store.NewMemory())

	got, err := p.Get(ctx, prayer.Standard, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreference(), got)

	want := Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 30}
	require.NoError(t, p.Set(ctx, prayer.Extra, 4, want))

	stored, err := p.Stored(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[PrayerRef]Preference{{Kind: prayer.Extra, Index: 4}: want}, stored)

	_, err = p.Get(ctx, prayer.Standard, 6)
	assert.Error(t, err)
}

func TestPreference_JSON(t *testing.T) {
	b, err := json.Marshal(Preference{AtTime: Sound, Reminder: Silent, ReminderOffsetMinutes: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at_time":"sound","reminder":"silent","reminder_offset_minutes":10}`, string(b))

	var p Preference
	assert.Error(t, json.Unmarshal([]byte(`{"at_time":"loud"}`), &p))
}

// ---------------------------------------------------------------------------
// LocalNotifier and sinks
// ---------------------------------------------------------------------------

type captureSink struct {
	mu  sync.Mutex
	got []Delivery
	err error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Deliver(_ context.Context, d Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, d)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestLocalNotifier_FiresAndCancels(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	clock := timeutil.SystemClock{Location: time.UTC}
	l := NewLocalNotifier(clock, sink, &captureSink{err: errors.New("down")})
	defer l.Close()

	fire, err := l.Schedule(ctx, Notification{Title: "Asr", FireAt: time.Now().Add(20 * time.Millisecond), Sound: true})
	require.NoError(t, err)
	keep, err := l.Schedule(ctx, Notification{Title: "Isha", FireAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	gone, err := l.Schedule(ctx, Notification{Title: "Maghrib", FireAt: time.Now().Add(30 * time.Millisecond)})
	require.NoError(t, err)
	require.NoError(t, l.Cancel(ctx, gone))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	sink.mu.Lock()
	require.Len(t, sink.got, 1)
	assert.Equal(t, fire, sink.got[0].ID)
	assert.True(t, sink.got[0].Sound)
	sink.mu.Unlock()

	pending, err := l.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, pending)
	assert.Equal(t, 1, l.Delivered())

	_, err = l.Schedule(ctx, Notification{FireAt: time.Now().Add(-time.Minute)})
	assert.Error(t, err)
}

func TestLocalNotifier_NoSinksIsDenied(t *testing.T) {
	l := NewLocalNotifier(timeutil.SystemClock{Location: time.UTC})
	_, err := l.Schedule(context.Background(), Notification{FireAt: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	l = NewLocalNotifier(timeutil.SystemClock{Location: time.UTC}, LogSink{})
	l.SetPermitted(false)
	_, err = l.Schedule(context.Background(), Notification{FireAt: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{err: err, done: ch}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.qos = qos
	p.payload = payload.([]byte)
	return newFakeToken(p.err)
}

func TestMQTTSink_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, "home/prayer/", 1)

	d := Delivery{ID: "n1", Notification: Notification{Title: "Asr", Kind: prayer.Standard, Prayer: prayer.Asr, Sound: true, Date: "2026-01-18"}}
	require.NoError(t, s.Deliver(context.Background(), d))

	assert.Equal(t, "home/prayer/standard/asr", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, true, got["sound"])
	assert.Equal(t, "n1", got["id"])
	assert.Equal(t, "standard", got["kind"])

	pub.err = errors.New("broker gone")
	assert.Error(t, s.Deliver(context.Background(), d))
}

type fakeSender struct {
	to   tele.Recipient
	text string
	opts *tele.SendOptions
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.to = to
	f.text = what.(string)
	if len(opts) > 0 {
		f.opts = opts[0].(*tele.SendOptions)
	}
	return &tele.Message{}, nil
}

func TestTelegramSink_Deliver(t *testing.T) {
	fs := &fakeSender{}
	s := &TelegramSink{bot: fs, chat: tele.ChatID(42)}

	require.NoError(t, s.Deliver(context.Background(), Delivery{Notification: Notification{Title: "Asr in 10 min", Body: "Asr begins at 13:30"}}))
	assert.Equal(t, "42", fs.to.Recipient())
	assert.Equal(t, "Asr in 10 min\nAsr begins at 13:30", fs.text)
	assert.True(t, fs.opts.DisableNotification, "silent alert")

	require.NoError(t, s.Deliver(context.Background(), Delivery{Notification: Notification{Title: "Asr", Body: "Asr", Sound: true}}))
	assert.Equal(t, "Asr", fs.text)
	assert.False(t, fs.opts.DisableNotification)
}
