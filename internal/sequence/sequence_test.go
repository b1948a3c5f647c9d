package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/prayertest"
	"github.com/smokyabdulrahman/prayerd/internal/store"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

func newBuilder(t *testing.T, kv store.KV, clock timeutil.Clock) *Builder {
	t.Helper()
	return NewBuilder(store.NewDays(kv), prayertest.Deriver(), clock)
}

func assertOrdered(t *testing.T, seq *Sequence) {
	t.Helper()
	seen := map[string]bool{}
	for i, p := range seq.Prayers {
		if i > 0 {
			assert.True(t, seq.Prayers[i-1].Datetime.Before(p.Datetime),
				"%s (%v) not before %s (%v)", seq.Prayers[i-1].Name, seq.Prayers[i-1].Datetime, p.Name, p.Datetime)
		}
		assert.False(t, seen[p.Key()], "duplicate %s", p.Key())
		seen[p.Key()] = true
		assert.Equal(t, seq.Kind, p.Kind)
	}
}

func assertTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "time = %v, want %v", got, want)
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

func TestBuild_StandardWindow(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-16", 4)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))

	seq, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Standard, "2026-01-18")
	require.NoError(t, err)

	assert.Equal(t, 18, seq.Len())
	assert.Equal(t, []string{"2026-01-17", "2026-01-18", "2026-01-19"}, seq.Dates())
	assertOrdered(t, seq)
}

func TestBuild_ExtraWindow(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-16", 4)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))

	seq, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Extra, "2026-01-18")
	require.NoError(t, err)
	assertOrdered(t, seq)

	// Three days of Suhoor/Duha plus three nights, none on a Friday.
	assert.Equal(t, 12, seq.Len())

	mid, ok := seq.Find(prayer.Midnight, "2026-01-17")
	require.True(t, ok)
	assertTime(t, prayertest.At("2026-01-17", 23, 6), mid.Datetime)

	third, ok := seq.Find(prayer.LastThird, "2026-01-17")
	require.True(t, ok)
	assertTime(t, prayertest.At("2026-01-18", 1, 28), third.Datetime)
}

func TestBuild_WithoutDayBeforeWindow(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-17", 3)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))

	seq, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Extra, "2026-01-18")
	require.NoError(t, err)

	// The night ending on the 17th needs the 16th's Maghrib.
	_, ok := seq.Find(prayer.Midnight, "2026-01-16")
	assert.False(t, ok)
	_, ok = seq.Find(prayer.Midnight, "2026-01-17")
	assert.True(t, ok)
}

func TestBuild_MissingData(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-17", 1)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))

	_, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Standard, "2026-01-18")

	var mde *MissingDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, prayer.Standard, mde.Kind)
	assert.Equal(t, []string{"2026-01-18", "2026-01-19"}, mde.Dates)
}

func TestBuild_MalformedDay(t *testing.T) {
	kv := store.NewMemory()
	days := prayertest.Seed(t, kv, "2026-01-17", 3)
	bad := prayertest.Day("2026-01-18")
	bad.Asr = "1330"
	require.NoError(t, days.PutDays(context.Background(), []prayer.RawDayTimes{bad}))
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))

	_, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Standard, "2026-01-18")

	var dfe *prayer.DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, "asr", dfe.Field)
}

func TestBuildWindow_FridayCardinality(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-10", 16)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-10", 10, 0))

	seq, err := newBuilder(t, kv, clock).BuildWindow(context.Background(), prayer.Extra, "2026-01-11", 14)
	require.NoError(t, err)
	assertOrdered(t, seq)

	// Groups whose whole night is inside the window: the 11th through the 23rd.
	for _, date := range seq.Dates() {
		if date < "2026-01-11" || date > "2026-01-23" {
			continue
		}
		want := 4
		if timeutil.IsFridayKey(date) {
			want = 5
		}
		assert.Len(t, seq.Group(date), want, "group %s", date)
	}
}

func TestBuildWindow_SkipsMissingDays(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-18", 2)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))
	b := newBuilder(t, kv, clock)

	seq, err := b.BuildWindow(context.Background(), prayer.Standard, "2026-01-17", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-18", "2026-01-19"}, seq.Dates())

	_, err = b.BuildWindow(context.Background(), prayer.Standard, "2026-02-01", 3)
	var mde *MissingDataError
	assert.ErrorAs(t, err, &mde)
}

// ---------------------------------------------------------------------------
// Sequence queries
// ---------------------------------------------------------------------------

func TestSequence_NextPrevDisplay(t *testing.T) {
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-16", 4)
	clock := timeutil.NewFakeClock(prayertest.At("2026-01-18", 10, 0))
	seq, err := newBuilder(t, kv, clock).Build(context.Background(), prayer.Standard, "2026-01-18")
	require.NoError(t, err)

	tests := []struct {
		name    string
		now     time.Time
		next    prayer.Name
		prev    prayer.Name
		display string
	}{
		{"morning", prayertest.At("2026-01-18", 10, 0), prayer.Dhuhr, prayer.Sunrise, "2026-01-18"},
		{"exactly at dhuhr", prayertest.At("2026-01-18", 12, 0), prayer.Asr, prayer.Dhuhr, "2026-01-18"},
		{"after isha", prayertest.At("2026-01-18", 20, 0), prayer.Fajr, prayer.Isha, "2026-01-19"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := seq.Next(tt.now)
			require.True(t, ok)
			assert.Equal(t, tt.next, next.Name)
			prev, ok := seq.Prev(tt.now)
			require.True(t, ok)
			assert.Equal(t, tt.prev, prev.Name)
			assert.Equal(t, tt.display, seq.DisplayDate(tt.now))
		})
	}

	end := prayertest.At("2026-01-19", 18, 0)
	assert.True(t, seq.Exhausted(end))
	assert.Equal(t, "2026-01-20", seq.DisplayDate(end))

	_, ok := seq.Prev(prayertest.At("2026-01-17", 0, 0))
	assert.False(t, ok)
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	a := prayer.Prayer{Name: prayer.Asr, Kind: prayer.Standard, Datetime: prayertest.At("2026-01-18", 13, 30), BelongsToDate: "2026-01-18"}
	f := prayer.Prayer{Name: prayer.Fajr, Kind: prayer.Standard, Datetime: prayertest.At("2026-01-18", 6, 12), BelongsToDate: "2026-01-18"}
	d := prayer.Prayer{Name: prayer.Duha, Kind: prayer.Extra, Datetime: prayertest.At("2026-01-18", 8, 5), BelongsToDate: "2026-01-18"}

	seq := New(prayer.Standard, "2026-01-18", []prayer.Prayer{a, f, a, d}, time.Time{})
	require.Equal(t, 2, seq.Len())
	assert.Equal(t, prayer.Fajr, seq.Prayers[0].Name)
	assert.Equal(t, prayer.Asr, seq.Prayers[1].Name)
}

func TestNilSequence(t *testing.T) {
	var seq *Sequence
	_, ok := seq.Next(time.Now())
	assert.False(t, ok)
	assert.True(t, seq.Exhausted(time.Now()))
	assert.Equal(t, "", seq.DisplayDate(time.Now()))
	assert.Zero(t, seq.Len())
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

func newManager(t *testing.T, kv store.KV, now time.Time) (*Manager, *timeutil.FakeClock) {
	t.Helper()
	clock := timeutil.NewFakeClock(now)
	return NewManager(newBuilder(t, kv, clock), clock, kv), clock
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-16", 4)
	m, _ := newManager(t, kv, prayertest.At("2026-01-18", 10, 0))

	assert.Nil(t, m.Current(prayer.Standard))

	seq, err := m.Refresh(ctx, prayer.Standard)
	require.NoError(t, err)
	assert.Same(t, seq, m.Current(prayer.Standard))
	assert.Equal(t, "2026-01-18", seq.Center)

	next, ok := m.NextPrayer(prayer.Standard)
	require.True(t, ok)
	assert.Equal(t, prayer.Dhuhr, next.Name)
	prev, ok := m.PrevPrayer(prayer.Standard)
	require.True(t, ok)
	assert.Equal(t, prayer.Sunrise, prev.Name)

	saved, err := m.SavedDisplayDate(ctx, prayer.Standard)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-18", saved)
	assert.Equal(t, "2026-01-18", m.DisplayDate(prayer.Standard))
}

func TestManager_RefreshRecoversMultiDayGap(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-10", 20)
	m, clock := newManager(t, kv, prayertest.At("2026-01-13", 9, 0))

	_, err := m.Refresh(ctx, prayer.Standard)
	require.NoError(t, err)

	clock.Advance(5 * 24 * time.Hour)
	seq, err := m.Refresh(ctx, prayer.Standard)
	require.NoError(t, err)

	assert.Equal(t, "2026-01-18", seq.Center)
	next, ok := m.NextPrayer(prayer.Standard)
	require.True(t, ok)
	assertTime(t, prayertest.At("2026-01-18", 12, 0), next.Datetime)
}

func TestManager_RefreshKeepsLastGoodOnMissingData(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-16", 4)
	m, clock := newManager(t, kv, prayertest.At("2026-01-18", 10, 0))

	good, err := m.Refresh(ctx, prayer.Standard)
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = m.Refresh(ctx, prayer.Standard)

	var mde *MissingDataError
	require.ErrorAs(t, err, &mde)
	assert.False(t, errors.Is(err, ErrExhausted))
	assert.Same(t, good, m.Current(prayer.Standard))
}

func TestManager_NextOccurrenceFallsForwardToFriday(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-15", 12)
	// Saturday: last Friday's Istijaba has passed and next Friday is outside
	// the three-day window.
	now := prayertest.At("2026-01-17", 10, 0)
	m, _ := newManager(t, kv, now)
	_, err := m.Refresh(ctx, prayer.Extra)
	require.NoError(t, err)

	_, ok := m.Current(prayer.Extra).NextOf(prayer.Istijaba, now)
	require.False(t, ok)

	p, err := m.NextOccurrence(ctx, prayer.Extra, prayer.Istijaba, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-23", p.BelongsToDate)
	assertTime(t, prayertest.At("2026-01-23", 15, 0), p.Datetime)
}

func TestManager_Occurrences(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-15", 12)
	now := prayertest.At("2026-01-18", 14, 0)
	m, _ := newManager(t, kv, now)

	got, err := m.Occurrences(ctx, prayer.Standard, prayer.Asr, now, 7)
	require.NoError(t, err)

	// Today's Asr has passed; the next seven are the 19th through the 25th.
	require.Len(t, got, 7)
	assert.Equal(t, "2026-01-19", got[0].BelongsToDate)
	assert.Equal(t, "2026-01-25", got[6].BelongsToDate)
}

func TestManager_OccurrencesMidnightHorizon(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	prayertest.Seed(t, kv, "2026-01-15", 14)
	// Tonight's Midnight (23:06) has just passed.
	now := prayertest.At("2026-01-18", 23, 10)
	m, _ := newManager(t, kv, now)

	got, err := m.Occurrences(ctx, prayer.Extra, prayer.Midnight, now, 7)
	require.NoError(t, err)

	require.Len(t, got, 7)
	assert.Equal(t, "2026-01-19", got[0].BelongsToDate)
	assertTime(t, prayertest.At("2026-01-25", 23, 6), got[6].Datetime)
}
