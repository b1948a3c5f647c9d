package timeutil

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

func TestDateKey(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 23:30 UTC on the 17th is already the 18th in UTC+3.
	ts := time.Date(2026, 1, 17, 23, 30, 0, 0, time.UTC).In(loc)
	if got := DateKey(ts); got != "2026-01-18" {
		t.Errorf("DateKey() = %q, want %q", got, "2026-01-18")
	}
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	got, err := ParseDate("2026-03-29", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 0 || got.Day() != 29 || got.Location() != loc {
		t.Errorf("ParseDate() = %v, want local midnight on the 29th", got)
	}

	if _, err := ParseDate("29-03-2026", loc); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestAddDays_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go forward on 2026-03-29.
	start := time.Date(2026, 3, 28, 12, 0, 0, 0, loc)
	got := AddDays(start, 1)
	if got.Hour() != 12 || got.Day() != 29 {
		t.Errorf("AddDays() = %v, want 12:00 on the 29th", got)
	}
}

func TestShiftDateKey(t *testing.T) {
	tests := []struct {
		key  string
		n    int
		want string
	}{
		{"2026-01-18", -1, "2026-01-17"},
		{"2026-12-31", 1, "2027-01-01"},
		{"2028-02-28", 1, "2028-02-29"},
	}
	for _, tt := range tests {
		got, err := ShiftDateKey(tt.key, tt.n)
		if err != nil {
			t.Fatalf("ShiftDateKey(%q, %d) error: %v", tt.key, tt.n, err)
		}
		if got != tt.want {
			t.Errorf("ShiftDateKey(%q, %d) = %q, want %q", tt.key, tt.n, got, tt.want)
		}
	}
	if _, err := ShiftDateKey("bad", 1); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestClassification(t *testing.T) {
	fri := time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)
	sat := time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
	if !IsFriday(fri) || IsFriday(sat) {
		t.Error("IsFriday misclassified 2026-01-16/17")
	}
	if !IsFridayKey("2026-01-23") || IsFridayKey("2026-01-24") || IsFridayKey("junk") {
		t.Error("IsFridayKey misclassified")
	}
	if !IsDecember(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) || IsDecember(sat) {
		t.Error("IsDecember misclassified")
	}
}

// ---------------------------------------------------------------------------
// Hijri
// ---------------------------------------------------------------------------

func TestHijri(t *testing.T) {
	tests := []struct {
		date time.Time
		want HijriDate
	}{
		{time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), HijriDate{1447, 9, 16}},
		{time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), HijriDate{1447, 10, 27}},
		{time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), HijriDate{1447, 7, 29}},
		{time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), HijriDate{1446, 9, 15}},
	}
	for _, tt := range tests {
		got := Hijri(tt.date)
		if got != tt.want {
			t.Errorf("Hijri(%s) = %+v, want %+v", DateKey(tt.date), got, tt.want)
		}
	}
}

func TestIsRamadan(t *testing.T) {
	if !IsRamadan(time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)) {
		t.Error("2026-03-05 should be in Ramadan")
	}
	if IsRamadan(time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("2026-04-15 should not be in Ramadan")
	}
}

func TestHijriDate_Format(t *testing.T) {
	h := HijriDate{Year: 1447, Month: 9, Day: 16}
	if got := h.Format(); got != "16 Ramadan 1447 AH" {
		t.Errorf("Format() = %q", got)
	}
	if got := (HijriDate{}).Format(); got != "" {
		t.Errorf("zero Format() = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{45 * time.Minute, "45m"},
		{30 * time.Second, "0m"},
		{-5 * time.Minute, "0m"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.d); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{90000, "25:00:00"},
		{-4, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.secs); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestSecondsUntil(t *testing.T) {
	now := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		target time.Time
		want   int64
	}{
		{now.Add(90 * time.Second), 90},
		{now.Add(1500 * time.Millisecond), 2},
		{now.Add(time.Millisecond), 1},
		{now, 0},
		{now.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		if got := SecondsUntil(tt.target, now); got != tt.want {
			t.Errorf("SecondsUntil(%v) = %d, want %d", tt.target.Sub(now), got, tt.want)
		}
	}
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(time.Hour)
	if !c.Now().Equal(start.Add(time.Hour)) {
		t.Errorf("Advance: Now() = %v", c.Now())
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("Set: Now() = %v", c.Now())
	}
}
