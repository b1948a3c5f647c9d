package timeutil

import (
	"fmt"
	"time"
)

// FormatRemaining formats a duration as "Xh Ym", or "Ym" under an hour.
// Negative durations render as "0m".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatClock formats whole seconds as "HH:MM:SS". Hours may exceed 24.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// SecondsUntil returns the whole seconds from now until t, rounded up so a
// countdown only reads 0 once t has been reached. It never returns a negative.
func SecondsUntil(t, now time.Time) int64 {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
