package prayer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Format constants for display modes.
const (
	FormatTimeRemaining      = "time-remaining"
	FormatNextPrayerTime     = "next-prayer-time"
	FormatNameAndTime        = "name-and-time"
	FormatNameAndRemaining   = "name-and-remaining"
	FormatShortNameAndTime   = "short-name-and-time"
	FormatShortNameAndRemain = "short-name-and-remaining"
	FormatCountdown          = "countdown"
	FormatFull               = "full"
)

// FormatModes lists the built-in display modes.
var FormatModes = []string{
	FormatTimeRemaining,
	FormatNextPrayerTime,
	FormatNameAndTime,
	FormatNameAndRemaining,
	FormatShortNameAndTime,
	FormatShortNameAndRemain,
	FormatCountdown,
	FormatFull,
}

// FormatData is the data passed to custom Go templates.
type FormatData struct {
	Name      string // Display name, e.g. "Asr" or "العصر"
	ShortName string // Abbreviated name, e.g. "A"
	Kind      string // "standard" or "extra"
	Date      string // Date the prayer belongs to, e.g. "2026-01-18"
	Time      string // Formatted prayer time, e.g. "15:02" or "3:02 PM"
	Remaining string // Time remaining, e.g. "2h 15m"
	Countdown string // Time remaining as "HH:MM:SS"
	Hours     int    // Whole hours remaining
	Minutes   int    // Remaining minutes after hours
	Seconds   int64  // Total seconds remaining
}

// DisplayName returns the localized name, falling back to the canonical one.
func (p Prayer) DisplayName() string {
	if p.DisplayNameLocalized != "" {
		return p.DisplayNameLocalized
	}
	return string(p.Name)
}

// FormatOutput formats a countdown to p according to the chosen mode.
// seconds is the countdown value; timeFormat should be "15:04" for 24h or
// "3:04 PM" for 12h.
//
// If mode contains "{{", it is treated as a custom Go template string.
// Available template fields: .Name, .ShortName, .Kind, .Date, .Time,
// .Remaining, .Countdown, .Hours, .Minutes, .Seconds
//
// Example: "{{.Name}} in {{.Remaining}}" -> "Asr in 2h 15m"
func FormatOutput(p Prayer, seconds int64, mode string, timeFormat string) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	remaining := timeutil.FormatRemaining(d)
	countdown := timeutil.FormatClock(seconds)
	timeStr := p.Datetime.Format(timeFormat)
	name := p.DisplayName()
	short := ShortNames[p.Name]

	// Custom template mode: any format string containing "{{" is a Go template.
	if strings.Contains(mode, "{{") {
		return formatCustom(mode, FormatData{
			Name:      name,
			ShortName: short,
			Kind:      p.Kind.String(),
			Date:      p.BelongsToDate,
			Time:      timeStr,
			Remaining: remaining,
			Countdown: countdown,
			Hours:     int(d.Hours()),
			Minutes:   int(d.Minutes()) % 60,
			Seconds:   seconds,
		})
	}

	switch mode {
	case FormatTimeRemaining:
		return remaining
	case FormatNextPrayerTime:
		return timeStr
	case FormatNameAndTime:
		return fmt.Sprintf("%s %s", name, timeStr)
	case FormatNameAndRemaining:
		return fmt.Sprintf("%s %s", name, remaining)
	case FormatShortNameAndTime:
		return fmt.Sprintf("%s %s", short, timeStr)
	case FormatShortNameAndRemain:
		return fmt.Sprintf("%s %s", short, remaining)
	case FormatCountdown:
		return fmt.Sprintf("%s %s", name, countdown)
	case FormatFull:
		return fmt.Sprintf("%s %s (%s)", name, timeStr, remaining)
	default:
		// Default to name-and-time.
		return fmt.Sprintf("%s %s", name, timeStr)
	}
}

// formatCustom executes a user-provided Go template string against the FormatData.
func formatCustom(tmpl string, data FormatData) string {
	t, err := template.New("custom").Parse(tmpl)
	if err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	return buf.String()
}
