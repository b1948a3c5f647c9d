package prayer

import (
	"strings"
	"testing"
	"time"
)

// helper: a fixed prayer and countdown for format tests (2h 15m to Asr).
func formatTestPrayer() (Prayer, int64) {
	pTime := time.Date(2026, 2, 28, 15, 2, 0, 0, time.UTC)
	return Prayer{Name: Asr, Kind: Standard, Datetime: pTime, BelongsToDate: "2026-02-28"}, 8100
}

func TestFormatOutput_AllBuiltinModes(t *testing.T) {
	p, secs := formatTestPrayer()

	tests := []struct {
		mode string
		want string
	}{
		{FormatTimeRemaining, "2h 15m"},
		{FormatNextPrayerTime, "15:02"},
		{FormatNameAndTime, "Asr 15:02"},
		{FormatNameAndRemaining, "Asr 2h 15m"},
		{FormatShortNameAndTime, "A 15:02"},
		{FormatShortNameAndRemain, "A 2h 15m"},
		{FormatCountdown, "Asr 02:15:00"},
		{FormatFull, "Asr 15:02 (2h 15m)"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got := FormatOutput(p, secs, tt.mode, "15:04")
			if got != tt.want {
				t.Errorf("FormatOutput(%q) = %q, want %q", tt.mode, got, tt.want)
			}
		})
	}
}

func TestFormatOutput_12HourFormat(t *testing.T) {
	p, secs := formatTestPrayer()

	got := FormatOutput(p, secs, FormatNameAndTime, "3:04 PM")
	if got != "Asr 3:02 PM" {
		t.Errorf("12h format = %q, want %q", got, "Asr 3:02 PM")
	}
}

func TestFormatOutput_LocalizedName(t *testing.T) {
	p, secs := formatTestPrayer()
	p.DisplayNameLocalized = "العصر"

	got := FormatOutput(p, secs, FormatNameAndTime, "15:04")
	if got != "العصر 15:02" {
		t.Errorf("localized = %q, want %q", got, "العصر 15:02")
	}
	// Short names stay canonical.
	if got := FormatOutput(p, secs, FormatShortNameAndTime, "15:04"); got != "A 15:02" {
		t.Errorf("short = %q, want %q", got, "A 15:02")
	}
}

func TestFormatOutput_UnknownModeDefaultsToNameAndTime(t *testing.T) {
	p, secs := formatTestPrayer()

	got := FormatOutput(p, secs, "nonexistent-format", "15:04")
	if got != "Asr 15:02" {
		t.Errorf("unknown mode = %q, want %q", got, "Asr 15:02")
	}
}

func TestFormatOutput_CustomTemplate(t *testing.T) {
	p, secs := formatTestPrayer()

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{
			"name and remaining",
			"{{.Name}} in {{.Remaining}}",
			"Asr in 2h 15m",
		},
		{
			"short name and time",
			"{{.ShortName}} @ {{.Time}}",
			"A @ 15:02",
		},
		{
			"hours and minutes fields",
			"{{.Hours}}h {{.Minutes}}m until {{.Name}}",
			"2h 15m until Asr",
		},
		{
			"all fields",
			"{{.Name}}|{{.ShortName}}|{{.Kind}}|{{.Date}}|{{.Time}}|{{.Remaining}}|{{.Countdown}}|{{.Hours}}|{{.Minutes}}|{{.Seconds}}",
			"Asr|A|standard|2026-02-28|15:02|2h 15m|02:15:00|2|15|8100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatOutput(p, secs, tt.tmpl, "15:04")
			if got != tt.want {
				t.Errorf("custom template %q = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestFormatOutput_InvalidTemplate(t *testing.T) {
	p, secs := formatTestPrayer()

	got := FormatOutput(p, secs, "{{.Invalid", "15:04")
	if !strings.HasPrefix(got, "template-err:") {
		t.Errorf("invalid template should return 'template-err:...', got %q", got)
	}
}

func TestFormatOutput_TemplateBadField(t *testing.T) {
	p, secs := formatTestPrayer()

	// Accessing a non-existent field should produce a template execution error.
	got := FormatOutput(p, secs, "{{.NonExistent}}", "15:04")
	if !strings.HasPrefix(got, "template-err:") {
		t.Errorf("bad field template should return 'template-err:...', got %q", got)
	}
}

func TestFormatOutput_LessThanOneHour(t *testing.T) {
	p := Prayer{Name: Dhuhr, Datetime: time.Date(2026, 2, 28, 13, 30, 0, 0, time.UTC)}

	got := FormatOutput(p, 25*60, FormatTimeRemaining, "15:04")
	if got != "25m" {
		t.Errorf("time-remaining < 1h = %q, want %q", got, "25m")
	}
}

func TestFormatOutput_ZeroRemaining(t *testing.T) {
	p := Prayer{Name: Asr, Datetime: time.Date(2026, 2, 28, 15, 2, 0, 0, time.UTC)}

	for _, secs := range []int64{0, -5} {
		if got := FormatOutput(p, secs, FormatTimeRemaining, "15:04"); got != "0m" {
			t.Errorf("remaining(%d) = %q, want %q", secs, got, "0m")
		}
		if got := FormatOutput(p, secs, FormatCountdown, "15:04"); got != "Asr 00:00:00" {
			t.Errorf("countdown(%d) = %q, want %q", secs, got, "Asr 00:00:00")
		}
	}
}
