package display

import (
	"strings"
	"testing"
)

func TestTable_EmptyHeaders(t *testing.T) {
	if got := NewTable().Render(); got != "" {
		t.Errorf("Render() with no headers = %q, want empty", got)
	}
}

func TestTable_BasicRender(t *testing.T) {
	SetEnabled(false)

	tbl := NewTable("Date", "Fajr", "Isha")
	tbl.AddRow("2026-03-01", "05:06", "19:28")
	tbl.AddRow("2026-03-02", "05:05", "19:29")

	got := tbl.Render()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "  Date        Fajr   Isha " {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "──────────") {
		t.Errorf("separator = %q", lines[1])
	}
	if lines[3] != "  2026-03-02  05:05  19:29" {
		t.Errorf("row = %q", lines[3])
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

func TestTable_AlignsLocalizedNames(t *testing.T) {
	SetEnabled(false)

	tbl := NewTable("Prayer", "Time")
	tbl.AddRow("الفجر", "05:06")
	tbl.AddRow("Maghrib", "17:39")

	lines := strings.Split(tbl.Render(), "\n")
	// Both time cells start in the same rune column.
	a := []rune(lines[2])
	b := []rune(lines[3])
	if string(a[11:]) != "05:06" || string(b[11:]) != "17:39" {
		t.Errorf("misaligned rows:\n%q\n%q", lines[2], lines[3])
	}
}

func TestTable_HighlightAndDim(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	tbl := NewTable("Prayer", "Time")
	tbl.AddRow("Fajr", "05:00")
	tbl.AddRow("Dhuhr", "12:00")
	tbl.AddRow("Asr", "15:00")
	tbl.DimRow(0)
	tbl.SetHighlightRow(1)

	lines := strings.Split(tbl.Render(), "\n")
	if !strings.Contains(lines[2], dim) {
		t.Errorf("passed row should be dim: %q", lines[2])
	}
	if !strings.Contains(lines[3], bold+cyan) {
		t.Errorf("next row should be accented: %q", lines[3])
	}
	if strings.Contains(lines[4], "\033[") {
		t.Errorf("plain row should not be styled: %q", lines[4])
	}
}

func TestFormatRow_MissingCells(t *testing.T) {
	if got, want := formatRow([]string{"a"}, []int{3, 5}), "a         "; got != want {
		t.Errorf("formatRow = %q, want %q", got, want)
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"Fajr", 7, "Fajr   "},
		{"Maghrib", 7, "Maghrib"},
		{"Isha", 2, "Isha"},
		{"العصر", 7, "العصر  "},
	}
	for _, tt := range tests {
		if got := Pad(tt.s, tt.width); got != tt.want {
			t.Errorf("Pad(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
