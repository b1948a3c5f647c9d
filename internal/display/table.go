package display

import (
	"strings"
	"unicode/utf8"
)

// Table renders an aligned text table. Widths count runes, so localized
// prayer names line up with Latin ones.
type Table struct {
	headers   []string
	rows      [][]string
	highlight int
	dimmed    map[int]bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, highlight: -1, dimmed: map[int]bool{}}
}

// AddRow appends a row. Missing trailing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// SetHighlightRow accents row idx (0-based); -1 clears it.
func (t *Table) SetHighlightRow(idx int) {
	t.highlight = idx
}

// DimRow renders row idx faint, e.g. a prayer that has passed.
func (t *Table) DimRow(idx int) {
	t.dimmed[idx] = true
}

// Render returns the table with a two-space indent on every line.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && Width(cell) > widths[i] {
				widths[i] = Width(cell)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("  " + Bold(formatRow(t.headers, widths)) + "\n")

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	sb.WriteString(Dim("  "+strings.Join(sep, "  ")) + "\n")

	for i, row := range t.rows {
		line := formatRow(row, widths)
		switch {
		case i == t.highlight:
			line = Accent(line)
		case t.dimmed[i]:
			line = Dim(line)
		}
		sb.WriteString("  " + line + "\n")
	}
	return sb.String()
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = Pad(cell, w)
	}
	return strings.Join(parts, "  ")
}

// Width is the number of runes in s.
func Width(s string) int {
	return utf8.RuneCountInString(s)
}

// Pad right-pads s with spaces to width runes.
func Pad(s string, width int) string {
	n := Width(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
