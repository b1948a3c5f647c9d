package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/display"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/sequence"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// maxListDays bounds list so the window stays within the stored years.
const maxListDays = 366

var flagListKind string

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [days]",
		Short: "Show prayer times for multiple days",
		Long:  "Display a grid of prayer times for N days starting today (default: 7).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, 7)
		},
	}
	cmd.Flags().StringVar(&flagListKind, "kind", "standard", "Schedule: standard or extra")
	return cmd
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show prayer times for the next 7 days",
		Long:  "Alias for 'list 7'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 7)
		},
	}
}

func newMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month",
		Short: "Show prayer times for the next 30 days",
		Long:  "Alias for 'list 30'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 30)
		},
	}
}

// parseDays parses a day count argument; "week" and "month" are accepted.
func parseDays(s string) (int, error) {
	switch strings.ToLower(s) {
	case "week":
		return 7, nil
	case "month":
		return 30, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxListDays {
		return 0, fmt.Errorf("invalid number of days: %q (must be 1-%d)", s, maxListDays)
	}
	return n, nil
}

// runList is the handler for list, week and month.
func runList(cmd *cobra.Command, args []string, defaultDays int) error {
	days := defaultDays
	if len(args) > 0 {
		n, err := parseDays(args[0])
		if err != nil {
			return err
		}
		days = n
	}
	kind := prayer.Standard
	if f := cmd.Flags().Lookup("kind"); f != nil {
		k, err := prayer.ParseKind(f.Value.String())
		if err != nil {
			return err
		}
		kind = k
	}

	cfg := effectiveConfig(cmd)
	s, err := syncedSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	now := s.app.Clock().Now()
	today := timeutil.DateKey(now)
	// One extra day so the last night's prayers can be derived.
	seq, err := s.app.Manager.Builder().BuildWindow(cmd.Context(), kind, today, days+1)
	if err != nil {
		return err
	}
	until, err := timeutil.ShiftDateKey(today, days)
	if err != nil {
		return err
	}
	dates := listRows(seq, today, until)

	if FlagJSON {
		return printListJSON(cmd.OutOrStdout(), seq, dates, goTimeLayout(cfg), now.Location())
	}
	printListTable(cmd.OutOrStdout(), seq, kind, dates, today, goTimeLayout(cfg), now.Location())
	return nil
}

// listRows returns the window's dates in [from, until).
func listRows(seq *sequence.Sequence, from, until string) []string {
	var dates []string
	for _, d := range seq.Dates() {
		if d >= from && d < until {
			dates = append(dates, d)
		}
	}
	return dates
}

func printListTable(w io.Writer, seq *sequence.Sequence, kind prayer.Kind, dates []string, today, layout string, loc *time.Location) {
	names := prayer.Names(kind)
	headers := []string{"Date"}
	for _, n := range names {
		headers = append(headers, string(n))
	}
	tbl := display.NewTable(headers...)

	for i, date := range dates {
		label, _ := formatDisplayDate(date, loc)
		row := []string{label}
		for _, n := range names {
			cell := "-"
			if p, ok := seq.Find(n, date); ok {
				cell = p.Datetime.Format(layout)
			}
			row = append(row, cell)
		}
		tbl.AddRow(row...)
		if date == today {
			tbl.SetHighlightRow(i)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
}

type listJSONDay struct {
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri"`
	Timings map[string]string `json:"timings"`
}

func printListJSON(w io.Writer, seq *sequence.Sequence, dates []string, layout string, loc *time.Location) error {
	out := make([]listJSONDay, 0, len(dates))
	for _, date := range dates {
		_, hijri := formatDisplayDate(date, loc)
		day := listJSONDay{Date: date, Hijri: hijri, Timings: map[string]string{}}
		for _, p := range seq.Group(date) {
			day.Timings[strings.ToLower(string(p.Name))] = p.Datetime.Format(layout)
		}
		out = append(out, day)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
