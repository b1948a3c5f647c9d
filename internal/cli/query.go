package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/display"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

var flagQueryDays string

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <prayer>",
		Short: "Query upcoming occurrences of one prayer",
		Long: "Show the next occurrence of a prayer, or every occurrence within --days.\n\nValid prayer names: " +
			allNames(),
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringVar(&flagQueryDays, "days", "", "Number of days to show (or 'week'/'month')")

	return cmd
}

func allNames() string {
	var names []string
	for _, k := range prayer.Kinds() {
		for _, n := range prayer.Names(k) {
			names = append(names, string(n))
		}
	}
	return strings.Join(names, ", ")
}

func runQuery(cmd *cobra.Command, args []string) error {
	name, err := prayer.ParseName(args[0])
	if err != nil {
		return fmt.Errorf("%w; valid names: %s", err, allNames())
	}
	kind, _ := prayer.KindOf(name)

	days := 0
	if flagQueryDays != "" {
		if days, err = parseDays(flagQueryDays); err != nil {
			return err
		}
	}

	cfg := effectiveConfig(cmd)
	s, err := syncedSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	now := s.app.Clock().Now()

	var found []prayer.Prayer
	if days == 0 {
		p, err := s.app.Manager.NextOccurrence(ctx, kind, name, now)
		if err != nil {
			return err
		}
		found = []prayer.Prayer{p}
	} else {
		found, err = s.app.Manager.Occurrences(ctx, kind, name, now, days)
		if err != nil {
			return err
		}
	}

	layout := goTimeLayout(cfg)
	if FlagJSON {
		return printQueryJSON(cmd.OutOrStdout(), found, layout)
	}
	printQueryTable(cmd.OutOrStdout(), found, layout, now)
	return nil
}

func printQueryTable(w io.Writer, found []prayer.Prayer, layout string, now time.Time) {
	tbl := display.NewTable("Date", "Prayer", "Time", "In")
	for _, p := range found {
		tbl.AddRow(p.BelongsToDate, p.DisplayName(), p.Datetime.Format(layout), timeutil.FormatRemaining(p.Datetime.Sub(now)))
	}
	tbl.SetHighlightRow(0)
	fmt.Fprintln(w)
	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
}

type queryJSON struct {
	Prayer string `json:"prayer"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

func printQueryJSON(w io.Writer, found []prayer.Prayer, layout string) error {
	out := make([]queryJSON, 0, len(found))
	for _, p := range found {
		out = append(out, queryJSON{
			Prayer: strings.ToLower(string(p.Name)),
			Date:   p.BelongsToDate,
			Time:   p.Datetime.Format(layout),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
