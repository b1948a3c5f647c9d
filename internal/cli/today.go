package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/app"
	"github.com/smokyabdulrahman/prayerd/internal/config"
	"github.com/smokyabdulrahman/prayerd/internal/display"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

func runToday(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig(cmd)

	s, err := syncedSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	now := s.app.Clock().Now()
	views := make([]app.KindView, 0, 2)
	for _, k := range prayer.Kinds() {
		views = append(views, s.app.View(k))
	}

	out := cmd.OutOrStdout()
	if FlagJSON {
		return printTodayJSON(out, views, now, cfg)
	}
	printTodayRich(out, views, now, cfg)
	return nil
}

// displayGroup returns the prayers of the view's display day.
func displayGroup(v app.KindView) []prayer.Prayer {
	var group []prayer.Prayer
	for _, p := range v.Prayers {
		if p.BelongsToDate == v.DisplayDate {
			group = append(group, p)
		}
	}
	return group
}

func kindTitle(k prayer.Kind) string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// buildLocationStr builds a "City, Country" string, falling back to
// coordinates.
func buildLocationStr(cfg *config.Config) string {
	if cfg.City != "" && cfg.Country != "" {
		return cfg.City + ", " + cfg.Country
	}
	if cfg.Latitude != 0 || cfg.Longitude != 0 {
		return fmt.Sprintf("%.4f, %.4f", cfg.Latitude, cfg.Longitude)
	}
	return cfg.ProviderURL
}

// formatDisplayDate renders an ISO date key as "Wed 18 Feb 2026" plus its
// Hijri date.
func formatDisplayDate(date string, loc *time.Location) (string, string) {
	d, err := timeutil.ParseDate(date, loc)
	if err != nil {
		return date, ""
	}
	return d.Format("Mon 02 Jan 2006"), timeutil.Hijri(d).Format()
}

func printTodayRich(w io.Writer, views []app.KindView, now time.Time, cfg *config.Config) {
	layout := goTimeLayout(cfg)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold("Prayer Times"))
	fmt.Fprintln(w)
	if loc := buildLocationStr(cfg); loc != "" {
		fmt.Fprintf(w, "  %s\n", loc)
	}
	fmt.Fprintf(w, "  %s\n", now.Location())

	for _, v := range views {
		group := displayGroup(v)
		greg, hijri := formatDisplayDate(v.DisplayDate, now.Location())

		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s  %s\n", display.Bold(kindTitle(v.Kind)), greg)
		if hijri != "" {
			fmt.Fprintf(w, "  %s\n", display.Gray(hijri))
		}
		fmt.Fprintln(w)

		if len(group) == 0 {
			fmt.Fprintf(w, "  %s\n", display.Yellow("no data; run 'prayerd sync'"))
			continue
		}

		tbl := display.NewTable("Prayer", "Time", "")
		for i, p := range group {
			note := ""
			if v.Next != nil && p.Equal(*v.Next) {
				remaining := timeutil.FormatRemaining(p.Datetime.Sub(now))
				note = "<- next in " + remaining
				tbl.SetHighlightRow(i)
			} else if !p.Datetime.After(now) {
				tbl.DimRow(i)
			}
			tbl.AddRow(p.DisplayName(), p.Datetime.In(now.Location()).Format(layout), note)
		}
		fmt.Fprint(w, tbl.Render())
	}
	fmt.Fprintln(w)
}

// todayJSON is the JSON output structure for the root command.
type todayJSON struct {
	Location string          `json:"location,omitempty"`
	Timezone string          `json:"timezone"`
	Now      time.Time       `json:"now"`
	Kinds    []todayJSONKind `json:"kinds"`
}

type todayJSONKind struct {
	Kind        string            `json:"kind"`
	DisplayDate string            `json:"display_date"`
	Hijri       string            `json:"hijri,omitempty"`
	Timings     map[string]string `json:"timings"`
	Next        *todayJSONNext    `json:"next"`
}

type todayJSONNext struct {
	Prayer    string `json:"prayer"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
	Seconds   int64  `json:"seconds"`
}

func printTodayJSON(w io.Writer, views []app.KindView, now time.Time, cfg *config.Config) error {
	layout := goTimeLayout(cfg)
	out := todayJSON{
		Location: buildLocationStr(cfg),
		Timezone: now.Location().String(),
		Now:      now,
	}
	for _, v := range views {
		_, hijri := formatDisplayDate(v.DisplayDate, now.Location())
		k := todayJSONKind{
			Kind:        v.Kind.String(),
			DisplayDate: v.DisplayDate,
			Hijri:       hijri,
			Timings:     make(map[string]string),
		}
		for _, p := range displayGroup(v) {
			k.Timings[strings.ToLower(string(p.Name))] = p.Datetime.In(now.Location()).Format(layout)
		}
		if v.Next != nil {
			k.Next = &todayJSONNext{
				Prayer:    strings.ToLower(string(v.Next.Name)),
				Time:      v.Next.Datetime.In(now.Location()).Format(layout),
				Remaining: timeutil.FormatRemaining(v.Next.Datetime.Sub(now)),
				Seconds:   timeutil.SecondsUntil(v.Next.Datetime, now),
			}
		}
		out.Kinds = append(out.Kinds, k)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
