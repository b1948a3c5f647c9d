package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

var (
	flagFormat string
	flagKind   string
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next prayer with countdown",
		Long:  "Display the next upcoming prayer with a countdown, in a format suited to status bars.",
		RunE:  runNext,
	}

	cmd.Flags().StringVar(&flagFormat, "format", prayer.FormatFull, "Display format: time-remaining, next-prayer-time, name-and-time, name-and-remaining, short-name-and-time, short-name-and-remaining, countdown, full, or a custom Go template")
	cmd.Flags().StringVar(&flagKind, "kind", "standard", "Schedule: standard or extra")

	return cmd
}

func runNext(cmd *cobra.Command, args []string) error {
	kind, err := prayer.ParseKind(flagKind)
	if err != nil {
		return err
	}
	cfg := effectiveConfig(cmd)

	s, err := syncedSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	v := s.app.View(kind)
	r := v.Countdown
	if !r.Valid {
		// Keep a status bar line rather than failing.
		if v.Prev != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s --:--", v.Prev.DisplayName())
			return nil
		}
		return fmt.Errorf("could not determine next %s prayer", kind)
	}

	fmt.Fprint(cmd.OutOrStdout(), prayer.FormatOutput(r.Prayer, r.SecondsRemaining, flagFormat, goTimeLayout(cfg)))
	return nil
}
