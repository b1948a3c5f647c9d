package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/display"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch missing timetable years and rebuild the schedules",
		Long:  "Fetch the current year when today's data is missing, and next year during December.\nStored data is kept when the fetch fails.",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig(cmd)
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	status, syncErr := s.app.Resync(cmd.Context())
	out := cmd.OutOrStdout()

	if FlagJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return syncErr
	}

	if syncErr != nil {
		return fmt.Errorf("sync failed: %w", syncErr)
	}
	if len(status.Fetched) == 0 {
		fmt.Fprintln(out, display.Gray("Timetable is up to date."))
	}
	for _, y := range status.Fetched {
		fmt.Fprintf(out, "%s fetched %d\n", display.Green("✓"), y)
	}
	return nil
}
