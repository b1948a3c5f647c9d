package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/display"
	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

var (
	flagAlertAt       string
	flagAlertReminder string
	flagAlertOffset   int
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show or change notification preferences",
		Long:  "Show the alert preference of every prayer, or change one with 'alerts set'.\nA running daemon applies changes on SIGHUP.",
		RunE:  runAlertsList,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List alert preferences",
		Args:  cobra.NoArgs,
		RunE:  runAlertsList,
	})

	set := &cobra.Command{
		Use:   "set <prayer>",
		Short: "Set the alert preference of a prayer",
		Long: "Set the at-time alert and reminder of a prayer. Unset flags keep their stored value.\n\n" +
			"Examples:\n  prayerd alerts set asr --at sound --reminder silent --offset 10\n  prayerd alerts set fajr --at off --reminder off",
		Args: cobra.ExactArgs(1),
		RunE: runAlertsSet,
	}
	set.Flags().StringVar(&flagAlertAt, "at", "", "At-time alert: off, silent or sound")
	set.Flags().StringVar(&flagAlertReminder, "reminder", "", "Reminder alert: off, silent or sound")
	set.Flags().IntVar(&flagAlertOffset, "offset", notify.DefaultReminderOffset,
		fmt.Sprintf("Reminder minutes before the prayer (%d-%d)", notify.MinReminderOffset, notify.MaxReminderOffset))
	cmd.AddCommand(set)

	return cmd
}

type alertRow struct {
	Kind       prayer.Kind       `json:"kind"`
	Index      int               `json:"index"`
	Prayer     prayer.Name       `json:"prayer"`
	Preference notify.Preference `json:"preference"`
	Scheduled  int               `json:"scheduled"`
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig(cmd)
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	records, err := s.app.Notifications(ctx)
	if err != nil {
		return err
	}
	scheduled := make(map[notify.PrayerRef]int)
	for _, r := range records {
		scheduled[notify.PrayerRef{Kind: r.Kind, Index: r.PrayerIndex}]++
	}

	var rows []alertRow
	for _, k := range prayer.Kinds() {
		for i, n := range prayer.Names(k) {
			pref, err := s.app.Preference(ctx, k, i)
			if err != nil {
				return err
			}
			rows = append(rows, alertRow{
				Kind:       k,
				Index:      i,
				Prayer:     n,
				Preference: pref,
				Scheduled:  scheduled[notify.PrayerRef{Kind: k, Index: i}],
			})
		}
	}

	out := cmd.OutOrStdout()
	if FlagJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	tbl := display.NewTable("Kind", "Prayer", "At time", "Reminder", "Scheduled")
	for i, r := range rows {
		reminder := r.Preference.Reminder.String()
		if r.Preference.Reminder != notify.Off {
			reminder += " (" + strconv.Itoa(r.Preference.ReminderOffsetMinutes) + "m)"
		}
		tbl.AddRow(r.Kind.String(), s.locale.DisplayName(r.Prayer), r.Preference.AtTime.String(), reminder, strconv.Itoa(r.Scheduled))
		if r.Preference.AtTime == notify.Off && r.Preference.Reminder == notify.Off {
			tbl.DimRow(i)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, tbl.Render())
	fmt.Fprintln(out)
	return nil
}

func runAlertsSet(cmd *cobra.Command, args []string) error {
	name, err := prayer.ParseName(args[0])
	if err != nil {
		return err
	}
	kind, _ := prayer.KindOf(name)
	index := prayer.Index(kind, name)

	cfg := effectiveConfig(cmd)
	s, err := syncedSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	pref, err := s.app.Preference(ctx, kind, index)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("at") {
		if pref.AtTime, err = notify.ParseAlertKind(flagAlertAt); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("reminder") {
		if pref.Reminder, err = notify.ParseAlertKind(flagAlertReminder); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("offset") {
		pref.ReminderOffsetMinutes = flagAlertOffset
	}

	if err := s.app.UpdatePreference(ctx, kind, index, pref); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s: at time %s, reminder %s (%d min before)\n",
		name, pref.AtTime, pref.Reminder, pref.ReminderOffsetMinutes)
	return nil
}
