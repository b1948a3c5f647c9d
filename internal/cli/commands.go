package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayerd/internal/config"
	"github.com/smokyabdulrahman/prayerd/internal/display"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or modify configuration",
		Long:  "Display current configuration, or use subcommands to modify it.\nWhen run without subcommands, shows the current configuration.",
		RunE:  runConfigShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configuration file, secrets masked",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: fmt.Sprintf("Set a configuration value. Valid keys: %s\n\nEach key can also be set with %s<KEY> in the environment or a .env file.\n\nExamples:\n  prayerd config set city Riyadh\n  prayerd config set country \"Saudi Arabia\"\n  prayerd config set method 4\n  prayerd config set store sqlite\n  prayerd config set mqtt_broker tcp://localhost:1883",
			strings.Join(config.ValidKeys, ", "), config.EnvPrefix),
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset config to defaults",
		Long:  "Delete the config file and restore all settings to defaults.",
		RunE:  runConfigReset,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print config file path",
		RunE:  runConfigPath,
	})

	return cmd
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Configuration (%s)\n\n", path)

	for _, key := range config.ValidKeys {
		val, _ := cfg.Show(key)
		shown := val
		if shown == "" {
			shown = "(not set)"
		}
		// Add descriptive labels for method and school.
		if key == "method" && val != "" {
			shown = formatMethodValue(val)
		}
		if key == "school" && val != "" {
			shown = formatSchoolValue(val)
		}
		fmt.Fprintf(out, "  %-17s %s\n", key, shown)
	}
	return nil
}

// runConfigSet sets a config key to the given value.
func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	shown, _ := cfg.Show(key)
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, shown)
	return nil
}

// runConfigReset deletes the config file.
func runConfigReset(cmd *cobra.Command, args []string) error {
	if err := config.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
	return nil
}

// runConfigPath prints the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// formatMethodValue adds the method name to the numeric value.
func formatMethodValue(val string) string {
	if val == "-1" {
		return "-1 (API default)"
	}
	for _, m := range CalculationMethods {
		if strconv.Itoa(m.ID) == val {
			return fmt.Sprintf("%s (%s)", val, m.Name)
		}
	}
	return val
}

// formatSchoolValue adds the school name to the numeric value.
func formatSchoolValue(val string) string {
	switch val {
	case "-1":
		return "-1 (API default)"
	case "0":
		return "0 (Shafi)"
	case "1":
		return "1 (Hanafi)"
	default:
		return val
	}
}

// CalculationMethods lists all supported Al Adhan API calculation methods.
var CalculationMethods = []struct {
	ID   int
	Name string
}{
	{0, "Shia Ithna-Ashari (Jafari)"},
	{1, "University of Islamic Sciences, Karachi"},
	{2, "Islamic Society of North America (ISNA)"},
	{3, "Muslim World League (MWL)"},
	{4, "Umm Al-Qura University, Makkah"},
	{5, "Egyptian General Authority of Survey"},
	{7, "Institute of Geophysics, University of Tehran"},
	{8, "Gulf Region"},
	{9, "Kuwait"},
	{10, "Qatar"},
	{11, "Majlis Ugama Islam Singapura (Singapore)"},
	{12, "Union Organization Islamic de France"},
	{13, "Diyanet Isleri Baskanligi, Turkey (experimental)"},
	{14, "Spiritual Administration of Muslims of Russia"},
	{15, "Moonsighting Committee Worldwide"},
	{16, "Dubai (experimental)"},
	{17, "JAKIM (Malaysia)"},
	{18, "Tunisia"},
	{19, "Algeria"},
	{20, "KEMENAG (Indonesia)"},
	{21, "Morocco"},
	{22, "Comunidade Islamica de Lisboa (Portugal)"},
	{23, "Ministry of Awqaf, Jordan"},
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List all calculation methods",
		Long:  "Print the table of all supported Al Adhan API calculation methods.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Supported calculation methods:")
			fmt.Fprintln(out)
			tbl := display.NewTable("ID", "Name")
			for _, m := range CalculationMethods {
				tbl.AddRow(strconv.Itoa(m.ID), m.Name)
			}
			fmt.Fprint(out, tbl.Render())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Use --method <ID> or 'config set method <ID>' to select one.")
			fmt.Fprintln(out, "If omitted, the API picks a default based on your location.")
			fmt.Fprintln(out, "Methods only apply to the aladhan provider.")
			return nil
		},
	}
}
