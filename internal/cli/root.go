// Package cli implements the prayerd command line: one-shot schedule views
// backed by the local store, and the long-running daemon.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/prayerd/internal/config"
	"github.com/smokyabdulrahman/prayerd/internal/display"
	"github.com/smokyabdulrahman/prayerd/internal/logging"
)

// Global flags shared across all subcommands.
var (
	FlagCity       string
	FlagCountry    string
	FlagLatitude   float64
	FlagLongitude  float64
	FlagMethod     int
	FlagSchool     int
	FlagTimezone   string
	FlagLanguage   string
	FlagJSON       bool
	FlagStore      string
	FlagCacheDir   string
	FlagTimeFormat string
	FlagLogLevel   string
	FlagEnvFile    string
)

// loadedConfig holds the config file merged with the environment, loaded in
// PersistentPreRunE.
var loadedConfig *config.Config

// NewRootCmd creates the root command. The version is set by the calling
// binary via ldflags.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "prayerd",
		Short:   "Prayer time scheduler",
		Long:    "Prayer times, countdowns and notifications from a yearly timetable.\nWithout a subcommand, shows the current display day of both schedules.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(FlagEnvFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			loadedConfig = cfg
			display.Configure(cmd.OutOrStdout(), FlagJSON)

			// One-shot commands only log warnings; run applies log_level.
			level := "warn"
			if FlagLogLevel != "" {
				level = FlagLogLevel
			}
			logging.Setup(level, true)
			return nil
		},
		RunE:          runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("prayerd version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&FlagCity, "city", "", "Override city (takes precedence over config)")
	pf.StringVar(&FlagCountry, "country", "", "Override country")
	pf.Float64Var(&FlagLatitude, "latitude", 0, "Override latitude")
	pf.Float64Var(&FlagLongitude, "longitude", 0, "Override longitude")
	pf.IntVar(&FlagMethod, "method", -1, "Override calculation method (0-23)")
	pf.IntVar(&FlagSchool, "school", -1, "Override school (0=Shafi, 1=Hanafi)")
	pf.StringVar(&FlagTimezone, "timezone", "", "IANA timezone of the schedule (default: local)")
	pf.StringVar(&FlagLanguage, "lang", "", "Display language for prayer names")
	pf.BoolVar(&FlagJSON, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&FlagStore, "store", "", "Store backend: file, sqlite, redis or memory")
	pf.StringVar(&FlagCacheDir, "cache-dir", "", "Data directory (default: ~/.cache/prayerd/)")
	pf.StringVar(&FlagTimeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")
	pf.StringVar(&FlagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&FlagEnvFile, "env-file", ".env", "Dotenv file read before the environment")

	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newWeekCmd())
	rootCmd.AddCommand(newMonthCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMethodsCmd())

	return rootCmd
}

// effectiveConfig returns the merged configuration, applying the priority
// CLI flags > environment > config file > defaults. It uses cobra's Changed()
// to detect whether a flag was explicitly set.
func effectiveConfig(cmd *cobra.Command) *config.Config {
	var cfg config.Config
	if loadedConfig != nil {
		cfg = *loadedConfig
	}

	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()
	set := func(name string) bool { return flagWasSet(flags, root, name) }

	if set("city") {
		cfg.City = FlagCity
	}
	if set("country") {
		cfg.Country = FlagCountry
	}
	if set("latitude") {
		cfg.Latitude = FlagLatitude
	}
	if set("longitude") {
		cfg.Longitude = FlagLongitude
	}
	if set("method") {
		m := FlagMethod
		cfg.Method = &m
	}
	if set("school") {
		s := FlagSchool
		cfg.School = &s
	}
	if set("timezone") {
		cfg.Timezone = FlagTimezone
	}
	if set("lang") {
		cfg.Language = FlagLanguage
	}
	if set("store") {
		cfg.Store = FlagStore
	}
	if set("cache-dir") {
		cfg.CacheDir = FlagCacheDir
	}
	if set("time-format") {
		cfg.TimeFormat = FlagTimeFormat
	}
	if set("log-level") {
		cfg.LogLevel = FlagLogLevel
	}

	merged := cfg.WithDefaults()
	return &merged
}

// flagWasSet checks if a flag was explicitly set on either the local or persistent flag set.
func flagWasSet(local, persistent *pflag.FlagSet, name string) bool {
	if f := local.Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := persistent.Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

// goTimeLayout maps the time_format setting to a Go layout.
func goTimeLayout(cfg *config.Config) string {
	if cfg.TimeFormat == "12h" {
		return "3:04 PM"
	}
	return "15:04"
}
