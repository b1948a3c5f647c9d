// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. level is a zerolog level name
// ("debug", "info", "warn", ...); an unknown or empty name means info.
// pretty selects human-readable console output on stderr.
func Setup(level string, pretty bool) zerolog.Level {
	return SetupWriter(os.Stderr, level, pretty)
}

// SetupWriter is Setup writing to w.
func SetupWriter(w io.Writer, level string, pretty bool) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return lvl
}
