// Package logging configures the global zerolog logger for the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const levelEnvVar = "LOG_LEVEL"

// Setup writes human-readable output in DEV and JSON elsewhere, at the level
// named by LOG_LEVEL (info when unset or unknown).
func Setup(env string, out io.Writer) {
	if strings.EqualFold(env, "DEV") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(Level(os.Getenv(levelEnvVar)))
}

// Level parses a level name, defaulting to info.
func Level(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
