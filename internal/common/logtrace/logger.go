// Package logtrace provides logging utilities for the SDK.
// It integrates with zerolog for structured logging; every SDK component
// obtains its logger through Component so callers can filter by source.
package logtrace

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamp format.
// Configures zerolog to output to stderr with timestamps.
func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Component returns a child of the global logger tagged with the given
// component name. Session kinds and the transport tag their log lines
// through this so a single process multiplexing several sessions stays
// readable.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// SetLevel adjusts the global log level. The SDK logs request and response
// bodies at debug; production callers typically run at info or above.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
