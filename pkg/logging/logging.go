// Package logging configures zerolog for the application and hands out
// component-scoped loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logWriter stores the current log writer globally.
var logWriter io.Writer

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// ConfigureGlobal configures the global zerolog logger at the given level.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	logContext := zerolog.New(logWriter).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

// ConfigureGlobalLogging configures the global logging settings from a
// level string ("debug", "info", "warn", "error").
func ConfigureGlobalLogging(levelStr string) error {
	ConfigureGlobal(ParseLevel(levelStr))
	return nil
}

// ParseLevel converts a string log level to zerolog.Level.
// Unknown values default to error level.
func ParseLevel(levelString string) zerolog.Level {
	if levelString == "" {
		levelString = "error"
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

// NewLogger returns a component-scoped logger at the given level.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return NewLoggerWithWriter(component, level, logWriter)
}

// NewLoggerWithWriter returns a component-scoped logger writing to w.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// SetLogWriter sets the global log writer. Call before ConfigureGlobal.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
