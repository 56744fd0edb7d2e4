// Package logging configures the global zerolog logger for the shell.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// logWriter stores the current log writer globally
	logWriter io.Writer
)

// init sets the global logging level for zerolog to ErrorLevel by default.
// Diagnostics go to stderr so they never interleave with the shell's
// line-oriented job output on stdout.
func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// ConfigureGlobal configures the global logging settings for the application.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	logContext := zerolog.New(logWriter).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

// ConfigureGlobalLevel parses levelStr and applies it globally.
func ConfigureGlobalLevel(levelStr string) {
	ConfigureGlobal(ParseLevel(levelStr))
}

// ParseLevel converts a string log level to zerolog.Level, defaulting to
// error on empty or invalid input.
func ParseLevel(levelStr string) zerolog.Level {
	if levelStr == "" {
		return zerolog.ErrorLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelStr).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

// VerbosityLevel maps a repeatable -v count onto a level: 0 keeps the
// configured base level, 1 is info, 2 is debug, 3 or more is trace.
func VerbosityLevel(base zerolog.Level, count int) zerolog.Level {
	switch {
	case count <= 0:
		return base
	case count == 1:
		return zerolog.InfoLevel
	case count == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// NewLogger returns a component-tagged child of the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// NewLoggerWithWriter returns a component-tagged logger writing to w,
// independent of global state. Intended for tests.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// SetLogWriter sets the global log writer.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
