package observability

import (
	"io"
	"os"
	"strings"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// InitLogger builds the process logger. format is json or console; anything
// else falls back to json. A nil output writes to stdout.
func InitLogger(level, format string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}
	if format == LogFormatConsole {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}
	return zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// InitConsoleLogger writes human readable lines to stderr, for the
// migrate CLI and local runs.
func InitConsoleLogger(level string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}
	return InitLogger(level, LogFormatConsole, output)
}

// SetGlobal makes logger the one behind the zerolog/log package and behind
// log.Ctx for contexts that carry no logger of their own.
func SetGlobal(logger zerolog.Logger) {
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithActor tags every event with the receiving market actor.
func WithActor(logger zerolog.Logger, a actor.Actor) zerolog.Logger {
	return logger.With().
		Str("actor_number", string(a.Number)).
		Str("actor_role", a.Role.Code()).
		Logger()
}

// Component names the subsystem emitting the log line.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
