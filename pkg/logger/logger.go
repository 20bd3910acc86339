package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chative-genui/server/internal/core"
)

// LoggerOpts configures the process-wide logger.
type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment's default level ("debug", "info", ...).
	Level string
	// Service is attached to every line when set.
	Service string
}

// Init configures the global logger: JSON lines in production, console output with caller
// information everywhere else.
func Init(opts ...LoggerOpts) {
	o := LoggerOpts{Environment: core.Development}
	if len(opts) > 0 {
		o = opts[0]
	}

	var l zerolog.Logger
	if o.Environment.IsProduction() {
		l = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		l = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	}
	if o.Service != "" {
		l = l.With().Str("service", o.Service).Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level)))
	if err != nil || o.Level == "" {
		level, _ = zerolog.ParseLevel(o.Environment.LogLevel())
	}
	log.Logger = l.Level(level)
}

// Node returns a child logger tagged with the conversation and node being executed.
func Node(conversationID, node string) zerolog.Logger {
	return log.Logger.With().
		Str("conversation_id", conversationID).
		Str("node", node).
		Logger()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
