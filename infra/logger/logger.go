package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogContext holds contextual information attached to a log entry
type LogContext struct {
	Backend   string
	Handle    string
	RequestID string
	Fields    map[string]any
}

var (
	global zerolog.Logger
	once   sync.Once
)

// Init configures the global logger. Level is one of debug, info, warn,
// error; console enables human-readable output instead of JSON.
func Init(level string, console bool) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || lvl == zerolog.NoLevel {
			lvl = zerolog.InfoLevel
		}
		var out = os.Stderr
		logger := zerolog.New(out)
		if console {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
		}
		global = logger.Level(lvl).With().Timestamp().Str("service", "paykit").Logger()
	})
}

// Get returns the global logger, initializing a default one if needed. The
// pointer is required: zerolog's level methods have pointer receivers.
func Get() *zerolog.Logger {
	Init("info", false)
	return &global
}

func withContext(event *zerolog.Event, ctx []LogContext) *zerolog.Event {
	for _, c := range ctx {
		if c.Backend != "" {
			event = event.Str("backend", c.Backend)
		}
		if c.Handle != "" {
			event = event.Str("handle", c.Handle)
		}
		if c.RequestID != "" {
			event = event.Str("request_id", c.RequestID)
		}
		for k, v := range c.Fields {
			event = event.Interface(k, v)
		}
	}
	return event
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	withContext(Get().Debug(), ctx).Msg(message)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	withContext(Get().Info(), ctx).Msg(message)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	withContext(Get().Warn(), ctx).Msg(message)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	withContext(Get().Error().Err(err), ctx).Msg(message)
}
