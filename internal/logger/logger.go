// Package logger is the structured logger shared by every layer of the API.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger. Fields are passed as plain maps so callers
// do not depend on zerolog directly.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger writing to stdout, configured for the given environment.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a Logger writing to w.
// In development mode it writes pretty-printed colored logs at debug level,
// otherwise JSON at info level.
func NewWithWriter(env string, w io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "development" {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return &Logger{zlog: zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
	}
	return &Logger{zlog: zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// WithLevel returns a copy of the logger filtering at the named level
// (debug, info, warn, error). An empty or unknown name keeps the current level.
func (l *Logger) WithLevel(name string) *Logger {
	level, err := zerolog.ParseLevel(name)
	if name == "" || err != nil {
		return l
	}
	return &Logger{zlog: l.zlog.Level(level)}
}

// emit attaches fields to ev and writes it. Error values are logged by
// their message.
func emit(ev *zerolog.Event, msg string, fields map[string]interface{}) {
	for key, value := range fields {
		if err, ok := value.(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, value)
	}
	ev.Msg(msg)
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	emit(l.zlog.Debug(), msg, fields)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	emit(l.zlog.Info(), msg, fields)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	emit(l.zlog.Warn(), msg, fields)
}

// Error logs an error message with an error and optional fields.
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	emit(l.zlog.Error().Err(err), msg, fields)
}

// Fatal logs a fatal message and exits the application.
func (l *Logger) Fatal(msg string, err error, fields map[string]interface{}) {
	emit(l.zlog.Fatal().Err(err), msg, fields)
}

// With creates a child logger with additional context fields.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithRequestID creates a child logger with a request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.withStr("request_id", requestID)
}

// WithComponent creates a child logger tagged with the component name,
// e.g. "geoserver" or "store".
func (l *Logger) WithComponent(name string) *Logger {
	return l.withStr("component", name)
}

func (l *Logger) withStr(key, value string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(key, value).Logger()}
}

// GetZerolog returns the underlying zerolog.Logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}
