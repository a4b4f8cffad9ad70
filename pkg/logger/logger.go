package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

// NewJSONLogger writes one zerolog JSON object per line to w, for log files
// and other machine-read sinks.
func NewJSONLogger(w io.Writer, verbose bool) Logger {
	if w == nil {
		return NopLogger{}
	}
	zl := zerolog.New(w).Level(levelFor(verbose)).With().Timestamp().Logger()
	return NewZerologLogger(zl)
}

func levelFor(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger. Map objects become event fields,
// anything else is attached under "obj".
func NewZerologLogger(zl zerolog.Logger) Logger {
	return zerologLogger{zl: zl}
}

// NewConsoleLogger builds a human-readable zerolog logger on w.
func NewConsoleLogger(w io.Writer, verbose bool) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC822}).
		Level(levelFor(verbose)).
		With().
		Timestamp().
		Logger()
	return NewZerologLogger(zl)
}

func (l zerologLogger) emit(e *zerolog.Event, msg string, obj any) {
	switch v := obj.(type) {
	case nil:
	case map[string]any:
		e = e.Fields(v)
	default:
		e = e.Interface("obj", v)
	}
	e.Msg(msg)
}

func (l zerologLogger) Info(msg string, obj any)  { l.emit(l.zl.Info(), msg, obj) }
func (l zerologLogger) Warn(msg string, obj any)  { l.emit(l.zl.Warn(), msg, obj) }
func (l zerologLogger) Debug(msg string, obj any) { l.emit(l.zl.Debug(), msg, obj) }
func (l zerologLogger) Error(msg string, obj any) { l.emit(l.zl.Error(), msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
