// Package log is a thin wrapper over github.com/go-kit/log: a plain
// log.Logger field threaded through by constructor, never read from
// a global. Every exported entry point in this module (merge,
// parallelmerge) accepts an optional log.Logger, defaulting to a
// no-op logger so library callers never get unwanted output.
package log

import (
	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a re-export of go-kit's Logger so callers of this module
// don't need to import go-kit/log directly just to pass one in.
type Logger = gokitlog.Logger

// NewNop returns a logger that discards everything, the default used
// throughout this module when the caller doesn't supply one.
func NewNop() Logger { return gokitlog.NewNopLogger() }

// With appends keyvals to logger's context, same as go-kit's log.With.
func With(logger Logger, keyvals ...interface{}) Logger {
	return gokitlog.With(logger, keyvals...)
}

// Debug logs at debug level.
func Debug(logger Logger, keyvals ...interface{}) {
	_ = level.Debug(logger).Log(keyvals...)
}

// Info logs at info level.
func Info(logger Logger, keyvals ...interface{}) {
	_ = level.Info(logger).Log(keyvals...)
}

// Warn logs at warn level.
func Warn(logger Logger, keyvals ...interface{}) {
	_ = level.Warn(logger).Log(keyvals...)
}

// Error logs at error level.
func Error(logger Logger, keyvals ...interface{}) {
	_ = level.Error(logger).Log(keyvals...)
}
