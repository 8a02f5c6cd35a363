// Package logging adapts the standard log package to the go-log interface
// used throughout udpstress.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"sync/atomic"

	"github.com/go-log/log"
)

var debug atomic.Bool

// Setup directs the standard logger to w, enables debug output if asked,
// and installs a LogLogger as the go-log default.
func Setup(w io.Writer, debugEnabled bool) {
	stdlog.SetOutput(w)
	stdlog.SetFlags(stdlog.LstdFlags | stdlog.Lshortfile)
	debug.Store(debugEnabled)
	log.DefaultLogger = &LogLogger{}
}

// Debug reports whether debug logging is enabled.
func Debug() bool {
	return debug.Load()
}

// Default returns the go-log default logger, or a NopLogger if none is set.
func Default() log.Logger {
	if log.DefaultLogger == nil {
		return &NopLogger{}
	}
	return log.DefaultLogger
}

// LogLogger uses the standard log package as the logger.
type LogLogger struct {
	// CallDepth is passed to log.Output; 0 means 2, the caller of Log.
	CallDepth int
}

func (l *LogLogger) depth() int {
	if l.CallDepth <= 0 {
		return 2
	}
	return l.CallDepth
}

// Log uses the standard log library log.Output
func (l *LogLogger) Log(v ...interface{}) {
	stdlog.Output(l.depth(), fmt.Sprintln(v...))
}

// Logf uses the standard log library log.Output
func (l *LogLogger) Logf(format string, v ...interface{}) {
	stdlog.Output(l.depth(), fmt.Sprintf(format, v...))
}

// NopLogger is a dummy logger that discards the log outputs
type NopLogger struct {
}

// Log does nothing
func (l *NopLogger) Log(v ...interface{}) {
}

// Logf does nothing
func (l *NopLogger) Logf(format string, v ...interface{}) {
}
