// Package monitoring holds the package-level diagnostic loggers shared by
// the mesh pipeline.
package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc = func(format string, v ...interface{})

// Logf is the diagnostic logger for operational events (skipped updates,
// source errors, startup). It defaults to log.Printf but may be replaced
// by SetLogger.
var Logf logFunc = log.Printf

var tracef atomic.Pointer[logFunc]

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f logFunc) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetTraceLogger enables per-update trace output. Passing nil mutes it,
// which is the default.
func SetTraceLogger(f logFunc) {
	if f == nil {
		tracef.Store(nil)
		return
	}
	tracef.Store(&f)
}

// Tracef writes to the trace logger when one is installed.
func Tracef(format string, v ...interface{}) {
	if f := tracef.Load(); f != nil {
		(*f)(format, v...)
	}
}
