// Package log is yegashell's internal diagnostics logger, used for
// operational warnings such as a full pending queue. User-facing job
// listings never go through it; they are written with fmt.Fprintf
// directly so their format cannot drift with a logger change.
package log

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
)

// New creates a Logger that tags every line with prefix followed by a
// colon, e.g. "signals: ".
func New(w io.Writer, prefix string) *Logger {
	return &Logger{
		log.New(w, prefix+": ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC),
	}
}

// Logger writes leveled, caller-annotated diagnostic lines to an
// io.Writer. Logger is thread-safe; it serializes access to the
// underlying Writer.
type Logger struct {
	*log.Logger
}

// Errorf logs an error-level diagnostic.
func (l Logger) Errorf(msg string, args ...interface{}) {
	file, line := caller(2)
	l.Printf("ERROR %s:%d: %s", file, line, fmt.Sprintf(msg, args...))
}

// Warnf logs a warn-level diagnostic.
func (l Logger) Warnf(msg string, args ...interface{}) {
	file, line := caller(2)
	l.Printf("WARN %s:%d: %s", file, line, fmt.Sprintf(msg, args...))
}

// Infof logs an info-level diagnostic.
func (l Logger) Infof(msg string, args ...interface{}) {
	file, line := caller(2)
	l.Printf("INFO %s:%d: %s", file, line, fmt.Sprintf(msg, args...))
}

// caller reports the base filename and line number of the Logger
// method's caller, depth frames up the stack.
func caller(depth int) (string, int) {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		return "???", 0
	}
	return filepath.Base(file), line
}
