// Package logger provides the conditional debug output used across diskscan.
package logger

import (
	"fmt"
	"io"
)

// Logger prints debug output when enabled.
// The zero value is a disabled logger.
type Logger struct {
	enabled bool
	w       io.Writer
}

// New returns a Logger writing to w when enabled is true.
func New(enabled bool, w io.Writer) Logger {
	return Logger{enabled: enabled && w != nil, w: w}
}

// Enabled reports whether output is written.
func (l Logger) Enabled() bool {
	return l.enabled
}

// Printf prints a "[debug]: " prefixed line if logging is enabled.
func (l Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}

	fmt.Fprintf(l.w, "[debug]: "+format+"\n", args...)
}
