// Package debug provides opt-in diagnostic logging for ember.
//
// Set EMBER_DEBUG to any value to enable it:
//
//	EMBER_DEBUG=1 ember process --chat family
//
// Output goes to stderr unless EMBER_DEBUG_FILE names a file; the TUI always
// redirects to a file because the alternate screen owns the terminal.
// With debugging off every function returns immediately.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[EMBER] "

var (
	mu      sync.Mutex
	enabled bool
	logger  *log.Logger
	closer  io.Closer
)

func init() {
	if os.Getenv("EMBER_DEBUG") == "" {
		return
	}
	enabled = true
	if path := os.Getenv("EMBER_DEBUG_FILE"); path != "" {
		if err := LogToFile(path); err == nil {
			return
		}
	}
	logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled turns logging on or off at runtime.
func SetEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	if on && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// LogToFile appends log output to path, replacing any earlier log file.
func LogToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = f
	logger = log.New(f, prefix, log.Ltime|log.Lmicroseconds)
	return nil
}

// Close releases a log file opened with LogToFile.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

func out() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style message.
func Log(format string, args ...any) {
	if l := out(); l != nil {
		l.Printf(format, args...)
	}
}

// LogTiming records how long name took.
func LogTiming(name string, d time.Duration) {
	if l := out(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// LogEnterExit logs entry now and exit, with elapsed time, when the returned
// func runs:
//
//	defer debug.LogEnterExit("bootstrap")()
func LogEnterExit(name string) func() {
	l := out()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() { l.Printf("<- %s (%v)", name, time.Since(start)) }
}

// Section writes a visual separator.
func Section(name string) {
	if l := out(); l != nil {
		l.Printf("=== %s ===", name)
	}
}
