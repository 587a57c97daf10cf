// Package logger provides leveled logging for the verselens CLI.
// Debug, Info and Section output is gated behind the --verbose flag.
// Warnings and ingestion progress are always written, since retry attempts
// and chunking fallbacks must be visible during long ingestion runs.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for all logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
}

// Warn prints a warning message regardless of verbosity.
func Warn(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
}

// Progress prints a completion line prefixed with a percentage.
// The percentage is clamped to [0, 100].
func Progress(percent float64, format string, args ...any) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "[%3.0f%%] "+format+"\n", append([]any{percent}, args...)...)
}
