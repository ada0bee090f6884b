// Package cliutil provides the small pieces of console plumbing every
// heapd command-line tool shares: leveled logging, consistent error exit,
// and usage formatting.
package cliutil

import (
	"fmt"
	"os"
	"time"
)

// Logger provides leveled logging for CLI tools. Info and Debug are gated
// behind their respective flags; Warn and Error always print.
type Logger struct {
	Verbose bool
	Debug   bool
}

// NewLogger constructs a Logger with the given verbosity flags.
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, Debug: debug}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// Info logs an informational message when Verbose is set.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Printf("[INFO] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Debugf logs a debug message when Debug is set.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Debug {
		fmt.Printf("[DEBUG] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message unconditionally.
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Printf("[WARN] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// Error logs an error message unconditionally.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Printf("[ERROR] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// ExitWithError prints a formatted error to stderr and exits with code 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Command describes one heapctl subcommand for usage printing.
type Command struct {
	Name        string
	Description string
}

// PrintUsage prints a standardized top-level usage banner.
func PrintUsage(tool string, commands []Command) {
	fmt.Printf("%s - heapd allocator tools\n\n", tool)
	fmt.Printf("USAGE:\n    %s <command> [OPTIONS]\n\n", tool)

	if len(commands) > 0 {
		fmt.Printf("COMMANDS:\n")

		for _, c := range commands {
			fmt.Printf("    %-10s %s\n", c.Name, c.Description)
		}

		fmt.Printf("\n")
	}

	fmt.Printf("Use '%s <command> -help' for more information about a command.\n", tool)
}
