// Package logging provides component-scoped logging for the proxy,
// registrar, and actor processes. Debug-level detail always goes to the
// log file only; operator-facing messages go to both file and console.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped, leveled lines to a log file and, for
// Info/Warn/Error, to the console as well. The zero value is not usable;
// construct with New.
type Logger struct {
	component string
	file      *os.File
	mu        sync.Mutex
	logPath   string
	quiet     bool // when true, Info is file-only like Debug
}

// New opens (creating if needed) a log file for component under logDir
// and returns a ready Logger. Passing an empty logDir opens no file: the
// lines that would go to the file are written to stderr instead.
func New(component, logDir string, quiet bool) (*Logger, error) {
	if logDir == "" {
		return &Logger{component: component, quiet: quiet}, nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("logging: creating log directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.log", component, time.Now().Format("20060102-150405"))
	logPath := filepath.Join(logDir, name)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: opening log file: %w", err)
	}

	l := &Logger{component: component, file: file, logPath: logPath, quiet: quiet}
	l.writeToFile("=== %s log started %s ===\n", component, time.Now().Format(time.RFC3339))
	return l, nil
}

// Path returns the file this Logger writes to, or "" for a stderr-only logger.
func (l *Logger) Path() string {
	return l.logPath
}

// Close flushes and closes the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writeToFile("=== %s log ended %s ===\n", l.component, time.Now().Format(time.RFC3339))
	return l.file.Close()
}

// Debug writes a debug-level line to the log file only.
func (l *Logger) Debug(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeToFile("[%s] DEBUG: %s\n", l.now(), fmt.Sprintf(format, args...))
}

// Info writes an info-level line to the log file, and to stdout unless
// the Logger is in quiet mode.
func (l *Logger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	l.writeToFile("[%s] INFO: %s\n", l.now(), msg)
	if !l.quiet {
		fmt.Println(msg)
	}
}

// Warn writes a warning-level line to both the log file and stderr.
func (l *Logger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	l.writeToFile("[%s] WARN: %s\n", l.now(), msg)
	fmt.Fprintf(os.Stderr, "warn: %s\n", msg)
}

// Error writes an error-level line to both the log file and stderr.
func (l *Logger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	l.writeToFile("[%s] ERROR: %s\n", l.now(), msg)
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
}

func (l *Logger) now() string {
	return time.Now().Format("15:04:05.000")
}

func (l *Logger) writeToFile(format string, args ...any) {
	if l.file == nil {
		fmt.Fprintf(os.Stderr, format, args...)
		return
	}
	fmt.Fprintf(l.file, format, args...)
	l.file.Sync()
}

// StdWriter returns an io.Writer suitable for log.SetOutput, so that
// third-party packages using the standard log package route through this
// Logger's file instead of directly to stderr.
func (l *Logger) StdWriter() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// Redirect points the standard library's default logger at this Logger's
// file, the way a process entry point wants to do once at startup.
func (l *Logger) Redirect() {
	log.SetOutput(l.StdWriter())
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}
