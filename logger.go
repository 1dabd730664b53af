// Package pushbq relays streaming-insert payloads to a BigQuery compatible
// insertAll endpoint.
package pushbq

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/maximhq/pushbq/interfaces"
)

// DefaultLogger implements the Logger interface with stdout/stderr printing.
// It writes lines of the form [PUSHBQ-TIMESTAMP] LEVEL: message (error: err).
// It is used as the default logger if no logger is provided in the PushBQConfig.
type DefaultLogger struct {
	mu     sync.Mutex
	level  interfaces.LogLevel
	stdout io.Writer
	stderr io.Writer
}

// NewDefaultLogger creates a new DefaultLogger instance with the specified log level.
func NewDefaultLogger(level interfaces.LogLevel) *DefaultLogger {
	return NewDefaultLoggerWithWriters(level, os.Stdout, os.Stderr)
}

// NewDefaultLoggerWithWriters creates a DefaultLogger writing to the given
// streams instead of the process stdout and stderr.
func NewDefaultLoggerWithWriters(level interfaces.LogLevel, stdout, stderr io.Writer) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		stdout: stdout,
		stderr: stderr,
	}
}

// severity orders levels so filtering is a single comparison
func severity(level interfaces.LogLevel) int {
	switch level {
	case interfaces.LogLevelDebug:
		return 0
	case interfaces.LogLevelInfo:
		return 1
	case interfaces.LogLevelWarn:
		return 2
	default:
		return 3
	}
}

func (logger *DefaultLogger) formatMessage(level interfaces.LogLevel, msg string, err error) string {
	timestamp := time.Now().Format(time.RFC3339)
	baseMsg := fmt.Sprintf("[PUSHBQ-%s] %s: %s", timestamp, level, msg)
	if err != nil {
		return fmt.Sprintf("%s (error: %v)", baseMsg, err)
	}
	return baseMsg
}

func (logger *DefaultLogger) write(level interfaces.LogLevel, msg string, err error) {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	if severity(level) < severity(logger.level) {
		return
	}
	out := logger.stdout
	if level == interfaces.LogLevelError {
		out = logger.stderr
	}
	fmt.Fprintln(out, logger.formatMessage(level, msg, err))
}

// Debug logs a debug level message to stdout.
func (logger *DefaultLogger) Debug(msg string) {
	logger.write(interfaces.LogLevelDebug, msg, nil)
}

// Info logs an info level message to stdout.
func (logger *DefaultLogger) Info(msg string) {
	logger.write(interfaces.LogLevelInfo, msg, nil)
}

// Warn logs a warning level message to stdout.
func (logger *DefaultLogger) Warn(msg string) {
	logger.write(interfaces.LogLevelWarn, msg, nil)
}

// Error logs an error level message to stderr.
// Error messages are always output regardless of the logger's level.
func (logger *DefaultLogger) Error(err error) {
	logger.write(interfaces.LogLevelError, "", err)
}

// SetLevel sets the logging level for the logger.
func (logger *DefaultLogger) SetLevel(level interfaces.LogLevel) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.level = level
}
