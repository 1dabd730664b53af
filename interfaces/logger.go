package interfaces

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLogLevel maps a configuration string onto a LogLevel.
// The second return value is false when the string names no known level.
func ParseLogLevel(level string) (LogLevel, bool) {
	switch LogLevel(level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return LogLevel(level), true
	}
	return "", false
}

// Logger defines the interface for logging operations
type Logger interface {
	// Debug logs a debug level message
	Debug(msg string)

	// Info logs an info level message
	Info(msg string)

	// Warn logs a warning level message
	Warn(msg string)

	// Error logs an error level message
	Error(err error)
}
