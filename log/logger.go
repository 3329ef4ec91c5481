package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel orders message severities. A logger emits everything at its own
// level and above.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError

	// LogLevelNone sits above every severity and silences the logger.
	LogLevelNone
)

// String returns the tag used in log output for this level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// Logger is what the router, classifier and agents log through. Arguments
// follow fmt.Printf conventions.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// DefaultLogger writes tagged lines through the standard library logger,
// dropping anything below its level.
type DefaultLogger struct {
	out   *log.Logger
	level LogLevel
}

// NewDefaultLogger returns a DefaultLogger writing to stderr.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewCustomLogger(os.Stderr, level)
}

// NewCustomLogger returns a DefaultLogger writing to out.
func NewCustomLogger(out io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		out:   log.New(out, "[medrouter] ", log.LstdFlags),
		level: level,
	}
}

func (l *DefaultLogger) emit(level LogLevel, format string, v ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("["+level.String()+"] "+format, v...)
}

func (l *DefaultLogger) Debug(format string, v ...any) { l.emit(LogLevelDebug, format, v...) }
func (l *DefaultLogger) Info(format string, v ...any)  { l.emit(LogLevelInfo, format, v...) }
func (l *DefaultLogger) Warn(format string, v ...any)  { l.emit(LogLevelWarn, format, v...) }
func (l *DefaultLogger) Error(format string, v ...any) { l.emit(LogLevelError, format, v...) }

// NoOpLogger discards everything. Useful in tests and as an explicit opt-out.
type NoOpLogger struct{}

func (NoOpLogger) Debug(format string, v ...any) {}
func (NoOpLogger) Info(format string, v ...any)  {}
func (NoOpLogger) Warn(format string, v ...any)  {}
func (NoOpLogger) Error(format string, v ...any) {}

// The package-level logger backs components that were not handed one
// explicitly. Info level by default.
var defaultLogger Logger = NewDefaultLogger(LogLevelInfo)

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetLogLevel replaces the package-level logger with a stderr logger at the
// given level.
func SetLogLevel(level LogLevel) {
	defaultLogger = NewDefaultLogger(level)
}

// Debug logs through the package-level logger.
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs through the package-level logger.
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs through the package-level logger.
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs through the package-level logger.
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}
