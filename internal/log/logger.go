// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var currentLevel atomic.Uint32

// output is shared by the package functions and every component Logger.
var output = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output, e.g. away from the terminal while the
// TUI owns it, or into a buffer in tests.
func SetOutput(w io.Writer) {
	output.SetOutput(w)
}

// Writer returns the current destination.
func Writer() io.Writer {
	return output.Writer()
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger tags every line with a component name. The zero value logs
// without a tag, like the package functions.
type Logger struct {
	prefix string
}

// New returns a logger whose lines start with "[component]".
func New(component string) *Logger {
	if component == "" {
		return &Logger{}
	}
	return &Logger{prefix: "[" + component + "] "}
}

func (l *Logger) emit(level LogLevel, msg string) {
	// four-letter levels get an extra space so messages line up
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	output.Printf("[%s]%s%s%s", level, pad, l.prefix, msg)
}

func (l *Logger) logf(level LogLevel, format string, v []any) {
	if shouldLog(level) {
		l.emit(level, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) log(level LogLevel, v []any) {
	if shouldLog(level) {
		l.emit(level, fmt.Sprint(v...))
	}
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

// Fatalf always logs, then exits with status 1.
func (l *Logger) Fatalf(format string, v ...any) {
	output.Fatalf("[%s] %s%s", LevelFatal, l.prefix, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(v ...any) { l.log(LevelDebug, v) }
func (l *Logger) Info(v ...any)  { l.log(LevelInfo, v) }
func (l *Logger) Warn(v ...any)  { l.log(LevelWarn, v) }
func (l *Logger) Error(v ...any) { l.log(LevelError, v) }

var std = &Logger{}

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { std.Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { std.Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { std.Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { std.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }

func Debug(v ...any) { std.Debug(v...) }
func Info(v ...any)  { std.Info(v...) }
func Warn(v ...any)  { std.Warn(v...) }
func Error(v ...any) { std.Error(v...) }
