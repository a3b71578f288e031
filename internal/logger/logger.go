// Package logger is the structured logger of the insights API. Entries are
// JSON or text lines written through slog, tagged with the request, the
// user and the insight feature they concern.
package logger

import (
	"context"
	"io"
	"strings"
	"time"
)

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel reads the log.level setting. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is one key/value attached to an entry
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 is used for ratios, confidences and kg figures
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err records err under "error"; a nil error is logged as null
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Feature tags an entry with the insight feature it concerns
func Feature(name string) Field {
	return Field{Key: "feature", Value: name}
}

// PeriodKey tags an entry with an ISO-week period such as "2024-W07"
func PeriodKey(key string) Field {
	return Field{Key: "period_key", Value: key}
}

// Category tags an entry with an activity category
func Category(name string) Field {
	return Field{Key: "category", Value: name}
}

// Logger writes structured entries
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry
	With(fields ...Field) Logger
	// WithContext returns a Logger that adds the request and user ids
	// carried by ctx
	WithContext(ctx context.Context) Logger
}

// Config mirrors the log section of the service configuration
type Config struct {
	Level Level
	// Format is "json" or "text"
	Format string
	// Output defaults to os.Stdout
	Output    io.Writer
	AddSource bool
}

// DefaultConfig is used until main installs the configured logger
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "json"}
}

var defaultLogger Logger

// SetDefault installs the process-wide logger
func SetDefault(l Logger) {
	defaultLogger = l
}

// Default returns the process-wide logger
func Default() Logger {
	if defaultLogger == nil {
		defaultLogger = NewSlogLogger(DefaultConfig())
	}
	return defaultLogger
}

// Info logs a startup or lifecycle message on the default logger
func Info(msg string, fields ...Field) { Default().Info(msg, fields...) }
