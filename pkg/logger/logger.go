/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// DefaultBackups is the number of rotated log files kept next to the active one.
const DefaultBackups = 19

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value to a Level, falling back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
	NoOp      bool

	// Output receives console output. Defaults to os.Stderr.
	Output io.Writer
	// File, when set, also receives every entry as JSON. The previous file is
	// rotated to File.1 .. File.N on start-up, N being Backups.
	File    string
	Backups int
}

// Logger is a structured logger handed to components at construction time.
// A nil *Logger discards everything.
type Logger struct {
	config Config
	zl     zerolog.Logger
	file   *os.File
}

// New builds a logger from config. Callers own the returned logger and must Close it.
func New(config Config) (*Logger, error) {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer = out
	if !config.JSON {
		console = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !config.UseColor,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	l := &Logger{config: config}
	writer := console
	if config.File != "" {
		f, err := openRotated(config.File, config.Backups)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		writer = zerolog.MultiLevelWriter(console, f)
	}

	ctx := zerolog.New(writer).Level(config.Level.zerolog()).With().Timestamp()
	if config.Component != "" {
		ctx = ctx.Str("component", config.Component)
	}
	if config.NoOp {
		ctx = ctx.Bool("no_op", true)
	}
	l.zl = ctx.Logger()
	return l, nil
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), config: Config{Level: ErrorLevel + 1}}
}

// Close flushes and releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &Logger{config: l.config, zl: ctx.Logger(), file: nil}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.config.Level
}

// Log writes a log message
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}

	ev := l.zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	// Caller info for debug and trace
	if level <= DebugLevel {
		ev = ev.Caller(2)
	}
	for _, field := range fields {
		ev = ev.Interface(field.Key, field.Value)
	}
	ev.Msg(message)
}

func (l *Logger) Trace(message string, fields ...Field) { l.Log(TraceLevel, message, fields...) }
func (l *Logger) Debug(message string, fields ...Field) { l.Log(DebugLevel, message, fields...) }
func (l *Logger) Info(message string, fields ...Field)  { l.Log(InfoLevel, message, fields...) }
func (l *Logger) Warn(message string, fields ...Field)  { l.Log(WarnLevel, message, fields...) }
func (l *Logger) Error(message string, fields ...Field) { l.Log(ErrorLevel, message, fields...) }

// Field represents a structured field in a log entry
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Any creates a field holding an arbitrary value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// openRotated shifts path -> path.1 -> ... -> path.backups and opens a fresh path.
func openRotated(path string, backups int) (*os.File, error) {
	if backups <= 0 {
		backups = DefaultBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(fmt.Sprintf("%s.%d", path, backups))
		for i := backups - 1; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", path, i)
			if _, err := os.Stat(from); err == nil {
				if err := os.Rename(from, fmt.Sprintf("%s.%d", path, i+1)); err != nil {
					return nil, err
				}
			}
		}
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, err
		}
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- configured log path
}
