// Package logging provides the structured logger used by the compactor
// and its background workers.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general information messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level. Unknown strings map to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the output format for log messages.
type Format int

const (
	// FormatJSON outputs logs as JSON objects, one per line.
	FormatJSON Format = iota
	// FormatText outputs logs as human-readable text.
	FormatText
)

// ParseFormat converts a string to a Format. Unknown strings map to JSON.
func ParseFormat(s string) Format {
	switch s {
	case "text":
		return FormatText
	default:
		return FormatJSON
	}
}

// Entry is a single serialized log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger is a leveled structured logger. Child loggers created with With
// or WithComponent share the parent's output and level.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	format    Format
	component string
	fields    map[string]any
}

// Config holds configuration for a Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		mu:     &sync.Mutex{},
		out:    out,
		level:  cfg.Level,
		format: cfg.Format,
		fields: make(map[string]any),
	}
}

// Default returns a logger with default settings (info, JSON, stderr).
func Default() *Logger {
	return New(Config{Level: LevelInfo, Format: FormatJSON})
}

// WithComponent returns a child logger tagged with a component name,
// e.g. "compactor" or "pending-delete".
func (l *Logger) WithComponent(name string) *Logger {
	child := l.child()
	child.component = name
	return child
}

// With returns a child logger with the given fields added to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	child := l.child()
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) child() *Logger {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		mu:        l.mu,
		out:       l.out,
		level:     l.level,
		format:    l.format,
		component: l.component,
		fields:    fields,
	}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields ...map[string]any) { l.log(LevelDebug, msg, fields) }

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields ...map[string]any) { l.log(LevelInfo, msg, fields) }

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields ...map[string]any) { l.log(LevelWarn, msg, fields) }

// Error logs an error message with optional fields.
func (l *Logger) Error(msg string, fields ...map[string]any) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra []map[string]any) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
	}

	n := len(l.fields)
	for _, m := range extra {
		n += len(m)
	}
	if n > 0 {
		entry.Fields = make(map[string]any, n)
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
		for _, m := range extra {
			for k, v := range m {
				entry.Fields[k] = v
			}
		}
	}

	var data []byte
	switch l.format {
	case FormatText:
		data = formatText(entry)
	default:
		data, _ = json.Marshal(entry)
		data = append(data, '\n')
	}

	l.mu.Lock()
	_, _ = l.out.Write(data)
	l.mu.Unlock()
}

func formatText(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, e.Timestamp.Format(time.RFC3339)...)
	buf = append(buf, " ["...)
	buf = append(buf, e.Level...)
	buf = append(buf, "] "...)
	if e.Component != "" {
		buf = append(buf, e.Component...)
		buf = append(buf, ": "...)
	}
	buf = append(buf, e.Message...)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ' ')
		buf = append(buf, k...)
		buf = append(buf, '=')
		switch val := e.Fields[k].(type) {
		case string:
			buf = append(buf, val...)
		default:
			data, _ := json.Marshal(val)
			buf = append(buf, data...)
		}
	}
	buf = append(buf, '\n')
	return buf
}
