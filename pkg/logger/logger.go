package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/ncruces/go-strftime"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

type charmLogger struct {
	l *charmlog.Logger
}

// NewWriterLogger builds a logger that writes to an io.Writer at the given
// level ("DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"; case-insensitive).
func NewWriterLogger(w io.Writer, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "gptcli",
		Level:           lvl,
	})
	return charmLogger{l: l}, nil
}

// ParseLevel maps the CLI level names onto charm log levels.
func ParseLevel(level string) (charmlog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return charmlog.DebugLevel, nil
	case "", "INFO":
		return charmlog.InfoLevel, nil
	case "WARN", "WARNING":
		return charmlog.WarnLevel, nil
	case "ERROR":
		return charmlog.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return charmlog.FatalLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
}

// OpenFile creates the log file named by pattern, expanding strftime codes
// against now. Parent directories are created as needed.
func OpenFile(pattern string, now time.Time) (*os.File, error) {
	name := strftime.Format(pattern, now)
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func (l charmLogger) Info(msg string, obj any)  { l.l.Info(msg, keyvals(obj)...) }
func (l charmLogger) Warn(msg string, obj any)  { l.l.Warn(msg, keyvals(obj)...) }
func (l charmLogger) Debug(msg string, obj any) { l.l.Debug(msg, keyvals(obj)...) }
func (l charmLogger) Error(msg string, obj any) { l.l.Error(msg, keyvals(obj)...) }

// keyvals flattens a field map into sorted key/value pairs; any other value
// is logged under "obj".
func keyvals(obj any) []any {
	switch v := obj.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(v)*2)
		for _, k := range keys {
			out = append(out, k, v[k])
		}
		return out
	default:
		return []any{"obj", v}
	}
}

// Debug writes a debug log when logger is non-nil.
func Debug(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
