// Package logging wraps log/slog for hwpxkit. Records carry the session and
// run they belong to when the context says so.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

type contextKey int

const (
	sessionKey contextKey = iota
	runKey
)

var (
	defaultLogger *slog.Logger
	output        io.Writer = os.Stderr
)

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// Level is a configured log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var slogLevels = map[Level]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLevel reads logging.level. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Format is a configured record encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatText
	// FormatAuto is text on a terminal and JSON otherwise.
	FormatAuto
)

// ParseFormat reads logging.format. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "", "auto":
		return FormatAuto, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// SetOutput redirects loggers created by later InitLogger calls.
func SetOutput(w io.Writer) {
	output = w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// InitLogger replaces the process logger.
func InitLogger(level Level, format Format) {
	lvl, ok := slogLevels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(output) {
			format = FormatText
		}
	}
	var handler slog.Handler = slog.NewJSONHandler(output, opts)
	if format == FormatText {
		handler = slog.NewTextHandler(output, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return defaultLogger
}

// WithSession tags ctx with a session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionID returns the session id of ctx, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

// WithRun tags ctx with the id of the operation being run.
func WithRun(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey, id)
}

// RunID returns the run id of ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey).(string)
	return id
}

// LoggerFromContext returns the process logger with the session and run of
// ctx attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := SessionID(ctx); id != "" {
		logger = logger.With("session", id)
	}
	if id := RunID(ctx); id != "" {
		logger = logger.With("run", id)
	}
	return logger
}

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).ErrorContext(ctx, msg, args...)
}

// SectionWarning logs a section stream that failed to parse and was
// treated as empty.
func SectionWarning(ctx context.Context, section string, err error, args ...any) {
	LoggerFromContext(ctx).Warn("section_skipped",
		append([]any{"section", section, "error", err.Error()}, args...)...)
}

// ResourceWarning logs a reference to a resource missing from the table.
func ResourceWarning(ctx context.Context, unitID int, resourceID string, args ...any) {
	LoggerFromContext(ctx).Warn("resource_dropped",
		append([]any{"unit_id", unitID, "resource_id", resourceID}, args...)...)
}

// BuildEvent logs the end of a pipeline stage.
func BuildEvent(ctx context.Context, stage string, d time.Duration, args ...any) {
	LoggerFromContext(ctx).Info("build_event",
		append([]any{"stage", stage, "duration_ms", d.Milliseconds()}, args...)...)
}
