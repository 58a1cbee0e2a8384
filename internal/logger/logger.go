// Package logger provides leveled, structured logging on top of
// log/slog, with colored text output on terminals, JSON output for
// aggregation, and optional size-based file rotation.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Config holds logger configuration.
type Config struct {
	Level      string // DEBUG, INFO, WARN, ERROR
	Format     string // text, json
	Output     string // stdout, stderr, or a file path
	MaxSize    int64  // rotate file output after this many bytes (0 = no rotation)
	MaxBackups int    // rotated files to keep
}

var (
	currentLevel  atomic.Int64 // holds a slog.Level
	currentFormat atomic.Value // "text" or "json"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	useColor bool      = true
)

func init() {
	currentLevel.Store(int64(slog.LevelInfo))
	currentFormat.Store("text")

	// Color only when stdout is a terminal.
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	reconfigure()
}

// parseLevel maps a level name to its slog.Level, case-insensitively.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// reconfigure rebuilds the slog handler from the current settings.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(currentLevel.Load()))
	opts := &slog.HandlerOptions{Level: levelVar}

	var handler slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(handler)
}

// Init applies cfg. Output may be "stdout", "stderr", or a file path;
// file output rotates at cfg.MaxSize bytes keeping cfg.MaxBackups
// old files.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, color, err := resolveOutput(cfg)
		if err != nil {
			return err
		}
		mu.Lock()
		output = w
		useColor = color
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// resolveOutput picks the writer for cfg.Output. Color never goes to
// files.
func resolveOutput(cfg Config) (io.Writer, bool, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	}

	w, err := newRotatingFile(cfg.Output, cfg.MaxSize, cfg.MaxBackups)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
	}
	return w, false, nil
}

// InitWithWriter points the logger at a custom writer. Primarily for
// tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
}

// SetLevel sets the minimum log level. Unknown levels are ignored.
func SetLevel(level string) {
	parsed, ok := parseLevel(level)
	if !ok {
		return
	}
	currentLevel.Store(int64(parsed))
	reconfigure()
}

// SetFormat sets the output format, "text" or "json". Unknown formats
// are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func getLogger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

// logAt is the shared emit path. The level gate runs before any
// argument work so disabled calls stay cheap.
func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	if level < slog.Level(currentLevel.Load()) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	} else {
		args = appendContextFields(ctx, args)
	}
	getLogger().Log(ctx, level, msg, args...)
}

// Debug logs at debug level. args alternate keys and values, as in
// Debug("chunk stored", "upload_id", id, "chunk", n).
func Debug(msg string, args ...any) { logAt(nil, slog.LevelDebug, msg, args) }

// Info logs at info level with structured fields.
func Info(msg string, args ...any) { logAt(nil, slog.LevelInfo, msg, args) }

// Warn logs at warn level with structured fields.
func Warn(msg string, args ...any) { logAt(nil, slog.LevelWarn, msg, args) }

// Error logs at error level with structured fields.
func Error(msg string, args ...any) { logAt(nil, slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prepending correlation fields from ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level, prepending correlation fields from ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level, prepending correlation fields from ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level, prepending correlation fields from ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// appendContextFields prepends request correlation fields from ctx.
// The active span, when one exists, contributes trace_id and span_id
// so log lines join up with traces.
func appendContextFields(ctx context.Context, args []any) []any {
	ctxArgs := make([]any, 0, 8+len(args))

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ctxArgs = append(ctxArgs, KeyTraceID, sc.TraceID().String())
		if sc.HasSpanID() {
			ctxArgs = append(ctxArgs, KeySpanID, sc.SpanID().String())
		}
	}

	if lc := FromContext(ctx); lc != nil {
		if lc.RequestID != "" {
			ctxArgs = append(ctxArgs, KeyRequestID, lc.RequestID)
		}
		if lc.ClientIP != "" {
			ctxArgs = append(ctxArgs, KeyClientIP, lc.ClientIP)
		}
	}

	if len(ctxArgs) == 0 {
		return args
	}
	return append(ctxArgs, args...)
}

// Duration returns the time since start in milliseconds, for use with
// DurationMs.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
