package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// ColorTextHandler is a slog.Handler writing
// "[timestamp] [LEVEL] message key=value ..." lines, coloring the
// level and keys when enabled.
type ColorTextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	prefix   string // dotted group prefix for record attr keys
	useColor bool
}

// NewColorTextHandler creates a ColorTextHandler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &ColorTextHandler{
		opts:     opts,
		w:        w,
		mu:       &sync.Mutex{},
		useColor: useColor,
	}
}

// Enabled implements slog.Handler.
func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level != nil {
		return level >= h.opts.Level.Level()
	}
	return level >= slog.LevelInfo
}

// Handle formats and writes one record. The line is assembled in a
// local buffer so only the write itself holds the lock.
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, "2006-01-02 15:04:05")
	buf = append(buf, "] ["...)
	buf = append(buf, h.levelLabel(r.Level)...)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	// Pre-bound attrs carry their qualified keys already.
	for _, attr := range h.attrs {
		buf = h.appendAttr(buf, attr)
	}

	r.Attrs(func(a slog.Attr) bool {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		buf = h.appendAttr(buf, a)
		return true
	})

	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

// levelLabel buckets any level into the four labels, colored when
// enabled.
func (h *ColorTextHandler) levelLabel(level slog.Level) string {
	label, color := "ERROR", ansiRed
	switch {
	case level < slog.LevelInfo:
		label, color = "DEBUG", ansiGray
	case level < slog.LevelWarn:
		label, color = "INFO", ansiGreen
	case level < slog.LevelError:
		label, color = "WARN", ansiYellow
	}

	if h.useColor {
		return color + label + ansiReset
	}
	return label
}

// appendAttr appends " key=value" to buf. Empty attrs are dropped.
func (h *ColorTextHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()

	buf = append(buf, ' ')
	if h.useColor {
		buf = append(buf, ansiCyan...)
		buf = append(buf, a.Key...)
		buf = append(buf, ansiReset...)
	} else {
		buf = append(buf, a.Key...)
	}
	buf = append(buf, '=')
	return append(buf, renderValue(a.Value)...)
}

// renderValue flattens a slog.Value to its text form.
func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

// clone copies the handler, sharing the write lock with the parent.
func (h *ColorTextHandler) clone() *ColorTextHandler {
	return &ColorTextHandler{
		opts:     h.opts,
		w:        h.w,
		mu:       h.mu,
		attrs:    append([]slog.Attr{}, h.attrs...),
		prefix:   h.prefix,
		useColor: h.useColor,
	}
}

// WithAttrs implements slog.Handler. The attrs are qualified with the
// current group prefix at bind time.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return nh
}

// WithGroup implements slog.Handler. Grouped attrs render with dotted
// keys, "group.key=value".
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.prefix = h.prefix + name + "."
	return nh
}
