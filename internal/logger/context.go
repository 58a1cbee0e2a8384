package logger

import (
	"context"
	"time"
)

// lcKey keys the LogContext entry in a context.Context.
type lcKey struct{}

// LogContext carries the per-request fields every log line inside the
// request repeats. The request middleware seeds it; the *Ctx logging
// functions read it back.
type LogContext struct {
	RequestID string
	ClientIP  string
	StartTime time.Time
}

// NewLogContext starts a LogContext for a request from clientIP,
// stamping the start time.
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, lcKey{}, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(lcKey{}).(*LogContext)
	return lc
}
