// Package middleware provides HTTP middleware for the GroupBin API.
package middleware

import (
	"context"
	"net/http"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/session"
)

// Context key type for storing the resolved session
type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext retrieves the session resolved for this request.
// Returns nil if the session middleware did not run.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// WithSession returns a context carrying the given session.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// Sessions resolves the client's session cookie and stores the session in
// the request context. Requests without a valid cookie get a fresh
// anonymous session and a new cookie.
func Sessions(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Resolve(w, r)
			if err != nil {
				logger.ErrorCtx(r.Context(), "session resolution failed", logger.Err(err))
				http.Error(w, "session store unavailable", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
