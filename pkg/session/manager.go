package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/metorm/groupBin/internal/logger"
)

// DefaultMaxRecentGroups caps the recent-groups list when the manager is
// configured without an explicit limit.
const DefaultMaxRecentGroups = 10

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxRecentGroups caps the recently-visited list kept per session.
	// Default: 10
	MaxRecentGroups int
}

// Manager resolves the session behind an HTTP request and writes state
// changes through to the store. A request without a usable token gets a
// fresh anonymous session; the token is only issued at that point and
// never re-signed afterwards.
type Manager struct {
	store           *Store
	tokens          *TokenService
	maxRecentGroups int
}

// NewManager creates a Manager over the given store and token service.
func NewManager(store *Store, tokens *TokenService, cfg ManagerConfig) *Manager {
	maxRecent := cfg.MaxRecentGroups
	if maxRecent == 0 {
		maxRecent = DefaultMaxRecentGroups
	}

	return &Manager{
		store:           store,
		tokens:          tokens,
		maxRecentGroups: maxRecent,
	}
}

// Resolve returns the request's session. An absent, invalid, or expired
// cookie, or a session file that is gone, all start a fresh session:
// the state file is written and the cookie set on w.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if claims, err := m.tokens.Validate(cookie.Value); err == nil {
			sess, err := m.store.Load(claims.SessionID)
			if err == nil {
				return sess, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}

	return m.create(w)
}

// create starts a fresh anonymous session and sets its cookie.
func (m *Manager) create(w http.ResponseWriter) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}

	token, err := m.tokens.Issue(sess.ID, now)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.tokens.Lifetime().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Debug("session created", logger.SessionID(sess.ID))
	return sess, nil
}

// Save persists a mutated session.
func (m *Manager) Save(sess *Session) error {
	return m.store.Save(sess)
}

// Unlock records a passed group password gate and persists the session.
func (m *Manager) Unlock(sess *Session, groupID string) error {
	sess.Unlock(groupID)
	return m.store.Save(sess)
}

// RememberGroup records a group visit and persists the session.
func (m *Manager) RememberGroup(sess *Session, groupID string) error {
	sess.RememberGroup(groupID, m.maxRecentGroups)
	return m.store.Save(sess)
}
