package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	return store
}

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *Store) {
	t.Helper()

	store := newTestStore(t)
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret, Lifetime: time.Hour})
	require.NoError(t, err)
	return NewManager(store, tokens, cfg), store
}

func TestSession_Unlock(t *testing.T) {
	sess := &Session{ID: "s1"}

	assert.False(t, sess.IsUnlocked("g1"))

	sess.Unlock("g1")
	sess.Unlock("g1")
	sess.Unlock("g2")

	assert.True(t, sess.IsUnlocked("g1"))
	assert.True(t, sess.IsUnlocked("g2"))
	assert.Equal(t, []string{"g1", "g2"}, sess.UnlockedGroups)
}

func TestSession_RememberGroup(t *testing.T) {
	sess := &Session{ID: "s1"}

	sess.RememberGroup("a", 3)
	sess.RememberGroup("b", 3)
	sess.RememberGroup("c", 3)
	assert.Equal(t, []string{"c", "b", "a"}, sess.RecentGroups)

	// Revisiting moves to the front without duplicating.
	sess.RememberGroup("a", 3)
	assert.Equal(t, []string{"a", "c", "b"}, sess.RecentGroups)

	// The cap drops the oldest entry.
	sess.RememberGroup("d", 3)
	assert.Equal(t, []string{"d", "a", "c"}, sess.RecentGroups)

	sess.RememberGroup("e", 0)
	assert.Empty(t, sess.RecentGroups)
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	sess := &Session{
		ID:             "abc-123",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		UnlockedGroups: []string{"g1"},
		UnifiedOK:      true,
		RecentGroups:   []string{"g1", "g2"},
	}
	require.NoError(t, store.Save(sess))

	// The state file is private to the server.
	info, err := os.Stat(filepath.Join(store.Dir(), "abc-123.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load("abc-123")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.True(t, sess.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, sess.UnlockedGroups, loaded.UnlockedGroups)
	assert.True(t, loaded.UnifiedOK)
	assert.False(t, loaded.CreateOK)
	assert.Equal(t, sess.RecentGroups, loaded.RecentGroups)
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsPathIDs(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", ".", "..", "../etc/passwd", `a\b`, "a/b"} {
		_, err := store.Load(id)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)

		assert.Error(t, store.Save(&Session{ID: id}), "id %q", id)
	}
}

func TestStore_CorruptFileTreatedAsMissing(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(store.Dir(), "torn.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load("torn")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Session{ID: "gone"}))
	require.NoError(t, store.Delete("gone"))
	require.NoError(t, store.Delete("gone"))

	_, err := store.Load("gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenService_RoundTrip(t *testing.T) {
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret, Lifetime: time.Hour})
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := tokens.Issue("sess-1", now)
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "groupbin", claims.Issuer)
}

func TestTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestTokenService_Expired(t *testing.T) {
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret, Lifetime: time.Minute})
	require.NoError(t, err)

	token, err := tokens.Issue("sess-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = tokens.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	other, err := NewTokenService(TokenConfig{Secret: "ffffffffffffffffffffffffffffffff"})
	require.NoError(t, err)

	token, err := tokens.Issue("sess-1", time.Now())
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Garbage(t *testing.T) {
	tokens, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	_, err = tokens.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_ResolveCreatesSession(t *testing.T) {
	mgr, store := newTestManager(t, ManagerConfig{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	sess, err := mgr.Resolve(w, r)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	// The state file exists and the cookie is set.
	_, err = store.Load(sess.ID)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Positive(t, cookie.MaxAge)
}

func TestManager_ResolveReusesSession(t *testing.T) {
	mgr, _ := newTestManager(t, ManagerConfig{})

	w := httptest.NewRecorder()
	sess, err := mgr.Resolve(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, mgr.Unlock(sess, "g1"))

	// Replay the cookie on a second request.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(w.Result().Cookies()[0])
	w2 := httptest.NewRecorder()

	again, err := mgr.Resolve(w2, r)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)
	assert.True(t, again.IsUnlocked("g1"))
	assert.Empty(t, w2.Result().Cookies(), "no new cookie for a live session")
}

func TestManager_InvalidCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t, ManagerConfig{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	w := httptest.NewRecorder()

	sess, err := mgr.Resolve(w, r)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestManager_VanishedStateStartsFresh(t *testing.T) {
	mgr, store := newTestManager(t, ManagerConfig{})

	w := httptest.NewRecorder()
	sess, err := mgr.Resolve(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	// The session file was swept while the cookie stayed valid.
	require.NoError(t, store.Delete(sess.ID))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(w.Result().Cookies()[0])
	w2 := httptest.NewRecorder()

	fresh, err := mgr.Resolve(w2, r)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func TestManager_RememberGroupCap(t *testing.T) {
	mgr, store := newTestManager(t, ManagerConfig{MaxRecentGroups: 2})

	w := httptest.NewRecorder()
	sess, err := mgr.Resolve(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.NoError(t, mgr.RememberGroup(sess, "a"))
	require.NoError(t, mgr.RememberGroup(sess, "b"))
	require.NoError(t, mgr.RememberGroup(sess, "c"))

	loaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, loaded.RecentGroups)
}
