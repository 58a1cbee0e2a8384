//go:build e2e

// Package helpers provides the in-process server environment for E2E
// tests. Each environment runs the full stack against per-test temp
// directories, with the HTTP API served by an httptest server, so tests
// exercise the same router, handlers, stores, and chunk assembler a
// deployed server runs.
package helpers

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metorm/groupBin/pkg/api"
	"github.com/metorm/groupBin/pkg/api/handlers"
	"github.com/metorm/groupBin/pkg/apiclient"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/session"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/upload"
)

// testSecret signs session tokens in tests. 32+ characters.
const testSecret = "e2e-test-secret-key-0123456789abcdef"

// Options tunes the test server. The zero value runs an open server
// with no passwords and no size limit.
type Options struct {
	UnifiedPassword string
	CreatePassword  string
	MaxUploadSize   int64
	DefaultDuration time.Duration
	MaxDuration     time.Duration
}

// TestEnvironment is one complete server stack over temp directories.
// Everything is cleaned up with the test.
type TestEnvironment struct {
	DB        store.Store
	Blobs     *blob.Store
	Assembler *upload.Assembler
	Service   *service.Service
	Sessions  *session.Manager
	Server    *httptest.Server

	SessionDir string
	UploadRoot string
}

// NewTestEnvironment builds the full stack in a temp directory and
// serves it. Failures are reported via t.Fatal.
func NewTestEnvironment(t *testing.T, opts Options) *TestEnvironment {
	t.Helper()

	dir := t.TempDir()

	db, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(dir, "groupbin.db")},
	})
	require.NoError(t, err, "open store")
	t.Cleanup(func() { _ = db.Close() })

	uploadRoot := filepath.Join(dir, "files")
	blobs, err := blob.New(blob.DefaultConfig(uploadRoot))
	require.NoError(t, err, "open blob store")

	assembler := upload.New(blobs, db, upload.Config{MaxSize: opts.MaxUploadSize})

	sessionDir := filepath.Join(dir, "sessions")
	sessionStore, err := session.NewStore(sessionDir)
	require.NoError(t, err, "open session store")

	tokens, err := session.NewTokenService(session.TokenConfig{Secret: testSecret})
	require.NoError(t, err, "token service")

	sessions := session.NewManager(sessionStore, tokens, session.ManagerConfig{})

	svc := service.New(db, blobs, service.Config{
		DefaultDuration: opts.DefaultDuration,
		MaxDuration:     opts.MaxDuration,
		MaxSize:         opts.MaxUploadSize,
	})

	router := api.NewRouter(api.Deps{
		Service:   svc,
		Assembler: assembler,
		Sessions:  sessions,
		DB:        db,
		Auth: handlers.AuthOptions{
			UnifiedPassword: opts.UnifiedPassword,
			CreatePassword:  opts.CreatePassword,
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestEnvironment{
		DB:         db,
		Blobs:      blobs,
		Assembler:  assembler,
		Service:    svc,
		Sessions:   sessions,
		Server:     server,
		SessionDir: sessionDir,
		UploadRoot: uploadRoot,
	}
}

// Client returns a fresh API client against this environment. Each
// client gets its own cookie jar, so two clients are two independent
// browser sessions.
func (env *TestEnvironment) Client() *apiclient.Client {
	return apiclient.New(env.Server.URL)
}
