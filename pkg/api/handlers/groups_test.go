//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metorm/groupBin/pkg/api/middleware"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/session"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/upload"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testEnv wires a real service stack over an in-memory database and a
// temporary blob root, shared by the handler tests in this package.
type testEnv struct {
	svc       *service.Service
	db        store.Store
	blobs     *blob.Store
	asm       *upload.Assembler
	sessions  *session.Manager
	sessStore *session.Store
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.New(blob.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}

	sessStore, err := session.NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("Failed to create session store: %v", err)
	}
	tokens, err := session.NewTokenService(session.TokenConfig{Secret: testSecret, Lifetime: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}

	svc := service.New(db, blobs, service.Config{
		DefaultDuration: 48 * time.Hour,
		MaxDuration:     240 * time.Hour,
	})

	return &testEnv{
		svc:       svc,
		db:        db,
		blobs:     blobs,
		asm:       upload.New(blobs, db, upload.Config{}),
		sessions:  session.NewManager(sessStore, tokens, session.ManagerConfig{}),
		sessStore: sessStore,
	}
}

// newSession creates a persisted session the way the middleware would.
func (e *testEnv) newSession(t *testing.T) *session.Session {
	t.Helper()

	sess, err := e.sessions.Resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return sess
}

// withRouteParams installs chi URL parameters on the request.
func withRouteParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withSession attaches a session the way the middleware would.
func withSession(r *http.Request, sess *session.Session) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), sess))
}

func mustCreateGroup(t *testing.T, env *testEnv, params service.CreateGroupParams, now time.Time) string {
	t.Helper()

	group, err := env.svc.CreateGroup(context.Background(), params, now)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	return group.ID
}

func mustRegisterFile(t *testing.T, env *testEnv, params service.UploadParams, content string, now time.Time) string {
	t.Helper()

	fileID, err := env.svc.RegisterUpload(context.Background(), params, bytes.NewReader([]byte(content)), now)
	if err != nil {
		t.Fatalf("RegisterUpload() error = %v", err)
	}
	return fileID
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any, mutate func(*http.Request) *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		req = mutate(req)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestGroupHandler_Create(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{})

	tests := []struct {
		name       string
		body       CreateGroupRequest
		wantStatus int
	}{
		{
			name: "valid group",
			body: CreateGroupRequest{
				Name:          "release binaries",
				DurationHours: 24,
				Creator:       "alice",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "protected group",
			body: CreateGroupRequest{
				Name:     "secrets",
				Password: "hunter2",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       CreateGroupRequest{DurationHours: 24},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, handler.Create, "/group/create", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Errorf("Create() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var resp GroupResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if resp.ID == "" {
				t.Error("Expected a generated group ID")
			}
			if resp.Name != tt.body.Name {
				t.Errorf("Group name = %s, want %s", resp.Name, tt.body.Name)
			}
			if resp.HasPassword != (tt.body.Password != "") {
				t.Errorf("HasPassword = %v, want %v", resp.HasPassword, tt.body.Password != "")
			}
			if !resp.ExpiresAt.After(resp.CreatedAt) {
				t.Error("Expected expiry after creation time")
			}

			if _, err := env.svc.GetGroup(context.Background(), resp.ID); err != nil {
				t.Errorf("Group not found in store: %v", err)
			}
		})
	}
}

func TestGroupHandler_CreateGate(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{CreatePassword: "build-it"})

	t.Run("missing password", func(t *testing.T) {
		w := postJSON(t, handler.Create, "/group/create", CreateGroupRequest{Name: "drop"}, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(t, handler.Create, "/group/create",
			CreateGroupRequest{Name: "drop", CreatePassword: "guess"}, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("correct password unlocks the session", func(t *testing.T) {
		sess := env.newSession(t)

		w := postJSON(t, handler.Create, "/group/create",
			CreateGroupRequest{Name: "drop", CreatePassword: "build-it"},
			func(r *http.Request) *http.Request { return withSession(r, sess) })
		if w.Code != http.StatusCreated {
			t.Fatalf("Create() status = %d, want %d", w.Code, http.StatusCreated)
		}

		loaded, err := env.sessStore.Load(sess.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if !loaded.CreateOK {
			t.Error("Expected CreateOK to be persisted")
		}

		// The same session may now create without resending the password.
		w = postJSON(t, handler.Create, "/group/create",
			CreateGroupRequest{Name: "second"},
			func(r *http.Request) *http.Request { return withSession(r, loaded) })
		if w.Code != http.StatusCreated {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusCreated)
		}
	})
}

func TestGroupHandler_View(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{})
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop", DurationHours: 24}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "doc.txt"}, "v1", now)
	mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, FileID: fileID, Filename: "doc.txt"}, "v2-longer", now.Add(time.Minute))

	view := func(id string, sess *session.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/group/"+id, nil)
		req = withRouteParams(req, map[string]string{"groupID": id})
		if sess != nil {
			req = withSession(req, sess)
		}
		w := httptest.NewRecorder()
		handler.View(w, req)
		return w
	}

	t.Run("open group", func(t *testing.T) {
		sess := env.newSession(t)
		w := view(groupID, sess)
		if w.Code != http.StatusOK {
			t.Fatalf("View() status = %d, want %d", w.Code, http.StatusOK)
		}

		var resp GroupResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Expired {
			t.Error("Expected group to be live")
		}
		if len(resp.Files) != 1 {
			t.Fatalf("Expected 1 file, got %d", len(resp.Files))
		}
		file := resp.Files[0]
		if file.VersionCount != 2 {
			t.Errorf("VersionCount = %d, want 2", file.VersionCount)
		}
		if file.Latest == nil || file.Latest.Size != int64(len("v2-longer")) {
			t.Errorf("Unexpected latest version: %+v", file.Latest)
		}
		if file.Size != int64(len("v2-longer")) {
			t.Errorf("File size = %d, want latest version size", file.Size)
		}

		// The visit lands on the session's recent list.
		loaded, err := env.sessStore.Load(sess.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if len(loaded.RecentGroups) != 1 || loaded.RecentGroups[0] != groupID {
			t.Errorf("RecentGroups = %v, want [%s]", loaded.RecentGroups, groupID)
		}
	})

	t.Run("expired group still resolves", func(t *testing.T) {
		oldID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "stale", DurationHours: 1},
			now.Add(-48*time.Hour))

		w := view(oldID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("View() status = %d, want %d", w.Code, http.StatusOK)
		}
		var resp GroupResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if !resp.Expired {
			t.Error("Expected group to be flagged expired")
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := view("no-such-group", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("View() status = %d, want %d", w.Code, http.StatusNotFound)
		}
		if ct := w.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
			t.Errorf("Content-Type = %s, want %s", ct, ContentTypeProblemJSON)
		}
	})
}

func TestGroupHandler_ViewGate(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{})
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "vault", Password: "hunter2"}, now)

	view := func(sess *session.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/group/"+groupID, nil)
		req = withRouteParams(req, map[string]string{"groupID": groupID})
		if sess != nil {
			req = withSession(req, sess)
		}
		w := httptest.NewRecorder()
		handler.View(w, req)
		return w
	}

	t.Run("locked without a session", func(t *testing.T) {
		if w := view(nil); w.Code != http.StatusUnauthorized {
			t.Errorf("View() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("locked until unlocked", func(t *testing.T) {
		sess := env.newSession(t)
		if w := view(sess); w.Code != http.StatusUnauthorized {
			t.Errorf("View() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}

		w := postJSON(t, handler.Unlock, "/group/"+groupID+"/unlock",
			UnlockRequest{Password: "hunter2"},
			func(r *http.Request) *http.Request {
				return withSession(withRouteParams(r, map[string]string{"groupID": groupID}), sess)
			})
		if w.Code != http.StatusOK {
			t.Fatalf("Unlock() status = %d, want %d", w.Code, http.StatusOK)
		}

		if w := view(sess); w.Code != http.StatusOK {
			t.Errorf("View() status = %d, want %d after unlock", w.Code, http.StatusOK)
		}

		// Unlocks are scoped to the one group.
		otherID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "other", Password: "hunter2"}, now)
		req := httptest.NewRequest(http.MethodGet, "/group/"+otherID, nil)
		req = withSession(withRouteParams(req, map[string]string{"groupID": otherID}), sess)
		w2 := httptest.NewRecorder()
		handler.View(w2, req)
		if w2.Code != http.StatusUnauthorized {
			t.Errorf("View() status = %d, want %d for other group", w2.Code, http.StatusUnauthorized)
		}
	})
}

func TestGroupHandler_UnifiedPassword(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{UnifiedPassword: "master-key"})
	now := time.Now().UTC()

	openID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "open"}, now)
	protectedID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "vault", Password: "hunter2"}, now)

	view := func(id string, sess *session.Session) int {
		req := httptest.NewRequest(http.MethodGet, "/group/"+id, nil)
		req = withSession(withRouteParams(req, map[string]string{"groupID": id}), sess)
		w := httptest.NewRecorder()
		handler.View(w, req)
		return w.Code
	}

	sess := env.newSession(t)

	// With a unified password configured even open groups are gated.
	if code := view(openID, sess); code != http.StatusUnauthorized {
		t.Errorf("View(open) status = %d, want %d", code, http.StatusUnauthorized)
	}

	// The unified password unlocks protected groups too.
	w := postJSON(t, handler.Unlock, "/group/"+protectedID+"/unlock",
		UnlockRequest{Password: "master-key"},
		func(r *http.Request) *http.Request {
			return withSession(withRouteParams(r, map[string]string{"groupID": protectedID}), sess)
		})
	if w.Code != http.StatusOK {
		t.Fatalf("Unlock() status = %d, want %d", w.Code, http.StatusOK)
	}

	if code := view(protectedID, sess); code != http.StatusOK {
		t.Errorf("View(protected) status = %d, want %d", code, http.StatusOK)
	}
	// Passing the unified check opens every group without its own password.
	if code := view(openID, sess); code != http.StatusOK {
		t.Errorf("View(open) status = %d, want %d after unified unlock", code, http.StatusOK)
	}
}

func TestGroupHandler_Unlock(t *testing.T) {
	env := setupEnv(t)
	delay := 30 * time.Millisecond
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{AuthDelay: delay})
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "vault", Password: "hunter2"}, now)

	t.Run("wrong password is delayed", func(t *testing.T) {
		start := time.Now()
		w := postJSON(t, handler.Unlock, "/group/"+groupID+"/unlock",
			UnlockRequest{Password: "guess"},
			func(r *http.Request) *http.Request {
				return withRouteParams(r, map[string]string{"groupID": groupID})
			})
		elapsed := time.Since(start)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Unlock() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if elapsed < delay {
			t.Errorf("Unlock() answered in %v, want at least %v", elapsed, delay)
		}
	})

	t.Run("correct password", func(t *testing.T) {
		sess := env.newSession(t)
		w := postJSON(t, handler.Unlock, "/group/"+groupID+"/unlock",
			UnlockRequest{Password: "hunter2"},
			func(r *http.Request) *http.Request {
				return withSession(withRouteParams(r, map[string]string{"groupID": groupID}), sess)
			})
		if w.Code != http.StatusOK {
			t.Fatalf("Unlock() status = %d, want %d", w.Code, http.StatusOK)
		}

		var resp ActionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if !resp.Success || resp.GroupID != groupID {
			t.Errorf("Unexpected response: %+v", resp)
		}

		loaded, err := env.sessStore.Load(sess.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if !loaded.IsUnlocked(groupID) {
			t.Error("Expected unlock to be persisted")
		}
	})

	t.Run("missing group", func(t *testing.T) {
		w := postJSON(t, handler.Unlock, "/group/nope/unlock",
			UnlockRequest{Password: "hunter2"},
			func(r *http.Request) *http.Request {
				return withRouteParams(r, map[string]string{"groupID": "nope"})
			})
		if w.Code != http.StatusNotFound {
			t.Errorf("Unlock() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestGroupHandler_Refresh(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{})
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop", DurationHours: 24}, now.Add(-time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/group/"+groupID+"/refresh", nil)
	req = withRouteParams(req, map[string]string{"groupID": groupID})
	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Refresh() status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ActionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.Success || resp.ExpiresAt == nil {
		t.Fatalf("Unexpected response: %+v", resp)
	}
	if want := now.Add(23 * time.Hour); resp.ExpiresAt.Before(want) {
		t.Errorf("ExpiresAt = %v, want at least %v", resp.ExpiresAt, want)
	}

	t.Run("missing group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/group/nope/refresh", nil)
		req = withRouteParams(req, map[string]string{"groupID": "nope"})
		w := httptest.NewRecorder()
		handler.Refresh(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("Refresh() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestGroupHandler_Convert(t *testing.T) {
	env := setupEnv(t)
	handler := NewGroupHandler(env.svc, env.sessions, AuthOptions{})
	now := time.Now().UTC()

	convert := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/group/"+id+"/convert-to-readonly", nil)
		req = withRouteParams(req, map[string]string{"groupID": id})
		w := httptest.NewRecorder()
		handler.Convert(w, req)
		return w
	}

	t.Run("allowed group converts once", func(t *testing.T) {
		groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop", AllowConvertToReadonly: true}, now)

		w := convert(groupID)
		if w.Code != http.StatusOK {
			t.Fatalf("Convert() status = %d, want %d", w.Code, http.StatusOK)
		}
		var resp ActionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if !resp.Success || resp.GroupID != groupID {
			t.Errorf("Unexpected response: %+v", resp)
		}

		// A second conversion reports failure without changing anything.
		w = convert(groupID)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Convert() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Success || resp.Message == "" {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("disallowed group", func(t *testing.T) {
		groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "fixed"}, now)

		w := convert(groupID)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Convert() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		var resp ActionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Success {
			t.Error("Expected success false")
		}

		group, err := env.svc.GetGroup(context.Background(), groupID)
		if err != nil {
			t.Fatalf("GetGroup() error = %v", err)
		}
		if group.IsReadonly {
			t.Error("Expected group to stay writable")
		}
	})

	t.Run("missing group", func(t *testing.T) {
		if w := convert("nope"); w.Code != http.StatusNotFound {
			t.Errorf("Convert() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
