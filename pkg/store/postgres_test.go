//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/metorm/groupBin/pkg/store/models"
)

// createPostgresTestStore starts a disposable PostgreSQL container and
// returns a store connected to it.
//
// PostgreSQL logs "database system is ready" twice during startup (once
// during bootstrap, once when fully ready), so we wait for 2 occurrences.
func createPostgresTestStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("groupbin_test"),
		postgres.WithUsername("groupbin_test"),
		postgres.WithPassword("groupbin_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	store, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "groupbin_test",
			User:     "groupbin_test",
			Password: "groupbin_test",
			SSLMode:  "disable",
		},
	})
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestPostgresStoreLifecycle runs one full pass over the store against a
// real PostgreSQL backend: group, file, versioning, and the reclamation
// queries that depend on backend SQL semantics.
func TestPostgresStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	store := createPostgresTestStore(t)
	ctx := context.Background()

	if err := store.Healthcheck(ctx); err != nil {
		t.Fatalf("healthcheck failed: %v", err)
	}

	groupID, err := store.CreateGroup(ctx, &models.Group{
		Name:      "pg-smoke",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to create group: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	file := &models.File{
		GroupID:          groupID,
		OriginalFilename: "smoke.txt",
		StoredFilename:   "pg001.txt",
		Size:             42,
		UploadedAt:       now,
	}
	first := &models.FileVersion{StoredFilename: "pg001.txt", UploadedAt: now, Size: 42}
	if err := store.CreateFileWithVersion(ctx, file, first); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	second := &models.FileVersion{StoredFilename: "pg002.txt", UploadedAt: now.Add(time.Minute), Size: 43}
	if err := store.AppendVersion(ctx, file.ID, second); err != nil {
		t.Fatalf("failed to append version: %v", err)
	}

	loaded, err := store.GetFileWithVersions(ctx, file.ID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if len(loaded.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(loaded.Versions))
	}
	if loaded.Versions[0].ID != second.ID {
		t.Error("expected newest version first")
	}
	if loaded.StoredFilename != "pg001.txt" {
		t.Errorf("expected file row to keep its creation-time stored name, got %q", loaded.StoredFilename)
	}

	known, err := store.StoredNameKnown(ctx, "pg001.txt")
	if err != nil {
		t.Fatalf("stored name lookup failed: %v", err)
	}
	if !known {
		t.Error("expected pg001.txt to be known")
	}

	// Remove only the group row and verify the orphan queries see the
	// stranded file and, after the file sweep, its versions.
	if err := store.DB().Exec("DELETE FROM groups WHERE id = ?", groupID).Error; err != nil {
		t.Fatalf("failed to remove group row: %v", err)
	}

	orphanFiles, err := store.ListOrphanFiles(ctx)
	if err != nil {
		t.Fatalf("failed to list orphan files: %v", err)
	}
	if len(orphanFiles) != 1 || orphanFiles[0].ID != file.ID {
		t.Fatalf("expected single orphan file %s, got %+v", file.ID, orphanFiles)
	}

	if err := store.DeleteFilesByID(ctx, []string{file.ID}); err != nil {
		t.Fatalf("failed to delete orphan files: %v", err)
	}

	orphanVersions, err := store.ListOrphanVersions(ctx)
	if err != nil {
		t.Fatalf("failed to list orphan versions: %v", err)
	}
	if len(orphanVersions) != 2 {
		t.Fatalf("expected 2 orphan versions, got %d", len(orphanVersions))
	}

	ids := []string{orphanVersions[0].ID, orphanVersions[1].ID}
	if err := store.DeleteVersionsByID(ctx, ids); err != nil {
		t.Fatalf("failed to delete orphan versions: %v", err)
	}

	if _, err := store.GetVersion(ctx, first.ID); !errors.Is(err, models.ErrVersionNotFound) {
		t.Error("expected versions to be gone after sweep")
	}
}
