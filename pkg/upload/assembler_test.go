//go:build integration

package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/store/models"
)

// newTestAssembler builds an assembler over a temp blob root and an
// in-memory database.
func newTestAssembler(t *testing.T, cfg Config) (*Assembler, *blob.Store, store.Store) {
	t.Helper()

	root, err := os.MkdirTemp("", "upload-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	blobs, err := blob.New(blob.DefaultConfig(root))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	db, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(blobs, db, cfg), blobs, db
}

func newTestGroup(t *testing.T, db store.Store, readonly bool) *models.Group {
	t.Helper()

	group := &models.Group{
		Name:       "drop",
		ExpiresAt:  time.Now().Add(time.Hour),
		IsReadonly: readonly,
	}
	id, err := db.CreateGroup(context.Background(), group)
	if err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	group.ID = id
	return group
}

// ingestChunk sends one chunk whose declared size matches the body.
func ingestChunk(t *testing.T, a *Assembler, g *models.Group, req Request, body string) *Result {
	t.Helper()

	req.CurrentChunkSize = int64(len(body))
	res, err := a.Ingest(context.Background(), g, req, strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest chunk %d: %v", req.ChunkNumber, err)
	}
	return res
}

func readBlob(t *testing.T, blobs *blob.Store, groupID, storedName string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(blobs.GroupDir(groupID), storedName))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	return string(data)
}

func TestAssembler_SingleChunkUpload(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	res := ingestChunk(t, a, g, Request{
		Identifier:  "single",
		ChunkNumber: 1,
		TotalChunks: 1,
		TotalSize:   5,
		Filename:    "hello.txt",
		Uploader:    "alice",
		Description: "greeting",
	}, "hello")

	if res.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", res.State)
	}
	if res.GroupID != g.ID {
		t.Errorf("expected group %s, got %s", g.ID, res.GroupID)
	}
	if res.FileID == "" {
		t.Fatal("expected a file ID")
	}

	file, err := db.GetFileWithVersions(ctx, res.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.OriginalFilename != "hello.txt" {
		t.Errorf("expected original filename hello.txt, got %s", file.OriginalFilename)
	}
	if file.Description != "greeting" {
		t.Errorf("expected description greeting, got %s", file.Description)
	}
	if file.Size != 5 {
		t.Errorf("expected size 5, got %d", file.Size)
	}
	if !strings.HasPrefix(file.ContentType, "text/plain") {
		t.Errorf("expected text/plain content type, got %q", file.ContentType)
	}
	if !strings.HasSuffix(file.StoredFilename, ".txt") {
		t.Errorf("expected stored name with .txt suffix, got %s", file.StoredFilename)
	}
	if len(file.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(file.Versions))
	}
	if file.Versions[0].Uploader != "alice" {
		t.Errorf("expected uploader alice, got %s", file.Versions[0].Uploader)
	}
	if file.Versions[0].StoredFilename != file.StoredFilename {
		t.Error("expected initial version to share the file's stored name")
	}

	if got := readBlob(t, blobs, g.ID, file.StoredFilename); got != "hello" {
		t.Errorf("expected blob content hello, got %q", got)
	}

	// Staging is gone after commit.
	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "single")); !os.IsNotExist(err) {
		t.Error("expected chunk dir to be removed")
	}
	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "single.lock")); !os.IsNotExist(err) {
		t.Error("expected merge lock to be removed")
	}
}

func TestAssembler_MultiChunkUpload(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	base := Request{
		Identifier:  "multi",
		TotalChunks: 3,
		TotalSize:   9,
		Filename:    "parts.bin",
	}

	// Chunks arrive out of order; nothing merges until all are present.
	chunk2 := base
	chunk2.ChunkNumber = 2
	if res := ingestChunk(t, a, g, chunk2, "bbbb"); res.State != StateChunkUploaded {
		t.Fatalf("expected StateChunkUploaded, got %v", res.State)
	}

	found, err := a.Probe(ctx, g, Request{Identifier: "multi", ChunkNumber: 2})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !found {
		t.Error("expected chunk 2 to be found after ingest")
	}

	found, err = a.Probe(ctx, g, Request{Identifier: "multi", ChunkNumber: 1})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if found {
		t.Error("expected chunk 1 to be missing")
	}

	chunk1 := base
	chunk1.ChunkNumber = 1
	if res := ingestChunk(t, a, g, chunk1, "aaa"); res.State != StateChunkUploaded {
		t.Fatalf("expected StateChunkUploaded, got %v", res.State)
	}

	chunk3 := base
	chunk3.ChunkNumber = 3
	res := ingestChunk(t, a, g, chunk3, "cc")
	if res.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", res.State)
	}

	file, err := db.GetFile(ctx, res.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.Size != 9 {
		t.Errorf("expected size 9, got %d", file.Size)
	}
	if got := readBlob(t, blobs, g.ID, file.StoredFilename); got != "aaabbbbcc" {
		t.Errorf("expected chunks concatenated in order, got %q", got)
	}

	// After commit the staging tree is gone, so probes report missing.
	found, err = a.Probe(ctx, g, Request{Identifier: "multi", ChunkNumber: 2})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if found {
		t.Error("expected probe to report missing after commit")
	}
}

func TestAssembler_IngestOverwritesSameChunk(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)

	base := Request{
		Identifier:  "redo",
		TotalChunks: 2,
		TotalSize:   8,
		Filename:    "redo.bin",
	}

	chunk1 := base
	chunk1.ChunkNumber = 1
	ingestChunk(t, a, g, chunk1, "XXXX")
	ingestChunk(t, a, g, chunk1, "abcd")

	chunk2 := base
	chunk2.ChunkNumber = 2
	res := ingestChunk(t, a, g, chunk2, "efgh")
	if res.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", res.State)
	}

	file, err := db.GetFile(context.Background(), res.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if got := readBlob(t, blobs, g.ID, file.StoredFilename); got != "abcdefgh" {
		t.Errorf("expected re-sent chunk to win, got %q", got)
	}
}

func TestAssembler_ConcurrentFinalChunks(t *testing.T) {
	a, _, db := newTestAssembler(t, Config{Metrics: NewMetrics(nil)})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	base := Request{
		Identifier:  "race",
		TotalChunks: 3,
		TotalSize:   11,
		Filename:    "race.bin",
	}

	chunk1 := base
	chunk1.ChunkNumber = 1
	ingestChunk(t, a, g, chunk1, "aaa")
	chunk2 := base
	chunk2.ChunkNumber = 2
	ingestChunk(t, a, g, chunk2, "bbb")

	// Two clients retry the final chunk at the same time. Both must
	// succeed, exactly one may commit.
	const attempts = 2
	var wg sync.WaitGroup
	results := make([]*Result, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			final := base
			final.ChunkNumber = 3
			final.CurrentChunkSize = 5
			results[i], errs[i] = a.Ingest(ctx, g, final, strings.NewReader("ccccc"))
		}(i)
	}
	wg.Wait()

	merged := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("ingest %d failed: %v", i, errs[i])
		}
		if results[i].State == StateMerged {
			merged++
		}
	}
	if merged != 1 {
		t.Fatalf("expected exactly one merge, got %d", merged)
	}

	files, err := db.ListFiles(ctx, g.ID)
	if err != nil {
		t.Fatalf("failed to list files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(files))
	}
}

func TestAssembler_ReadonlyGroup(t *testing.T) {
	a, _, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, true)
	ctx := context.Background()

	req := Request{
		Identifier:       "ro",
		ChunkNumber:      1,
		TotalChunks:      1,
		TotalSize:        4,
		CurrentChunkSize: 4,
		Filename:         "nope.txt",
	}

	if _, err := a.Probe(ctx, g, req); !errors.Is(err, ErrReadonly) {
		t.Errorf("expected ErrReadonly from probe, got %v", err)
	}
	if _, err := a.Ingest(ctx, g, req, strings.NewReader("data")); !errors.Is(err, ErrReadonly) {
		t.Errorf("expected ErrReadonly from ingest, got %v", err)
	}

	files, err := db.ListFiles(ctx, g.ID)
	if err != nil {
		t.Fatalf("failed to list files: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files in readonly group, got %d", len(files))
	}
}

func TestAssembler_SizeLimit(t *testing.T) {
	a, _, db := newTestAssembler(t, Config{MaxSize: 100})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	t.Run("equal to the limit is accepted", func(t *testing.T) {
		body := strings.Repeat("x", 100)
		res := ingestChunk(t, a, g, Request{
			Identifier:  "at-limit",
			ChunkNumber: 1,
			TotalChunks: 1,
			TotalSize:   100,
			Filename:    "full.bin",
		}, body)
		if res.State != StateMerged {
			t.Fatalf("expected StateMerged, got %v", res.State)
		}
	})

	t.Run("one byte over is rejected", func(t *testing.T) {
		req := Request{
			Identifier:       "over-limit",
			ChunkNumber:      1,
			TotalChunks:      1,
			TotalSize:        101,
			CurrentChunkSize: 101,
			Filename:         "big.bin",
		}

		_, err := a.Ingest(ctx, g, req, strings.NewReader(strings.Repeat("x", 101)))
		var tooLarge *TooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("expected TooLargeError, got %v", err)
		}
		if tooLarge.Max != 100 {
			t.Errorf("expected max 100, got %d", tooLarge.Max)
		}

		if _, err := a.Probe(ctx, g, req); !errors.As(err, &tooLarge) {
			t.Errorf("expected TooLargeError from probe, got %v", err)
		}
	})
}

func TestAssembler_ChunkSizeMismatch(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	req := Request{
		Identifier:       "mismatch",
		ChunkNumber:      1,
		TotalChunks:      1,
		TotalSize:        10,
		CurrentChunkSize: 10,
		Filename:         "short.bin",
	}

	_, err := a.Ingest(ctx, g, req, strings.NewReader("1234"))
	var mismatch *SizeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SizeMismatchError, got %v", err)
	}
	if mismatch.Expected != 10 || mismatch.Actual != 4 || mismatch.Chunk != 1 {
		t.Errorf("unexpected mismatch details: %+v", mismatch)
	}

	// The bad chunk is deleted, so a probe reports missing.
	found, err := a.Probe(ctx, g, req)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if found {
		t.Error("expected mismatched chunk to be removed")
	}
	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "mismatch", "1")); !os.IsNotExist(err) {
		t.Error("expected chunk file to be gone")
	}
}

func TestAssembler_ChunkNumberAboveTotal(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	res := ingestChunk(t, a, g, Request{
		Identifier:  "stray",
		ChunkNumber: 5,
		TotalChunks: 3,
		TotalSize:   12,
		Filename:    "stray.bin",
	}, "data")

	// The chunk lands on disk but can never complete the upload.
	if res.State != StateChunkUploaded {
		t.Fatalf("expected StateChunkUploaded, got %v", res.State)
	}
	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "stray", "5")); err != nil {
		t.Errorf("expected stray chunk on disk: %v", err)
	}

	files, err := db.ListFiles(ctx, g.ID)
	if err != nil {
		t.Fatalf("failed to list files: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no committed files, got %d", len(files))
	}
}

func TestAssembler_VersionUpload(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	first := ingestChunk(t, a, g, Request{
		Identifier:  "v1",
		ChunkNumber: 1,
		TotalChunks: 1,
		TotalSize:   2,
		Filename:    "doc.txt",
		Uploader:    "alice",
	}, "v1")
	if first.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", first.State)
	}

	original, err := db.GetFile(ctx, first.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}

	second := ingestChunk(t, a, g, Request{
		Identifier:  "v2",
		ChunkNumber: 1,
		TotalChunks: 1,
		TotalSize:   7,
		Filename:    "doc.txt",
		FileID:      first.FileID,
		Uploader:    "bob",
		Comment:     "fixed typos",
	}, "v2-body")
	if second.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", second.State)
	}
	if second.FileID != first.FileID {
		t.Fatalf("expected version upload to reuse file %s, got %s", first.FileID, second.FileID)
	}

	file, err := db.GetFileWithVersions(ctx, first.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if len(file.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(file.Versions))
	}

	// The file row keeps its creation-time fields.
	if file.Size != original.Size {
		t.Errorf("expected file size to stay %d, got %d", original.Size, file.Size)
	}
	if file.StoredFilename != original.StoredFilename {
		t.Error("expected file row to keep its original stored name")
	}

	latest := file.LatestVersion()
	if latest == nil {
		t.Fatal("expected a latest version")
	}
	if latest.Uploader != "bob" || latest.Comment != "fixed typos" {
		t.Errorf("unexpected latest version: %+v", latest)
	}
	if latest.Size != 7 {
		t.Errorf("expected latest version size 7, got %d", latest.Size)
	}
	if got := readBlob(t, blobs, g.ID, latest.StoredFilename); got != "v2-body" {
		t.Errorf("expected latest blob v2-body, got %q", got)
	}

	// Both blobs exist side by side.
	if got := readBlob(t, blobs, g.ID, original.StoredFilename); got != "v1" {
		t.Errorf("expected original blob v1, got %q", got)
	}
}

func TestAssembler_VersionUploadForMissingFile(t *testing.T) {
	a, _, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	res := ingestChunk(t, a, g, Request{
		Identifier:  "ghost",
		ChunkNumber: 1,
		TotalChunks: 1,
		TotalSize:   4,
		Filename:    "ghost.txt",
		FileID:      "no-such-file",
	}, "data")

	// The target vanished, so the upload lands as a fresh file.
	if res.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", res.State)
	}
	if res.FileID == "" || res.FileID == "no-such-file" {
		t.Fatalf("expected a new file ID, got %q", res.FileID)
	}

	if _, err := db.GetFileWithVersions(ctx, res.FileID); err != nil {
		t.Fatalf("expected committed file: %v", err)
	}
}

func TestAssembler_MergeNameCollision(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)

	// A client file named like a chunk number must not clobber chunk 2
	// during the merge.
	base := Request{
		Identifier:  "digits",
		TotalChunks: 2,
		TotalSize:   8,
		Filename:    "2",
	}

	chunk1 := base
	chunk1.ChunkNumber = 1
	ingestChunk(t, a, g, chunk1, "left")

	chunk2 := base
	chunk2.ChunkNumber = 2
	res := ingestChunk(t, a, g, chunk2, "rite")
	if res.State != StateMerged {
		t.Fatalf("expected StateMerged, got %v", res.State)
	}

	file, err := db.GetFile(context.Background(), res.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.OriginalFilename != "2" {
		t.Errorf("expected original filename to stay 2, got %q", file.OriginalFilename)
	}
	if got := readBlob(t, blobs, g.ID, file.StoredFilename); got != "leftrite" {
		t.Errorf("expected merged content leftrite, got %q", got)
	}
}

func TestAssembler_CommitFailureLeavesChunks(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)
	ctx := context.Background()

	base := Request{
		Identifier:  "broken",
		TotalChunks: 2,
		TotalSize:   8,
		Filename:    "broken.bin",
	}

	chunk1 := base
	chunk1.ChunkNumber = 1
	ingestChunk(t, a, g, chunk1, "aaaa")

	// With the database closed the commit must fail, the lock must be
	// released and the chunks kept for a retry.
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	final := base
	final.ChunkNumber = 2
	final.CurrentChunkSize = 4
	_, err := a.Ingest(ctx, g, final, strings.NewReader("bbbb"))

	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected MergeError, got %v", err)
	}
	if mergeErr.GroupID != g.ID {
		t.Errorf("expected group %s in merge error, got %s", g.ID, mergeErr.GroupID)
	}

	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "broken.lock")); !os.IsNotExist(err) {
		t.Error("expected merge lock to be released after failure")
	}
	for _, chunk := range []string{"1", "2"} {
		if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "broken", chunk)); err != nil {
			t.Errorf("expected chunk %s to survive the failed merge: %v", chunk, err)
		}
	}
}

func TestAssembler_SanitizesIdentifierPaths(t *testing.T) {
	a, blobs, db := newTestAssembler(t, Config{})
	g := newTestGroup(t, db, false)

	res := ingestChunk(t, a, g, Request{
		Identifier:  "up/../load id!",
		ChunkNumber: 1,
		TotalChunks: 2,
		TotalSize:   8,
		Filename:    "safe.bin",
	}, "data")
	if res.State != StateChunkUploaded {
		t.Fatalf("expected StateChunkUploaded, got %v", res.State)
	}

	// The staging dir sits under tmp with the hostile bytes replaced.
	if _, err := os.Stat(filepath.Join(blobs.TmpDir(), "up____load_id_", "1")); err != nil {
		t.Errorf("expected sanitized chunk dir: %v", err)
	}
}
