// Package upload implements the server side of the resumable.js chunked
// upload protocol: chunk staging under the blob store's tmp directory,
// completeness checks, merge election through an exclusive lock file, and
// the final commit into the blob store and the database.
//
// Layout per in-flight upload, keyed by the client-supplied identifier:
//
//	<upload_root>/tmp/<identifier>/<n>              completed chunk n
//	<upload_root>/tmp/<identifier>/<n>.un-complete  chunk n still streaming
//	<upload_root>/tmp/<identifier>.lock             merge lock
//
// Chunks become visible only through an atomic rename, so a crashed
// request never leaves a half-written chunk under a final name. Any
// number of workers may stage chunks concurrently; at most one merges.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/store/models"
)

const (
	// ChunkPartName is the multipart form field that carries the chunk body.
	ChunkPartName = "file"

	unCompleteSuffix = ".un-complete"
	lockSuffix       = ".lock"

	stagingDirMode  = 0o755
	stagingFileMode = 0o644

	defaultChunkPollWait = time.Second
	chunkPollStep        = 50 * time.Millisecond
)

// State reports what an accepted ingest call did.
type State int

const (
	// StateChunkUploaded means the chunk was stored but no commit happened:
	// the upload is still incomplete, or another request won the merge.
	StateChunkUploaded State = iota

	// StateMerged means this request merged the chunks and committed the
	// file and version rows.
	StateMerged
)

// Request carries the client-supplied parameters of one probe or ingest
// call. The HTTP layer maps the resumable.js form fields onto it.
type Request struct {
	Identifier       string
	ChunkNumber      int // 1-based
	Filename         string
	TotalChunks      int
	TotalSize        int64
	CurrentChunkSize int64

	// FileID selects version upload: the commit appends a FileVersion to
	// this file instead of creating a new one.
	FileID      string
	Uploader    string
	Description string
	Comment     string
}

// Result is the outcome of a successful ingest call. FileID is set only
// when State is StateMerged.
type Result struct {
	State   State
	FileID  string
	GroupID string
}

// Config configures an Assembler.
type Config struct {
	// MaxSize is the per-file size cap in bytes. Zero disables the check.
	MaxSize int64

	// ChunkPollWait bounds the post-rename visibility check on each
	// accepted chunk. Zero means one second.
	ChunkPollWait time.Duration

	// Metrics receives upload observations. Nil disables them.
	Metrics *Metrics
}

// Assembler stages chunks and assembles completed uploads. All state
// lives on disk, so uploads survive process restarts and multiple
// processes sharing the same upload root cooperate correctly.
type Assembler struct {
	blobs   *blob.Store
	db      store.Store
	maxSize int64
	metrics *Metrics

	pollWait time.Duration
	pollStep time.Duration
}

// New creates an Assembler over the given blob store and database.
func New(blobs *blob.Store, db store.Store, cfg Config) *Assembler {
	pollWait := cfg.ChunkPollWait
	if pollWait <= 0 {
		pollWait = defaultChunkPollWait
	}

	return &Assembler{
		blobs:    blobs,
		db:       db,
		maxSize:  cfg.MaxSize,
		metrics:  cfg.Metrics,
		pollWait: pollWait,
		pollStep: chunkPollStep,
	}
}

// SanitizeIdentifier maps a client-supplied upload identifier to a safe
// path component. Characters outside [A-Za-z0-9_-] become underscores.
func SanitizeIdentifier(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// chunkDir returns the staging directory for the request's upload.
func (a *Assembler) chunkDir(req Request) string {
	return filepath.Join(a.blobs.TmpDir(), SanitizeIdentifier(req.Identifier))
}

// chunkPath returns the final (renamed) path of the request's chunk.
func (a *Assembler) chunkPath(req Request) string {
	return filepath.Join(a.chunkDir(req), strconv.Itoa(req.ChunkNumber))
}

// lockPath returns the merge lock path. The lock is keyed on the
// identifier alone, next to the chunk directory rather than inside it.
func (a *Assembler) lockPath(req Request) string {
	return filepath.Join(a.blobs.TmpDir(), SanitizeIdentifier(req.Identifier)+lockSuffix)
}

// ============================================================================
// Probe
// ============================================================================

// Probe reports whether a chunk is already persisted. It backs the
// resumable.js test request so resuming clients can skip chunks that
// survived an interrupted upload. Only renamed chunks count.
func (a *Assembler) Probe(ctx context.Context, group *models.Group, req Request) (bool, error) {
	if err := validateKey(req); err != nil {
		return false, err
	}
	if err := a.precheck(group, req); err != nil {
		return false, err
	}

	if _, err := os.Stat(a.chunkPath(req)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat chunk: %w", err)
	}
	return true, nil
}

// ============================================================================
// Ingest
// ============================================================================

// Ingest stores one chunk and, when that chunk completes the upload,
// merges all chunks and commits the file. Exactly one of any concurrent
// completing requests commits; the others report StateChunkUploaded.
func (a *Assembler) Ingest(ctx context.Context, group *models.Group, req Request, part io.Reader) (*Result, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, "chunk", group.ID, SanitizeIdentifier(req.Identifier),
		telemetry.UploadChunk(req.ChunkNumber),
		telemetry.UploadTotalChunks(req.TotalChunks),
		telemetry.UploadTotalSize(req.TotalSize))
	defer span.End()

	if err := validateIngest(req); err != nil {
		a.metrics.ObserveChunk(ResultRejected)
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if err := a.precheck(group, req); err != nil {
		a.metrics.ObserveChunk(ResultRejected)
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	written, err := a.writeChunk(req, part)
	if err != nil {
		a.metrics.ObserveChunk(ResultRejected)
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if written != req.CurrentChunkSize {
		if rmErr := os.Remove(a.chunkPath(req)); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.WarnCtx(ctx, "could not remove mismatched chunk",
				logger.Path(a.chunkPath(req)), logger.Err(rmErr))
		}
		a.metrics.ObserveChunk(ResultMismatch)
		err := &SizeMismatchError{Chunk: req.ChunkNumber, Expected: req.CurrentChunkSize, Actual: written}
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	a.waitForChunk(ctx, req)
	a.metrics.ObserveChunk(ResultAccepted)
	logger.DebugCtx(ctx, "chunk stored",
		logger.UploadID(SanitizeIdentifier(req.Identifier)),
		logger.Chunk(req.ChunkNumber),
		logger.TotalChunks(req.TotalChunks),
		logger.Size(written))

	if !a.complete(req) {
		telemetry.SetAttributes(ctx, telemetry.UploadState("chunk_uploaded"))
		return &Result{State: StateChunkUploaded, GroupID: group.ID}, nil
	}

	return a.merge(ctx, group, req)
}

// precheck applies the gates shared by Probe and Ingest, readonly first.
// The size gate only fires when the total size is known; equal to the
// limit passes.
func (a *Assembler) precheck(group *models.Group, req Request) error {
	if group.IsReadonly {
		return ErrReadonly
	}
	if a.maxSize > 0 && req.TotalSize > a.maxSize {
		return &TooLargeError{Size: req.TotalSize, Max: a.maxSize}
	}
	return nil
}

func validateKey(req Request) error {
	if SanitizeIdentifier(req.Identifier) == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidRequest)
	}
	if req.ChunkNumber < 1 {
		return fmt.Errorf("%w: chunk number %d", ErrInvalidRequest, req.ChunkNumber)
	}
	return nil
}

func validateIngest(req Request) error {
	if err := validateKey(req); err != nil {
		return err
	}
	if req.TotalChunks < 1 {
		return fmt.Errorf("%w: total chunks %d", ErrInvalidRequest, req.TotalChunks)
	}
	if req.TotalSize < 0 {
		return fmt.Errorf("%w: total size %d", ErrInvalidRequest, req.TotalSize)
	}
	if req.CurrentChunkSize <= 0 {
		return fmt.Errorf("%w: current chunk size %d", ErrInvalidRequest, req.CurrentChunkSize)
	}
	if req.Filename == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidRequest)
	}
	return nil
}

// writeChunk streams the part to <chunkdir>/<n>.un-complete and renames
// it into place. The staging directory is created on first use.
func (a *Assembler) writeChunk(req Request, part io.Reader) (int64, error) {
	if err := os.MkdirAll(a.chunkDir(req), stagingDirMode); err != nil {
		return 0, fmt.Errorf("create chunk dir: %w", err)
	}

	final := a.chunkPath(req)
	tmp := final + unCompleteSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stagingFileMode)
	if err != nil {
		return 0, fmt.Errorf("create chunk file: %w", err)
	}

	written, err := io.Copy(f, part)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("write chunk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close chunk file: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("finalize chunk: %w", err)
	}
	return written, nil
}

// waitForChunk polls until the renamed chunk is visible and the
// temporary name is gone, for up to pollWait. The rename has already
// succeeded, so failure here only logs a warning.
func (a *Assembler) waitForChunk(ctx context.Context, req Request) {
	final := a.chunkPath(req)
	tmp := final + unCompleteSuffix

	deadline := time.Now().Add(a.pollWait)
	for {
		_, finalErr := os.Stat(final)
		_, tmpErr := os.Stat(tmp)
		if finalErr == nil && os.IsNotExist(tmpErr) {
			return
		}
		if time.Now().After(deadline) {
			logger.WarnCtx(ctx, "chunk rename not settled",
				logger.UploadID(SanitizeIdentifier(req.Identifier)),
				logger.Chunk(req.ChunkNumber),
				logger.Path(final))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.pollStep):
		}
	}
}

// complete reports whether chunks 1..TotalChunks are all present.
// Chunks numbered above TotalChunks never count.
func (a *Assembler) complete(req Request) bool {
	dir := a.chunkDir(req)
	for n := 1; n <= req.TotalChunks; n++ {
		if _, err := os.Stat(filepath.Join(dir, strconv.Itoa(n))); err != nil {
			return false
		}
	}
	return true
}

// ============================================================================
// Merge and Commit
// ============================================================================

// merge runs the merge election and, on winning, assembles and commits
// the upload. Losing the election is not an error.
func (a *Assembler) merge(ctx context.Context, group *models.Group, req Request) (*Result, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, "merge", group.ID, SanitizeIdentifier(req.Identifier),
		telemetry.Filename(req.Filename),
		telemetry.Uploader(req.Uploader))
	defer span.End()

	lockPath := a.lockPath(req)

	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, stagingFileMode)
	if err != nil {
		if os.IsExist(err) {
			// Another request holds the merge lock.
			a.metrics.ObserveMerge(ResultLostElection)
			telemetry.SetAttributes(ctx, telemetry.UploadState("lost_election"))
			return &Result{State: StateChunkUploaded, GroupID: group.ID}, nil
		}
		a.metrics.ObserveMerge(ResultFailed)
		telemetry.RecordError(ctx, err)
		return nil, &MergeError{GroupID: group.ID, Err: fmt.Errorf("acquire merge lock: %w", err)}
	}

	start := time.Now()
	result, size, mergeErr := a.mergeLocked(ctx, group, req)

	// The chunk directory goes away while the lock is still held: a late
	// duplicate of the final chunk must find either the lock taken or the
	// directory gone, never a committed upload it could merge again. On
	// failure the chunks stay in place for a retry or the reclaimer.
	if mergeErr == nil && result.State == StateMerged {
		if rmErr := os.RemoveAll(a.chunkDir(req)); rmErr != nil {
			logger.WarnCtx(ctx, "could not remove chunk dir",
				logger.Path(a.chunkDir(req)), logger.Err(rmErr))
		}
	}

	lock.Close()
	if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.WarnCtx(ctx, "could not remove merge lock",
			logger.Path(lockPath), logger.Err(rmErr))
	}

	switch {
	case mergeErr != nil:
		a.metrics.ObserveMerge(ResultFailed)
		telemetry.RecordError(ctx, mergeErr)
		return nil, &MergeError{GroupID: group.ID, Err: mergeErr}

	case result.State == StateMerged:
		a.metrics.ObserveMerge(ResultCommitted)
		a.metrics.ObserveCommit(size, time.Since(start))
		telemetry.SetAttributes(ctx,
			telemetry.UploadState("merged"),
			telemetry.FileID(result.FileID),
			telemetry.FileSize(size))
		logger.InfoCtx(ctx, "upload merged",
			logger.UploadID(SanitizeIdentifier(req.Identifier)),
			logger.GroupID(group.ID),
			logger.FileID(result.FileID),
			logger.Filename(req.Filename),
			logger.Size(size),
			logger.DurationMs(logger.Duration(start)))

	default:
		a.metrics.ObserveMerge(ResultLostElection)
		telemetry.SetAttributes(ctx, telemetry.UploadState("already_merged"))
	}

	return result, nil
}

// mergeLocked runs with the merge lock held. When the chunk directory
// is already gone another merger has committed, which is reported as
// StateChunkUploaded.
func (a *Assembler) mergeLocked(ctx context.Context, group *models.Group, req Request) (*Result, int64, error) {
	dir := a.chunkDir(req)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return &Result{State: StateChunkUploaded, GroupID: group.ID}, 0, nil
		}
		return nil, 0, fmt.Errorf("stat chunk dir: %w", err)
	}

	merged, size, err := a.concatChunks(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if _, err := os.Stat(merged); err != nil {
		return nil, 0, fmt.Errorf("verify merged file: %w", err)
	}

	storedName := blob.NewStoredName(req.Filename)
	if err := a.blobs.MoveInto(ctx, group.ID, storedName, merged); err != nil {
		return nil, 0, fmt.Errorf("move merged file: %w", err)
	}

	fileID, err := a.commit(ctx, group, req, storedName, size)
	if err != nil {
		return nil, 0, err
	}

	return &Result{State: StateMerged, FileID: fileID, GroupID: group.ID}, size, nil
}

// concatChunks appends chunks 1..TotalChunks in order into a single
// file inside the chunk directory and returns its path and size.
func (a *Assembler) concatChunks(ctx context.Context, req Request) (string, int64, error) {
	dir := a.chunkDir(req)
	dst := filepath.Join(dir, mergeName(req.Filename))

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stagingFileMode)
	if err != nil {
		return "", 0, fmt.Errorf("create merge file: %w", err)
	}

	var size int64
	for n := 1; n <= req.TotalChunks; n++ {
		if err := ctx.Err(); err != nil {
			out.Close()
			return "", 0, err
		}

		chunk, err := os.Open(filepath.Join(dir, strconv.Itoa(n)))
		if err != nil {
			out.Close()
			return "", 0, fmt.Errorf("open chunk %d: %w", n, err)
		}
		copied, err := io.Copy(out, chunk)
		chunk.Close()
		if err != nil {
			out.Close()
			return "", 0, fmt.Errorf("append chunk %d: %w", n, err)
		}
		size += copied
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return "", 0, fmt.Errorf("sync merge file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("close merge file: %w", err)
	}
	return dst, size, nil
}

// mergeName returns the staging name for the merged output. The client
// filename is used unless it could shadow a numbered chunk file or a
// .un-complete temporary, which would corrupt the merge.
func mergeName(filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		name = ""
	}
	if name == "" || allDigits(name) || strings.HasSuffix(name, unCompleteSuffix) {
		return "merged.out"
	}
	return name
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// commit writes the database rows for a merged upload. A request with a
// FileID appends a version to that file; if the file vanished in the
// meantime, or no FileID was given, a new file with an initial version
// is created instead.
func (a *Assembler) commit(ctx context.Context, group *models.Group, req Request, storedName string, size int64) (string, error) {
	now := time.Now().UTC()

	if req.FileID != "" {
		version := &models.FileVersion{
			StoredFilename: storedName,
			UploadedAt:     now,
			Uploader:       req.Uploader,
			Comment:        req.Comment,
			Size:           size,
		}

		err := a.db.AppendVersion(ctx, req.FileID, version)
		if err == nil {
			return req.FileID, nil
		}
		if !errors.Is(err, models.ErrFileNotFound) {
			return "", fmt.Errorf("append version: %w", err)
		}
	}

	file := &models.File{
		GroupID:          group.ID,
		OriginalFilename: req.Filename,
		StoredFilename:   storedName,
		Description:      req.Description,
		Size:             size,
		UploadedAt:       now,
		ContentType:      mime.TypeByExtension(filepath.Ext(req.Filename)),
	}
	version := &models.FileVersion{
		StoredFilename: storedName,
		UploadedAt:     now,
		Uploader:       req.Uploader,
		Size:           size,
	}

	if err := a.db.CreateFileWithVersion(ctx, file, version); err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	return file.ID, nil
}
