package reclaim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store/models"
)

const lockSuffix = ".lock"

// Summary counts what one reclamation cycle removed.
type Summary struct {
	GroupRows  int // expired groups hard-deleted with their rows
	GroupDirs  int // blob directories removed ahead of the rows
	OrphanRows int // file and version rows with no parent
	OrphanDirs int // unknown directories and stray files under the root
	Chunks     int // abandoned chunk staging directories
	Locks      int // stale merge lock files
	Sessions   int // stale session files
	Errors     int
}

// Total returns the number of removed artifacts across all kinds.
func (s Summary) Total() int {
	return s.GroupRows + s.GroupDirs + s.OrphanRows + s.OrphanDirs +
		s.Chunks + s.Locks + s.Sessions
}

// RunCycle performs one reclamation pass as of now. Steps run in order
// and are individually best-effort; failures are logged, counted, and
// skipped over.
func (w *Worker) RunCycle(ctx context.Context, now time.Time) Summary {
	ctx, span := telemetry.StartReclaimSpan(ctx, "cycle")
	defer span.End()

	var s Summary

	w.expireHard(ctx, now, &s)
	w.expireData(ctx, now, &s)
	w.pruneOrphanRows(ctx, &s)
	w.pruneOrphanDisk(ctx, now, &s)
	w.sweepSessions(now, &s)

	w.metrics.ObserveRemoved(KindGroupRows, s.GroupRows)
	w.metrics.ObserveRemoved(KindGroupDirs, s.GroupDirs)
	w.metrics.ObserveRemoved(KindOrphanRows, s.OrphanRows)
	w.metrics.ObserveRemoved(KindOrphanDirs, s.OrphanDirs)
	w.metrics.ObserveRemoved(KindChunks, s.Chunks)
	w.metrics.ObserveRemoved(KindLocks, s.Locks)
	w.metrics.ObserveRemoved(KindSessions, s.Sessions)

	telemetry.SetAttributes(ctx, telemetry.ReclaimRemoved(s.Total()))

	return s
}

// expireHard removes groups whose expiry lies past the database horizon:
// rows first (cascading to files and versions), then the blob directory.
func (w *Worker) expireHard(ctx context.Context, now time.Time, s *Summary) {
	groups, err := w.db.ListGroupsExpiredBefore(ctx, now.Add(-w.dbAfter))
	if err != nil {
		logger.Error("reclaim: listing hard-expired groups failed", logger.Err(err))
		s.Errors++
		return
	}

	for _, group := range groups {
		if err := w.db.DeleteGroup(ctx, group.ID); err != nil {
			if errors.Is(err, models.ErrGroupNotFound) {
				continue
			}
			logger.Error("reclaim: deleting expired group failed",
				logger.GroupID(group.ID), logger.Err(err))
			s.Errors++
			continue
		}
		if err := w.blobs.RemoveGroupDir(ctx, group.ID); err != nil {
			// The orphan-disk step picks the directory up next cycle.
			logger.Error("reclaim: removing expired group dir failed",
				logger.GroupID(group.ID), logger.Err(err))
			s.Errors++
		}

		s.GroupRows++
		logger.Info("reclaim: expired group removed",
			logger.GroupID(group.ID),
			"expired_at", group.ExpiresAt)
	}
}

// expireData removes the blob directories of groups past the data
// horizon but not yet past the database horizon. The rows stay so the
// group still renders as expired.
func (w *Worker) expireData(ctx context.Context, now time.Time, s *Summary) {
	groups, err := w.db.ListGroupsExpiredBefore(ctx, now.Add(-w.dataAfter))
	if err != nil {
		logger.Error("reclaim: listing data-expired groups failed", logger.Err(err))
		s.Errors++
		return
	}

	for _, group := range groups {
		// Already swept in an earlier cycle.
		if _, err := os.Stat(w.blobs.GroupDir(group.ID)); err != nil {
			continue
		}

		if err := w.blobs.RemoveGroupDir(ctx, group.ID); err != nil {
			logger.Error("reclaim: removing group data failed",
				logger.GroupID(group.ID), logger.Err(err))
			s.Errors++
			continue
		}

		s.GroupDirs++
		logger.Info("reclaim: expired group data removed",
			logger.GroupID(group.ID),
			"expired_at", group.ExpiresAt)
	}
}

// pruneOrphanRows deletes files whose group is gone and versions whose
// file is gone. It runs after the expiry steps so cascade-eligible rows
// have already vanished.
func (w *Worker) pruneOrphanRows(ctx context.Context, s *Summary) {
	files, err := w.db.ListOrphanFiles(ctx)
	if err != nil {
		logger.Error("reclaim: listing orphan files failed", logger.Err(err))
		s.Errors++
	} else if len(files) > 0 {
		ids := make([]string, len(files))
		for i, f := range files {
			ids[i] = f.ID
		}
		if err := w.db.DeleteFilesByID(ctx, ids); err != nil {
			logger.Error("reclaim: deleting orphan files failed", logger.Err(err))
			s.Errors++
		} else {
			s.OrphanRows += len(ids)
		}
	}

	// Versions orphaned by the file deletions above are caught here in
	// the same cycle.
	versions, err := w.db.ListOrphanVersions(ctx)
	if err != nil {
		logger.Error("reclaim: listing orphan versions failed", logger.Err(err))
		s.Errors++
		return
	}
	if len(versions) == 0 {
		return
	}

	ids := make([]string, len(versions))
	for i, v := range versions {
		ids[i] = v.ID
	}
	if err := w.db.DeleteVersionsByID(ctx, ids); err != nil {
		logger.Error("reclaim: deleting orphan versions failed", logger.Err(err))
		s.Errors++
		return
	}
	s.OrphanRows += len(ids)
}

// pruneOrphanDisk walks the top level of the upload root. Directories
// named after live groups and the staging area are kept; anything else
// goes. Stray top-level files are removed only when no file or version
// row references them.
func (w *Worker) pruneOrphanDisk(ctx context.Context, now time.Time, s *Summary) {
	entries, err := w.blobs.TopLevel(ctx)
	if err != nil {
		logger.Error("reclaim: listing upload root failed", logger.Err(err))
		s.Errors++
		return
	}

	groupIDs, err := w.db.ListGroupIDs(ctx)
	if err != nil {
		logger.Error("reclaim: listing group ids failed", logger.Err(err))
		s.Errors++
		return
	}
	known := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		known[id] = struct{}{}
	}

	for _, entry := range entries {
		path := filepath.Join(w.blobs.Root(), entry.Name)

		switch {
		case entry.Name == blob.TmpDirName:
			w.sweepStaging(now, s)

		case entry.IsDir:
			if _, ok := known[entry.Name]; ok {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				logger.Error("reclaim: removing orphan dir failed",
					logger.Path(path), logger.Err(err))
				s.Errors++
				continue
			}
			s.OrphanDirs++
			logger.Info("reclaim: orphan dir removed", logger.Path(path))

		default:
			referenced, err := w.db.StoredNameKnown(ctx, entry.Name)
			if err != nil {
				logger.Error("reclaim: checking stray file failed",
					logger.Path(path), logger.Err(err))
				s.Errors++
				continue
			}
			if referenced {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("reclaim: removing stray file failed",
					logger.Path(path), logger.Err(err))
				s.Errors++
				continue
			}
			s.OrphanDirs++
			logger.Info("reclaim: stray file removed", logger.Path(path))
		}
	}
}

// sweepStaging removes chunk directories and merge lock files older than
// the chunk TTL. A directory's mtime tracks its newest chunk rename, so
// an upload that is still making progress is never swept.
func (w *Worker) sweepStaging(now time.Time, s *Summary) {
	tmpDir := w.blobs.TmpDir()
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		logger.Error("reclaim: listing staging dir failed", logger.Err(err))
		s.Errors++
		return
	}

	cutoff := now.Add(-w.chunkTTL)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(tmpDir, entry.Name())
		switch {
		case entry.IsDir():
			if err := os.RemoveAll(path); err != nil {
				logger.Error("reclaim: removing stale chunk dir failed",
					logger.Path(path), logger.Err(err))
				s.Errors++
				continue
			}
			s.Chunks++
			logger.Info("reclaim: stale chunk dir removed", logger.Path(path))

		case strings.HasSuffix(entry.Name(), lockSuffix):
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("reclaim: removing stale merge lock failed",
					logger.Path(path), logger.Err(err))
				s.Errors++
				continue
			}
			s.Locks++
			logger.Info("reclaim: stale merge lock removed", logger.Path(path))
		}
	}
}

// sweepSessions removes session files untouched for longer than the
// session TTL.
func (w *Worker) sweepSessions(now time.Time, s *Summary) {
	if w.sessionDir == "" {
		return
	}

	entries, err := os.ReadDir(w.sessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		logger.Error("reclaim: listing session dir failed", logger.Err(err))
		s.Errors++
		return
	}

	cutoff := now.Add(-w.sessionAfter)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(w.sessionDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Error("reclaim: removing stale session failed",
				logger.Path(path), logger.Err(err))
			s.Errors++
			continue
		}
		s.Sessions++
	}
}
