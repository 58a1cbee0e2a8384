// Package reclaim implements the background reclamation worker. Each
// cycle expires groups in two stages (blob directories first, database
// rows later), prunes orphaned rows and disk entries, sweeps abandoned
// chunk directories and merge locks out of the upload staging area, and
// removes stale session files.
//
// Every step is best-effort: a failing path is logged and the cycle
// moves on, so one wedged file never stops the rest of the collection.
package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store"
)

// MinInterval is the lower bound for the cycle interval. Configured
// positive values below it are raised.
const MinInterval = time.Minute

// Config configures a Worker.
type Config struct {
	// Interval is the pause between cycles. Zero or negative disables
	// the worker; positive values are clamped to MinInterval.
	Interval time.Duration

	// DataAfter is how long past group expiry the blob directory
	// survives. Default: 72h
	DataAfter time.Duration

	// DBAfter is how long past group expiry the database rows survive.
	// Default: 144h
	DBAfter time.Duration

	// ChunkTTL is the age at which staging directories and merge locks
	// are removed. Default: 24h
	ChunkTTL time.Duration

	// SessionAfter is the age at which untouched session files are
	// removed. Default: 720h
	SessionAfter time.Duration

	// SessionDir is the session file directory. Empty skips the
	// session sweep.
	SessionDir string

	// Metrics receives reclamation observations. Nil disables them.
	Metrics *Metrics
}

// Worker runs reclamation cycles on a timer. Cycles run on the worker
// goroutine itself, so they never overlap, and Stop joins the cycle in
// flight.
type Worker struct {
	db    store.Store
	blobs *blob.Store

	interval     time.Duration
	dataAfter    time.Duration
	dbAfter      time.Duration
	chunkTTL     time.Duration
	sessionAfter time.Duration
	sessionDir   string
	metrics      *Metrics

	mu        sync.Mutex
	started   bool
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a reclamation worker over the given stores.
func New(db store.Store, blobs *blob.Store, cfg Config) *Worker {
	interval := cfg.Interval
	if interval > 0 && interval < MinInterval {
		interval = MinInterval
	}
	if cfg.DataAfter <= 0 {
		cfg.DataAfter = 72 * time.Hour
	}
	if cfg.DBAfter <= 0 {
		cfg.DBAfter = 144 * time.Hour
	}
	if cfg.ChunkTTL <= 0 {
		cfg.ChunkTTL = 24 * time.Hour
	}
	if cfg.SessionAfter <= 0 {
		cfg.SessionAfter = 720 * time.Hour
	}

	return &Worker{
		db:           db,
		blobs:        blobs,
		interval:     interval,
		dataAfter:    cfg.DataAfter,
		dbAfter:      cfg.DBAfter,
		chunkTTL:     cfg.ChunkTTL,
		sessionAfter: cfg.SessionAfter,
		sessionDir:   cfg.SessionDir,
		metrics:      cfg.Metrics,
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// Enabled reports whether the worker will run at all.
func (w *Worker) Enabled() bool {
	return w.interval > 0
}

// Interval returns the effective cycle interval after clamping.
func (w *Worker) Interval() time.Duration {
	return w.interval
}

// Start launches the worker goroutine. Idempotent, and a no-op when the
// interval disables the worker.
func (w *Worker) Start(ctx context.Context) {
	if !w.Enabled() {
		logger.Info("reclamation disabled")
		return
	}

	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("starting reclamation worker",
		"interval", w.interval.String(),
		"data_after", w.dataAfter.String(),
		"db_after", w.dbAfter.String())

	w.wg.Add(1)
	go w.run(ctx)

	go func() {
		w.wg.Wait()
		close(w.stoppedCh)
	}()
}

// Stop signals the worker to exit and waits for the in-flight cycle,
// up to timeout.
func (w *Worker) Stop(timeout time.Duration) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.stoppedCh:
		logger.Info("reclamation worker stopped")
	case <-time.After(timeout):
		logger.Warn("reclamation worker stop timed out")
	}
}

// run is the worker loop. Cycles fire on the ticker and run inline.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle runs one reclamation pass and records its outcome.
func (w *Worker) cycle(ctx context.Context) {
	start := time.Now()
	summary := w.RunCycle(ctx, start.UTC())

	result := ResultOK
	if summary.Errors > 0 {
		result = ResultErrors
	}
	w.metrics.ObserveCycle(result, time.Since(start))

	if summary.Total() > 0 || summary.Errors > 0 {
		logger.Info("reclamation cycle finished",
			"group_rows", summary.GroupRows,
			"group_dirs", summary.GroupDirs,
			"orphan_rows", summary.OrphanRows,
			"orphan_dirs", summary.OrphanDirs,
			"chunks", summary.Chunks,
			"locks", summary.Locks,
			"sessions", summary.Sessions,
			"errors", summary.Errors,
			logger.DurationMs(logger.Duration(start)))
	} else {
		logger.Debug("reclamation cycle finished, nothing to do",
			logger.DurationMs(logger.Duration(start)))
	}
}
