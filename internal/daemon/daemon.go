package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/session"
)

// Daemon owns the periodic offline-queue drain and the single-instance lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *session.Store
	coord  *pipeline.Coordinator

	lockPath string
	lock     *flock.Flock

	interval time.Duration
	running  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	OfflineDepth int
	StorePath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *session.Store, coord *pipeline.Coordinator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || coord == nil {
		return nil, errors.New("daemon requires config, store, and coordinator")
	}

	interval := time.Duration(cfg.Submission.DrainInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "quilld.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		coord:    coord,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		interval: interval,
	}, nil
}

// Start acquires the daemon lock and launches the drain loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quill daemon instance is already running")
	}

	// With the instance lock held, no other process is mid-submission, so
	// attempts orphaned by the previous run can be resolved safely.
	if reclaimed, err := d.coord.Reclaim(ctx); err != nil {
		d.logger.Error("reclaim of interrupted submissions failed", logging.Error(err))
	} else if reclaimed > 0 {
		d.logger.Info("reclaimed interrupted submissions", logging.Int("count", reclaimed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.drainLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("quill daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("drain_interval", d.interval),
	)
	return nil
}

func (d *Daemon) drainLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// One pass at startup so queued payloads from a previous run do not
	// wait out a full interval.
	d.drainOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Daemon) drainOnce(ctx context.Context) {
	result, err := d.coord.Drain(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("offline drain failed", logging.Error(err))
		}
		return
	}
	if result.Delivered > 0 || result.Failed > 0 {
		d.logger.Info("offline drain complete",
			logging.Int("delivered", result.Delivered),
			logging.Int("failed", result.Failed),
		)
	}
}

// Stop halts the drain loop and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("quill daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	depth, err := d.coord.OfflineDepth(ctx)
	if err != nil {
		depth = -1
	}
	return Status{
		Running:      d.running.Load(),
		OfflineDepth: depth,
		StorePath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
