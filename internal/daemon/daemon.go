package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"demostudio/internal/config"
	"demostudio/internal/deps"
	"demostudio/internal/logging"
	"demostudio/internal/pipeline"
	"demostudio/internal/preflight"
	"demostudio/internal/queue"
)

// Daemon owns the background pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Lanes        map[queue.Lane]queue.Stats
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || p == nil || logger == nil {
		return nil, errors.New("daemon requires config, pipeline, and logger")
	}

	lockPath := cfg.LockFilePath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		pipeline: p,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start runs preflight, acquires the daemon lock, and launches the worker
// pools and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if results := preflight.RunAll(ctx, d.cfg); !preflight.Passed(results) {
		var failed []string
		for _, result := range results {
			if result.Passed {
				continue
			}
			failed = append(failed, result.Name)
			d.logger.Error("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(failed, ", "))
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another demostudio daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.pipeline.Start(d.ctx); err != nil {
		d.releaseStartup()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.pipeline.Stop()
		d.releaseStartup()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))
	return nil
}

func (d *Daemon) releaseStartup() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.pipeline.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases pipeline resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.pipeline.Close()
}

// Pipeline exposes the underlying pipeline for CLI embedding.
func (d *Daemon) Pipeline() *pipeline.Pipeline {
	return d.pipeline
}

// APIAddr returns the bound API listener address, empty when not serving.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	lanes, err := d.pipeline.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to collect lane stats", logging.Error(err))
		lanes = nil
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		Lanes:        lanes,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
