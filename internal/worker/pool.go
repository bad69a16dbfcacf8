package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"demostudio/internal/config"
	"demostudio/internal/logging"
	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/services"
)

// Handler executes one claimed job and returns its result payload.
type Handler func(ctx context.Context, job *queue.Job, sink progress.Sink) (result string, err error)

type laneState struct {
	lane        queue.Lane
	concurrency int
	timeout     time.Duration
	handler     Handler
	logger      *slog.Logger
}

// Pool schedules jobs across the configured lanes.
type Pool struct {
	cfg    *config.Config
	store  *queue.Store
	hub    *progress.Hub
	logger *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	lanes   map[queue.Lane]*laneState
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool builds an idle pool. Lanes are registered before Start.
func NewPool(cfg *config.Config, store *queue.Store, hub *progress.Hub, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Pool{
		cfg:          cfg,
		store:        store,
		hub:          hub,
		logger:       logger.With(logging.String(logging.FieldComponent, "worker")),
		pollInterval: poll,
		lanes:        make(map[queue.Lane]*laneState),
	}
}

// Register attaches a handler to a lane using the lane's configured
// concurrency and timeout.
func (p *Pool) Register(lane queue.Lane, handler Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	policy, ok := p.lanePolicy(lane)
	if !ok {
		return fmt.Errorf("unknown lane %q", lane)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pool already running")
	}
	p.lanes[lane] = &laneState{
		lane:        lane,
		concurrency: policy.Concurrency,
		timeout:     time.Duration(policy.TimeoutSeconds) * time.Second,
		handler:     handler,
		logger:      p.logger.With(logging.String(logging.FieldLane, string(lane))),
	}
	return nil
}

func (p *Pool) lanePolicy(lane queue.Lane) (config.LanePolicy, bool) {
	switch lane {
	case queue.LaneTransform:
		return p.cfg.Queue.Transform, true
	case queue.LaneVoice:
		return p.cfg.Queue.Voice, true
	case queue.LaneExport:
		return p.cfg.Queue.Export, true
	}
	return config.LanePolicy{}, false
}

// Start recovers orphaned active jobs and launches the lane workers plus the
// retention pruner.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pool already running")
	}
	if len(p.lanes) == 0 {
		p.mu.Unlock()
		return errors.New("no lanes registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	lanes := make([]*laneState, 0, len(p.lanes))
	for _, lane := range p.lanes {
		lanes = append(lanes, lane)
	}
	for _, lane := range lanes {
		p.wg.Add(lane.concurrency)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if count, err := p.store.ResetStuckActive(runCtx); err != nil {
		p.logger.Warn("failed to reset orphaned active jobs", logging.Error(err))
	} else if count > 0 {
		p.logger.Info("requeued orphaned active jobs", logging.Int64("count", count))
	}

	for _, lane := range lanes {
		for i := 0; i < lane.concurrency; i++ {
			go p.runWorker(runCtx, lane)
		}
	}
	go p.runPruner(runCtx)

	return nil
}

// Stop cancels all workers and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, lane *laneState) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.ClaimNext(ctx, lane.lane)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			lane.logger.Error("failed to claim next job", logging.Error(err))
			p.waitOrShutdown(ctx)
			continue
		}
		if job == nil {
			p.waitOrShutdown(ctx)
			continue
		}

		p.execute(ctx, lane, job)
	}
}

func (p *Pool) execute(ctx context.Context, lane *laneState, job *queue.Job) {
	jobCtx := services.WithLane(ctx, string(lane.lane))
	jobCtx = services.WithJobID(jobCtx, job.ID)
	if lane.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, lane.timeout)
		defer cancel()
	}

	logger := logging.WithContext(jobCtx, lane.logger)
	logger.Info("job started",
		logging.String("kind", job.Kind),
		logging.Int("attempt", job.Attempts))

	sink := p.sinkFor(ctx, job)
	result, err := lane.handler(jobCtx, job, sink)
	if err != nil {
		message := err.Error()
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			message = fmt.Sprintf("timed out after %s: %s", lane.timeout, message)
		}
		state, failErr := p.store.Fail(ctx, job, message)
		if failErr != nil {
			logger.Error("failed to persist job failure", logging.Error(failErr))
			return
		}
		switch state {
		case queue.StateFailed:
			logger.Error("job failed permanently", logging.Error(err))
			p.publish(job, job.Progress, progress.StatusFailed, message)
		default:
			logger.Warn("job attempt failed; rescheduled", logging.Error(err))
			p.publish(job, 0, progress.StatusRetrying, message)
		}
		return
	}

	if err := p.store.Complete(ctx, job.ID, result); err != nil {
		logger.Error("failed to persist job completion", logging.Error(err))
		return
	}
	logger.Info("job completed")
	p.publish(job, 100, progress.StatusCompleted, "")
}

func (p *Pool) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}

const pruneInterval = time.Hour

func (p *Pool) runPruner(ctx context.Context) {
	defer p.wg.Done()

	retention := time.Duration(p.cfg.Queue.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.store.PruneFinished(ctx, retention)
			if err != nil {
				p.logger.Warn("job retention prune failed", logging.Error(err))
				continue
			}
			if removed > 0 {
				p.logger.Info("pruned finished jobs", logging.Int64("removed", removed))
			}
		}
	}
}
