// Package pipeline is the façade over the job queue, transform engine, and
// progress hub. Callers enqueue work and poll job state here; everything
// else happens asynchronously on the worker pools.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"demostudio/internal/config"
	"demostudio/internal/logging"
	"demostudio/internal/media/ffmpeg"
	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/records"
	"demostudio/internal/services"
	"demostudio/internal/services/speech"
	"demostudio/internal/services/storage"
	"demostudio/internal/transform"
	"demostudio/internal/worker"
)

// Pipeline owns the processing stack's lifecycle: construct, Start, Stop,
// Close. No package-level state; every dependency is injected or built here.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	queue   *queue.Store
	records *records.Store
	hub     *progress.Hub
	pool    *worker.Pool
	engine  *transform.Engine
}

// Option overrides a default collaborator, primarily for tests.
type Option func(*builder)

type builder struct {
	gateway     storage.Gateway
	runner      ffmpeg.Runner
	synthesizer speech.Synthesizer
	engineOpts  []transform.EngineOption
}

// WithGateway substitutes the asset storage gateway.
func WithGateway(gateway storage.Gateway) Option {
	return func(b *builder) { b.gateway = gateway }
}

// WithRunner substitutes the ffmpeg runner.
func WithRunner(runner ffmpeg.Runner) Option {
	return func(b *builder) { b.runner = runner }
}

// WithSynthesizer substitutes the speech synthesizer.
func WithSynthesizer(synthesizer speech.Synthesizer) Option {
	return func(b *builder) { b.synthesizer = synthesizer }
}

// WithEngineOptions forwards options to the transform engine.
func WithEngineOptions(opts ...transform.EngineOption) Option {
	return func(b *builder) { b.engineOpts = append(b.engineOpts, opts...) }
}

// New wires a pipeline from configuration. Stores are opened immediately;
// workers do not run until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	recordStore, err := records.Open(cfg)
	if err != nil {
		_ = queueStore.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}

	if b.gateway == nil {
		gateway, err := storage.NewFilesystem(cfg)
		if err != nil {
			_ = queueStore.Close()
			_ = recordStore.Close()
			return nil, err
		}
		b.gateway = gateway
	}
	if b.runner == nil {
		b.runner = ffmpeg.ExecRunner{}
	}
	if b.synthesizer == nil {
		if strings.TrimSpace(cfg.Speech.APIKey) == "" {
			b.synthesizer = speech.Disabled{}
		} else {
			synthesizer, err := speech.New(cfg)
			if err != nil {
				_ = queueStore.Close()
				_ = recordStore.Close()
				return nil, fmt.Errorf("build speech client: %w", err)
			}
			b.synthesizer = synthesizer
		}
	}

	engine := transform.NewEngine(cfg, recordStore, b.gateway, b.runner, b.synthesizer, logger, b.engineOpts...)
	hub := progress.NewHub()
	pool := worker.NewPool(cfg, queueStore, hub, logger)

	for lane, handler := range map[queue.Lane]worker.Handler{
		queue.LaneTransform: worker.TransformHandler(engine),
		queue.LaneVoice:     worker.VoiceHandler(engine),
		queue.LaneExport:    worker.ExportHandler(engine),
	} {
		if err := pool.Register(lane, handler); err != nil {
			_ = queueStore.Close()
			_ = recordStore.Close()
			return nil, fmt.Errorf("register %s lane: %w", lane, err)
		}
	}

	return &Pipeline{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		queue:   queueStore,
		records: recordStore,
		hub:     hub,
		pool:    pool,
		engine:  engine,
	}, nil
}

// Start launches the worker pools.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.pool.Start(ctx)
}

// Stop drains the worker pools.
func (p *Pipeline) Stop() {
	p.pool.Stop()
}

// Close stops workers and releases the stores.
func (p *Pipeline) Close() error {
	p.Stop()
	queueErr := p.queue.Close()
	recordsErr := p.records.Close()
	if queueErr != nil {
		return queueErr
	}
	return recordsErr
}

// EnqueueTransform schedules post-upload processing for a recording.
// Execution is asynchronous; the call returns once the queue accepts the job.
func (p *Pipeline) EnqueueTransform(ctx context.Context, recordingID, sourceURL string) (string, error) {
	payload, err := queue.NewTransformPayload(recordingID, sourceURL)
	if err != nil {
		return "", err
	}
	job, err := p.queue.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "enqueue transform", "queue unavailable", err)
	}
	return job.ID, nil
}

// EnqueueVoice schedules narration synthesis for the given segments.
func (p *Pipeline) EnqueueVoice(ctx context.Context, recordingID string, segments []records.ScriptSegment) (string, error) {
	payload, err := queue.NewVoicePayload(recordingID, segments)
	if err != nil {
		return "", err
	}
	job, err := p.queue.Enqueue(ctx, queue.LaneVoice, queue.KindGenerateAudio, payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "enqueue voice", "queue unavailable", err)
	}
	return job.ID, nil
}

// EnqueueExport schedules an export render and returns the job id used to
// poll its status.
func (p *Pipeline) EnqueueExport(ctx context.Context, recordingID string, format records.ExportFormat, options records.ExportOptions) (string, error) {
	payload, err := queue.NewExportPayload(recordingID, format, options)
	if err != nil {
		return "", err
	}
	job, err := p.queue.Enqueue(ctx, queue.LaneExport, queue.KindExport, payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "enqueue export", "queue unavailable", err)
	}
	return job.ID, nil
}

// GetJob returns any job by id, nil when absent.
func (p *Pipeline) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	return p.queue.GetByID(ctx, jobID)
}

// GetExportJob returns an export job's view, nil when absent or when the id
// belongs to another lane.
func (p *Pipeline) GetExportJob(ctx context.Context, jobID string) (*queue.Job, error) {
	job, err := p.queue.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.Lane != queue.LaneExport {
		return nil, nil
	}
	return job, nil
}

// Stats returns a point-in-time snapshot of every lane's state counts.
func (p *Pipeline) Stats(ctx context.Context) (map[queue.Lane]queue.Stats, error) {
	stats := make(map[queue.Lane]queue.Stats, len(queue.Lanes()))
	for _, lane := range queue.Lanes() {
		laneStats, err := p.queue.LaneStats(ctx, lane)
		if err != nil {
			return nil, err
		}
		stats[lane] = laneStats
	}
	return stats, nil
}

// Hub exposes the live progress hub for subscribers.
func (p *Pipeline) Hub() *progress.Hub {
	return p.hub
}

// Queue exposes the underlying job store.
func (p *Pipeline) Queue() *queue.Store {
	return p.queue
}

// Records exposes the underlying recording store.
func (p *Pipeline) Records() *records.Store {
	return p.records
}
