package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"demostudio/internal/logging"
	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/testsupport"
	"demostudio/internal/worker"
)

func waitForState(t *testing.T, store *queue.Store, id string, want queue.State) *queue.Job {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.State == want {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached %s (currently %#v)", id, want, job)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestPoolCompletesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.PollIntervalSeconds = 0 // fall back to default poll, claims are immediate
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub()

	pool := worker.NewPool(cfg, store, hub, logging.NewNop())
	err := pool.Register(queue.LaneTransform, func(ctx context.Context, job *queue.Job, sink progress.Sink) (string, error) {
		sink.Report(ctx, 50, "halfway")
		return `{"ok":true}`, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, err := store.Enqueue(context.Background(), queue.LaneTransform, queue.KindProcess, payload)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sub := hub.Join(progress.ProcessingChannel("rec-1"))
	defer hub.Leave(sub)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	done := waitForState(t, store, job.ID, queue.StateCompleted)
	if done.Result != `{"ok":true}` || done.Progress != 100 {
		t.Fatalf("unexpected completed job: %#v", done)
	}

	// Both the mid-flight report and the terminal broadcast arrive in order.
	var seen []progress.Event
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case event := <-sub.C:
			seen = append(seen, event)
		case <-timeout:
			t.Fatalf("missing progress events, saw %v", seen)
		}
	}
	if seen[0].Percent != 50 || seen[1].Percent != 100 {
		t.Fatalf("unexpected event percents: %v", seen)
	}
	// Events name the recording directly, not just through the channel string.
	for i, event := range seen {
		if event.RecordingID != "rec-1" {
			t.Fatalf("event %d missing recording id: %#v", i, event)
		}
		if event.JobID != job.ID {
			t.Fatalf("event %d has wrong job id: %#v", i, event)
		}
	}
	if seen[0].Status != progress.StatusProcessing || seen[1].Status != progress.StatusCompleted {
		t.Fatalf("unexpected statuses: %q %q", seen[0].Status, seen[1].Status)
	}
	if seen[0].Stage != "halfway" {
		t.Fatalf("stage label not preserved: %#v", seen[0])
	}
}

func TestPoolRetriesUntilExhaustion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Transform.BackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub()

	var attempts atomic.Int32
	pool := worker.NewPool(cfg, store, hub, logging.NewNop())
	_ = pool.Register(queue.LaneTransform, func(context.Context, *queue.Job, progress.Sink) (string, error) {
		attempts.Add(1)
		return "", errors.New("download timed out")
	})

	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, _ := store.Enqueue(context.Background(), queue.LaneTransform, queue.KindProcess, payload)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	failed := waitForState(t, store, job.ID, queue.StateFailed)
	if failed.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", failed.Attempts)
	}
	if failed.Error != "download timed out" {
		t.Fatalf("expected last error preserved, got %q", failed.Error)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("handler ran %d times, want 3", got)
	}
}

func TestPoolRecoversAfterTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Transform.BackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub()

	var attempts atomic.Int32
	pool := worker.NewPool(cfg, store, hub, logging.NewNop())
	_ = pool.Register(queue.LaneTransform, func(context.Context, *queue.Job, progress.Sink) (string, error) {
		if attempts.Add(1) < 3 {
			return "", errors.New("flaky dependency")
		}
		return "", nil
	})

	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, _ := store.Enqueue(context.Background(), queue.LaneTransform, queue.KindProcess, payload)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	done := waitForState(t, store, job.ID, queue.StateCompleted)
	if done.Attempts != 3 {
		t.Fatalf("expected success on attempt 3, got %d", done.Attempts)
	}
}

func TestPoolEnforcesLaneTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Voice.TimeoutSeconds = 1
	cfg.Queue.Voice.MaxAttempts = 1
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub()

	pool := worker.NewPool(cfg, store, hub, logging.NewNop())
	_ = pool.Register(queue.LaneVoice, func(ctx context.Context, _ *queue.Job, _ progress.Sink) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	payload, _ := queue.NewVoicePayload("rec-1", testsupport.Segments("hello"))
	job, _ := store.Enqueue(context.Background(), queue.LaneVoice, queue.KindGenerateAudio, payload)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	failed := waitForState(t, store, job.ID, queue.StateFailed)
	if failed.Error == "" {
		t.Fatal("expected timeout recorded in error")
	}
}

func TestRegisterUnknownLane(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	pool := worker.NewPool(cfg, store, progress.NewHub(), logging.NewNop())

	if err := pool.Register(queue.Lane("mystery"), func(context.Context, *queue.Job, progress.Sink) (string, error) {
		return "", nil
	}); err == nil {
		t.Fatal("expected error for unknown lane")
	}
	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("expected error starting pool with no lanes")
	}
}
