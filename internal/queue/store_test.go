package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"demostudio/internal/queue"
	"demostudio/internal/testsupport"
)

func TestEnqueueAndClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, err := queue.NewTransformPayload("rec-1", "file:///tmp/source.mp4")
	if err != nil {
		t.Fatalf("NewTransformPayload: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == "" || job.State != queue.StateWaiting || job.Attempts != 0 {
		t.Fatalf("unexpected enqueued job: %#v", job)
	}
	if job.MaxAttempts != 3 {
		t.Fatalf("expected transform max attempts 3, got %d", job.MaxAttempts)
	}

	claimed, err := store.ClaimNext(ctx, queue.LaneTransform)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected to claim enqueued job, got %#v", claimed)
	}
	if claimed.State != queue.StateActive || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed state: %s attempts=%d", claimed.State, claimed.Attempts)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started timestamp")
	}

	// The lane is now drained.
	again, err := store.ClaimNext(ctx, queue.LaneTransform)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no claimable job, got %#v", again)
	}
}

func TestClaimRespectsLaneIsolation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	if _, err := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := store.ClaimNext(ctx, queue.LaneExport)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job != nil {
		t.Fatalf("export lane should be empty, got %#v", job)
	}
}

func TestFailReschedulesWithBackoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, err := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, queue.LaneTransform)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %#v", err, claimed)
	}

	before := time.Now().UTC()
	state, err := store.Fail(ctx, claimed, "download timed out")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if state != queue.StateWaiting {
		t.Fatalf("expected reschedule, got %s", state)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.State != queue.StateWaiting {
		t.Fatalf("expected waiting state, got %s", fetched.State)
	}
	// Attempt 1 failed; delay before attempt 2 is base*2^0 = 2s for transform.
	if delta := fetched.NextRunAt.Sub(before); delta < time.Second || delta > 4*time.Second {
		t.Fatalf("unexpected backoff delay %v", delta)
	}
	if fetched.Error != "" {
		t.Fatalf("error must only be recorded on terminal failure, got %q", fetched.Error)
	}

	// Not claimable until the backoff elapses.
	early, err := store.ClaimNext(ctx, queue.LaneTransform)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if early != nil {
		t.Fatalf("job claimed before backoff elapsed: %#v", early)
	}
}

func TestFailExhaustsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Export.BackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewExportPayload("rec-1", "container-video", testsupport.DefaultExportOptions())
	job, err := store.Enqueue(ctx, queue.LaneExport, queue.KindExport, payload)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Export lane allows 2 attempts.
	var lastState queue.State
	for attempt := 1; attempt <= 2; attempt++ {
		claimed, err := store.ClaimNext(ctx, queue.LaneExport)
		if err != nil || claimed == nil {
			t.Fatalf("ClaimNext attempt %d: %v %#v", attempt, err, claimed)
		}
		if claimed.Attempts != attempt {
			t.Fatalf("expected attempts=%d, got %d", attempt, claimed.Attempts)
		}
		lastState, err = store.Fail(ctx, claimed, fmt.Sprintf("encode failed on attempt %d", attempt))
		if err != nil {
			t.Fatalf("Fail attempt %d: %v", attempt, err)
		}
	}
	if lastState != queue.StateFailed {
		t.Fatalf("expected terminal failure after 2 attempts, got %s", lastState)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.State != queue.StateFailed || fetched.Attempts != 2 {
		t.Fatalf("unexpected terminal job: state=%s attempts=%d", fetched.State, fetched.Attempts)
	}
	if fetched.Error != "encode failed on attempt 2" {
		t.Fatalf("expected last error preserved verbatim, got %q", fetched.Error)
	}
	if fetched.FinishedAt == nil {
		t.Fatal("expected finished timestamp")
	}
}

func TestCompleteSetsResultAndProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, _ := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if _, err := store.ClaimNext(ctx, queue.LaneTransform); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if err := store.Complete(ctx, job.ID, `{"thumbnailUrl":"file:///media/t.jpg"}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.State != queue.StateCompleted || fetched.Progress != 100 {
		t.Fatalf("unexpected completed job: %#v", fetched)
	}
	if fetched.Result == "" {
		t.Fatal("expected result recorded")
	}
}

func TestUpdateProgressIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, _ := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if _, err := store.ClaimNext(ctx, queue.LaneTransform); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	for _, percent := range []float64{20, 60, 40, 90} {
		if err := store.UpdateProgress(ctx, job.ID, percent); err != nil {
			t.Fatalf("UpdateProgress(%v): %v", percent, err)
		}
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Progress != 90 {
		t.Fatalf("expected progress to hold at 90, got %v", fetched.Progress)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Export.BackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewExportPayload("rec-1", "container-video", testsupport.DefaultExportOptions())
	job, _ := store.Enqueue(ctx, queue.LaneExport, queue.KindExport, payload)
	for attempt := 0; attempt < 2; attempt++ {
		claimed, _ := store.ClaimNext(ctx, queue.LaneExport)
		if claimed == nil {
			t.Fatal("expected claimable job")
		}
		if _, err := store.Fail(ctx, claimed, "boom"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	count, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one job retried, got %d", count)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.State != queue.StateWaiting || fetched.Attempts != 0 || fetched.Error != "" {
		t.Fatalf("retry did not reset job: %#v", fetched)
	}
}

func TestLaneStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		payload, _ := queue.NewTransformPayload(fmt.Sprintf("rec-%d", i), "file:///tmp/a.mp4")
		if _, err := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	claimed, _ := store.ClaimNext(ctx, queue.LaneTransform)
	if err := store.Complete(ctx, claimed.ID, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := store.ClaimNext(ctx, queue.LaneTransform); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	stats, err := store.LaneStats(ctx, queue.LaneTransform)
	if err != nil {
		t.Fatalf("LaneStats: %v", err)
	}
	if stats.Waiting != 1 || stats.Active != 1 || stats.Completed != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPruneFinishedKeepsRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Voice.BackoffSeconds = 0
	cfg.Queue.Voice.KeepCompleted = 2
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		payload, _ := queue.NewVoicePayload(fmt.Sprintf("rec-%d", i), testsupport.Segments("hello"))
		job, err := store.Enqueue(ctx, queue.LaneVoice, queue.KindGenerateAudio, payload)
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if _, err := store.ClaimNext(ctx, queue.LaneVoice); err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if err := store.Complete(ctx, job.ID, ""); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		time.Sleep(5 * time.Millisecond) // distinct finished_at ordering
	}

	removed, err := store.PruneFinished(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneFinished: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 jobs trimmed, got %d", removed)
	}
	stats, _ := store.LaneStats(ctx, queue.LaneVoice)
	if stats.Completed != 2 {
		t.Fatalf("expected 2 completed retained, got %d", stats.Completed)
	}
}

func TestClearFinishedRemovesOnlyRequestedState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Export.BackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	completedPayload, _ := queue.NewExportPayload("rec-1", "container-video", testsupport.DefaultExportOptions())
	completed, _ := store.Enqueue(ctx, queue.LaneExport, queue.KindExport, completedPayload)
	if _, err := store.ClaimNext(ctx, queue.LaneExport); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if err := store.Complete(ctx, completed.ID, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	failedPayload, _ := queue.NewExportPayload("rec-2", "container-video", testsupport.DefaultExportOptions())
	failed, _ := store.Enqueue(ctx, queue.LaneExport, queue.KindExport, failedPayload)
	for attempt := 0; attempt < 2; attempt++ {
		claimed, _ := store.ClaimNext(ctx, queue.LaneExport)
		if claimed == nil {
			t.Fatal("expected claimable job")
		}
		if _, err := store.Fail(ctx, claimed, "boom"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	if _, err := store.ClearFinished(ctx, queue.StateActive); err == nil {
		t.Fatal("expected error clearing a non-terminal state")
	}

	removed, err := store.ClearFinished(ctx, queue.StateCompleted)
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 completed job cleared, got %d", removed)
	}
	if job, _ := store.GetByID(ctx, completed.ID); job != nil {
		t.Fatalf("completed job should be gone, got %#v", job)
	}
	if job, _ := store.GetByID(ctx, failed.ID); job == nil || job.State != queue.StateFailed {
		t.Fatalf("failed job should survive a completed clear, got %#v", job)
	}

	removed, err = store.ClearFinished(ctx, queue.StateFailed)
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 failed job cleared, got %d", removed)
	}
}

func TestResetStuckActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload, _ := queue.NewTransformPayload("rec-1", "file:///tmp/a.mp4")
	job, _ := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if _, err := store.ClaimNext(ctx, queue.LaneTransform); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	count, err := store.ResetStuckActive(ctx)
	if err != nil {
		t.Fatalf("ResetStuckActive: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one job reset, got %d", count)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.State != queue.StateWaiting {
		t.Fatalf("expected waiting after reset, got %s", fetched.State)
	}
}
