package records_test

import (
	"context"
	"testing"

	"demostudio/internal/records"
	"demostudio/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)

	ctx := context.Background()
	rec, err := store.Create(ctx, &records.Recording{
		Title:            "Onboarding walkthrough",
		OriginalVideoURL: "file:///tmp/source.mp4",
		Duration:         120,
		VisualEffects: []records.VisualEffect{
			{
				Type:        records.EffectBlur,
				StartTime:   2,
				EndTime:     6,
				Coordinates: &records.Coordinates{X: 10, Y: 20, Width: 300, Height: 200},
			},
		},
		ScriptSegments: []records.ScriptSegment{
			{ID: "seg-1", Text: "Welcome to the demo."},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected assigned recording id")
	}
	if rec.ProcessingStatus != records.ProcessingPending {
		t.Fatalf("expected pending status, got %s", rec.ProcessingStatus)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil || fetched.Title != "Onboarding walkthrough" {
		t.Fatalf("unexpected recording: %#v", fetched)
	}
	if len(fetched.VisualEffects) != 1 || fetched.VisualEffects[0].Type != records.EffectBlur {
		t.Fatalf("effects not round-tripped: %#v", fetched.VisualEffects)
	}
	if len(fetched.ScriptSegments) != 1 || fetched.ScriptSegments[0].AudioURL != "" {
		t.Fatalf("segments not round-tripped: %#v", fetched.ScriptSegments)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)

	rec, err := store.GetByID(context.Background(), "absent")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for missing recording, got %#v", rec)
	}
}

func TestFieldScopedWriteBacks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)

	ctx := context.Background()
	rec, err := store.Create(ctx, &records.Recording{
		OriginalVideoURL: "file:///tmp/source.mp4",
		Duration:         60,
		ScriptSegments: []records.ScriptSegment{
			{ID: "seg-1", Text: "First"},
			{ID: "seg-2", Text: "Second"},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Voice write-back, then transform write-back; neither may clobber the other.
	segments := rec.ScriptSegments
	segments[0].AudioURL = "file:///media/seg-1.mp3"
	if err := store.UpdateSegments(ctx, rec.ID, segments); err != nil {
		t.Fatalf("UpdateSegments: %v", err)
	}
	if err := store.AttachDerivedAssets(ctx, rec.ID, "file:///media/thumb.jpg", "file:///media/audio.wav"); err != nil {
		t.Fatalf("AttachDerivedAssets: %v", err)
	}
	if err := store.SetProcessingState(ctx, rec.ID, records.ProcessingCompleted, 100, ""); err != nil {
		t.Fatalf("SetProcessingState: %v", err)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.ScriptSegments[0].AudioURL == "" {
		t.Fatal("voice write-back lost")
	}
	if fetched.ThumbnailURL == "" || fetched.AudioURL == "" {
		t.Fatal("transform write-back lost")
	}
	if fetched.ProcessingStatus != records.ProcessingCompleted || fetched.ProcessingProgress != 100 {
		t.Fatalf("unexpected processing state: %s %.0f", fetched.ProcessingStatus, fetched.ProcessingProgress)
	}
}

func TestValidateWindow(t *testing.T) {
	rec := &records.Recording{Duration: 30}
	if err := rec.ValidateWindow(0, 30); err != nil {
		t.Fatalf("full-span window should validate: %v", err)
	}
	if err := rec.ValidateWindow(5, 5); err == nil {
		t.Fatal("expected error for empty window")
	}
	if err := rec.ValidateWindow(-1, 5); err == nil {
		t.Fatal("expected error for negative start")
	}
	if err := rec.ValidateWindow(5, 31); err == nil {
		t.Fatal("expected error for window past duration")
	}
}

func TestPendingSegments(t *testing.T) {
	rec := &records.Recording{
		ScriptSegments: []records.ScriptSegment{
			{ID: "a", Text: "done", AudioURL: "file:///media/a.mp3"},
			{ID: "b", Text: "todo"},
		},
	}
	pending := rec.PendingSegments()
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("unexpected pending segments: %#v", pending)
	}
}
