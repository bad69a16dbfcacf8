package testsupport

import (
	"context"
	"testing"

	"demostudio/internal/config"
	"demostudio/internal/queue"
	"demostudio/internal/records"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRecords opens a records.Store for tests and registers cleanup.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecording creates a recording for tests using the provided store.
func NewRecording(t testing.TB, store *records.Store, title string, duration float64) *records.Recording {
	t.Helper()

	rec, err := store.Create(context.Background(), &records.Recording{
		Title:            title,
		OriginalVideoURL: "file:///tmp/source.webm",
		Duration:         duration,
	})
	if err != nil {
		t.Fatalf("records.Create: %v", err)
	}
	return rec
}

// Segments builds ready-to-synthesize script segments from the given texts.
func Segments(texts ...string) []records.ScriptSegment {
	segments := make([]records.ScriptSegment, 0, len(texts))
	for i, text := range texts {
		segments = append(segments, records.ScriptSegment{
			ID:   string(rune('a' + i)),
			Text: text,
		})
	}
	return segments
}

// DefaultExportOptions returns export options exercising the common path:
// audio and subtitles on, no watermark.
func DefaultExportOptions() records.ExportOptions {
	return records.ExportOptions{
		IncludeSubtitles: true,
		IncludeAudio:     true,
	}
}
