package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video, ok := result.PrimaryVideo()
	if !ok || video.Width != 1920 {
		t.Fatalf("unexpected primary video: %#v ok=%v", video, ok)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "10.5"},
			{CodecType: "audio", Duration: "12.25"},
		},
	}
	if result.DurationSeconds() != 12.25 {
		t.Fatalf("expected longest stream duration, got %v", result.DurationSeconds())
	}
}

func TestSizeHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Size: "-1"}}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	result = Result{Format: Format{Size: "nope"}}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0 for invalid input, got %d", result.SizeBytes())
	}
}
