package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/transform"
)

// TransformHandler adapts the engine's post-upload processing to the pool.
func TransformHandler(engine *transform.Engine) Handler {
	return func(ctx context.Context, job *queue.Job, sink progress.Sink) (string, error) {
		payload, err := queue.DecodeTransformPayload(job.Payload)
		if err != nil {
			return "", err
		}
		result, err := engine.Process(ctx, payload, sink)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("encode process result: %w", err)
		}
		return string(encoded), nil
	}
}

// VoiceHandler adapts segment synthesis to the pool.
func VoiceHandler(engine *transform.Engine) Handler {
	return func(ctx context.Context, job *queue.Job, sink progress.Sink) (string, error) {
		payload, err := queue.DecodeVoicePayload(job.Payload)
		if err != nil {
			return "", err
		}
		if err := engine.GenerateAudio(ctx, payload, sink); err != nil {
			return "", err
		}
		return "", nil
	}
}

// ExportHandler adapts export rendering to the pool. The artifact URL is the
// job's result.
func ExportHandler(engine *transform.Engine) Handler {
	return func(ctx context.Context, job *queue.Job, sink progress.Sink) (string, error) {
		payload, err := queue.DecodeExportPayload(job.Payload)
		if err != nil {
			return "", err
		}
		url, err := engine.Export(ctx, payload, sink)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(map[string]string{"outputUrl": url})
		if err != nil {
			return "", fmt.Errorf("encode export result: %w", err)
		}
		return string(encoded), nil
	}
}
