package worker

import (
	"context"
	"encoding/json"
	"sync"

	"demostudio/internal/logging"
	"demostudio/internal/progress"
	"demostudio/internal/queue"
)

// subjectFor maps a job onto its logical progress channel and the recording
// it concerns: recording-scoped for transform and voice work, job-scoped for
// exports. Every lane's payload carries the recording id, so events name
// their subject directly instead of only through the channel string.
func subjectFor(job *queue.Job) (channel, recordingID string) {
	var subject struct {
		RecordingID string `json:"recordingId"`
	}
	_ = json.Unmarshal(job.Payload, &subject)
	if job.Lane == queue.LaneExport {
		return progress.ExportChannel(job.ID), subject.RecordingID
	}
	if subject.RecordingID == "" {
		return progress.ProcessingChannel(job.ID), ""
	}
	return progress.ProcessingChannel(subject.RecordingID), subject.RecordingID
}

// sinkFor builds the composite progress sink for one job: monotonic clamping,
// persisted percent on the job row, and a live broadcast. The persistence
// context deliberately outlives the job timeout so late reports still land.
func (p *Pool) sinkFor(persistCtx context.Context, job *queue.Job) progress.Sink {
	channel, recordingID := subjectFor(job)

	var mu sync.Mutex
	var last float64 = -1

	return progress.SinkFunc(func(_ context.Context, percent float64, stage string) {
		mu.Lock()
		if percent <= last {
			mu.Unlock()
			return
		}
		last = percent
		mu.Unlock()

		if err := p.store.UpdateProgress(persistCtx, job.ID, percent); err != nil {
			p.logger.Warn("failed to persist job progress",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
		p.hub.Publish(progress.Event{
			Channel:     channel,
			RecordingID: recordingID,
			JobID:       job.ID,
			Lane:        string(job.Lane),
			Percent:     percent,
			Status:      progress.StatusProcessing,
			Stage:       stage,
		})
	})
}

func (p *Pool) publish(job *queue.Job, percent float64, status, message string) {
	channel, recordingID := subjectFor(job)
	p.hub.Publish(progress.Event{
		Channel:     channel,
		RecordingID: recordingID,
		JobID:       job.ID,
		Lane:        string(job.Lane),
		Percent:     percent,
		Status:      status,
		Message:     message,
	})
}
