package api

import (
	"time"

	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/records"
)

// FromRecording converts a recording entity to its API representation.
func FromRecording(rec *records.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	return Recording{
		ID:                 rec.ID,
		Title:              rec.Title,
		OriginalVideoURL:   rec.OriginalVideoURL,
		ProcessedVideoURL:  rec.ProcessedVideoURL,
		AudioURL:           rec.AudioURL,
		ThumbnailURL:       rec.ThumbnailURL,
		Duration:           rec.Duration,
		VisualEffects:      rec.VisualEffects,
		Subtitles:          rec.Subtitles,
		ScriptSegments:     rec.ScriptSegments,
		ProcessingStatus:   string(rec.ProcessingStatus),
		ProcessingProgress: rec.ProcessingProgress,
		ErrorMessage:       rec.ErrorMessage,
		CreatedAt:          formatTime(rec.CreatedAt),
		UpdatedAt:          formatTime(rec.UpdatedAt),
	}
}

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:          job.ID,
		Lane:        string(job.Lane),
		Kind:        job.Kind,
		State:       string(job.State),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		Progress:    job.Progress,
		Result:      job.Result,
		Error:       job.Error,
	}
	dto.CreatedAt = formatTime(job.CreatedAt)
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	dto.NextRunAt = formatTime(job.NextRunAt)
	return dto
}

// FromJobs converts a slice of queue records, skipping nil entries.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromStats converts per-lane stats keyed by lane string.
func FromStats(stats map[queue.Lane]queue.Stats) map[string]LaneStats {
	out := make(map[string]LaneStats, len(stats))
	for lane, s := range stats {
		out[string(lane)] = LaneStats{
			Waiting:   s.Waiting,
			Active:    s.Active,
			Completed: s.Completed,
			Failed:    s.Failed,
		}
	}
	return out
}

// FromProgressEvent converts a hub broadcast into its wire representation.
func FromProgressEvent(event progress.Event) ProgressEvent {
	dto := ProgressEvent{
		Channel:     event.Channel,
		RecordingID: event.RecordingID,
		JobID:       event.JobID,
		Lane:        event.Lane,
		Percent:     event.Percent,
		Status:      event.Status,
		Stage:       event.Stage,
		Message:     event.Message,
	}
	if !event.Timestamp.IsZero() {
		dto.Timestamp = formatTime(event.Timestamp)
	}
	return dto
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
