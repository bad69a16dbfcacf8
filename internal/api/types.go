package api

import "demostudio/internal/records"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID          string  `json:"id"`
	Lane        string  `json:"lane"`
	Kind        string  `json:"kind"`
	State       string  `json:"state"`
	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"maxAttempts"`
	Progress    float64 `json:"progress"`
	Result      string  `json:"result,omitempty"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	StartedAt   string  `json:"startedAt,omitempty"`
	FinishedAt  string  `json:"finishedAt,omitempty"`
	NextRunAt   string  `json:"nextRunAt,omitempty"`
}

// LaneStats mirrors queue.Stats for one lane.
type LaneStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool                 `json:"running"`
	PID          int                  `json:"pid"`
	QueueDBPath  string               `json:"queueDbPath"`
	LockFilePath string               `json:"lockFilePath"`
	Lanes        map[string]LaneStats `json:"lanes"`
	Dependencies []DependencyStatus   `json:"dependencies"`
}

// ProgressEvent is one live progress broadcast delivered over the long-poll
// endpoint. Status is the job lifecycle value (processing, retrying,
// completed, failed); Stage is the step label within an attempt.
type ProgressEvent struct {
	Channel     string  `json:"channel"`
	RecordingID string  `json:"recordingId,omitempty"`
	JobID       string  `json:"jobId"`
	Lane        string  `json:"lane"`
	Percent     float64 `json:"percent"`
	Status      string  `json:"status"`
	Stage       string  `json:"stage,omitempty"`
	Message     string  `json:"message,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// StatsResponse provides per-lane queue stats.
type StatsResponse struct {
	Lanes map[string]LaneStats `json:"lanes"`
}

// EnqueueResponse acknowledges an accepted job.
type EnqueueResponse struct {
	JobID string `json:"jobId"`
	Lane  string `json:"lane"`
}

// ProgressResponse carries long-poll results. Events is empty when the wait
// window elapsed without a broadcast.
type ProgressResponse struct {
	Events []ProgressEvent `json:"events"`
}

// Recording describes a recording entry in a transport-friendly format.
type Recording struct {
	ID                 string                  `json:"id"`
	Title              string                  `json:"title,omitempty"`
	OriginalVideoURL   string                  `json:"originalVideoUrl"`
	ProcessedVideoURL  string                  `json:"processedVideoUrl,omitempty"`
	AudioURL           string                  `json:"audioUrl,omitempty"`
	ThumbnailURL       string                  `json:"thumbnailUrl,omitempty"`
	Duration           float64                 `json:"duration,omitempty"`
	VisualEffects      []records.VisualEffect  `json:"visualEffects,omitempty"`
	Subtitles          []records.SubtitleCue   `json:"subtitles,omitempty"`
	ScriptSegments     []records.ScriptSegment `json:"scriptSegments,omitempty"`
	ProcessingStatus   string                  `json:"processingStatus"`
	ProcessingProgress float64                 `json:"processingProgress"`
	ErrorMessage       string                  `json:"errorMessage,omitempty"`
	CreatedAt          string                  `json:"createdAt,omitempty"`
	UpdatedAt          string                  `json:"updatedAt,omitempty"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Recording Recording `json:"recording"`
}

// CreateRecordingRequest registers a new recording with the daemon.
type CreateRecordingRequest struct {
	Title            string                  `json:"title,omitempty"`
	OriginalVideoURL string                  `json:"originalVideoUrl"`
	Duration         float64                 `json:"duration,omitempty"`
	VisualEffects    []records.VisualEffect  `json:"visualEffects,omitempty"`
	Subtitles        []records.SubtitleCue   `json:"subtitles,omitempty"`
	ScriptSegments   []records.ScriptSegment `json:"scriptSegments,omitempty"`
}

// ProcessRequest asks for post-upload processing of a recording.
type ProcessRequest struct {
	SourceURL string `json:"sourceUrl"`
}

// VoiceRequest asks for narration synthesis. Empty Segments means the
// recording's stored script segments.
type VoiceRequest struct {
	Segments []records.ScriptSegment `json:"segments"`
}

// RetryRequest re-queues failed jobs. Empty IDs means every failed job.
type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// ClearRequest removes terminal jobs in the given state (completed or failed).
type ClearRequest struct {
	State string `json:"state"`
}

// MaintenanceResponse reports how many jobs a retry or clear touched.
type MaintenanceResponse struct {
	Affected int64 `json:"affected"`
}

// ExportRequest asks for an export render.
type ExportRequest struct {
	Format  string                `json:"format"`
	Options records.ExportOptions `json:"options"`
}
