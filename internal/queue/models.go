package queue

import (
	"strings"
	"time"
)

// Lane identifies one of the three independent queues.
type Lane string

const (
	LaneTransform Lane = "transform"
	LaneVoice     Lane = "voice"
	LaneExport    Lane = "export"
)

// Lanes returns the ordered list of known lanes.
func Lanes() []Lane {
	return []Lane{LaneTransform, LaneVoice, LaneExport}
}

// ParseLane converts a string into a known Lane.
func ParseLane(value string) (Lane, bool) {
	normalized := Lane(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case LaneTransform, LaneVoice, LaneExport:
		return normalized, true
	}
	return "", false
}

// Kind tags the sub-operation a job carries within its lane.
const (
	KindProcess       = "process"
	KindGenerateAudio = "generate-audio"
	KindExport        = "export"
)

// State represents the lifecycle of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the state ends the job's lifecycle (absent a
// manual retry).
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Policy fixes a lane's retry behavior at store construction time.
type Policy struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	KeepCompleted int
	KeepFailed    int
}

// BackoffDelay returns the delay before attempt number attempt (1-based):
// base * 2^(attempt-1).
func (p Policy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Job is one unit of enqueued work flowing through a lane's lifecycle.
type Job struct {
	ID          string
	Lane        Lane
	Kind        string
	Payload     []byte
	State       State
	Attempts    int
	MaxAttempts int
	Progress    float64
	Result      string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	NextRunAt   time.Time
}

// Stats holds a point-in-time snapshot of a lane's state counts.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
