package progress

import (
	"fmt"
	"sync"
	"time"
)

// Event is one progress update published to a channel. Status tracks the job
// lifecycle; Stage is the free-form step label within an attempt.
type Event struct {
	Channel     string    `json:"channel"`
	RecordingID string    `json:"recordingId,omitempty"`
	JobID       string    `json:"jobId"`
	Lane        string    `json:"lane"`
	Percent     float64   `json:"percent"`
	Status      string    `json:"status"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Status values carried by events.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRetrying   = "retrying"
)

// ProcessingChannel names the channel carrying transform and voice progress
// for one recording.
func ProcessingChannel(recordingID string) string {
	return "processing:" + recordingID
}

// ExportChannel names the channel carrying export progress for one job.
func ExportChannel(jobID string) string {
	return "export:" + jobID
}

// Subscription receives events for a single channel until Leave is called.
type Subscription struct {
	C       <-chan Event
	channel string
	id      int
}

// Hub routes events from publishers to channel subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

const subscriberBuffer = 16

// Join subscribes to a channel. Events published before the call are not
// replayed.
func (h *Hub) Join(channel string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[int]chan Event)
	}
	h.subs[channel][h.nextID] = ch
	return &Subscription{C: ch, channel: channel, id: h.nextID}
}

// Leave removes the subscription and closes its event channel.
func (h *Hub) Leave(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	channelSubs := h.subs[sub.channel]
	ch, ok := channelSubs[sub.id]
	if !ok {
		return
	}
	delete(channelSubs, sub.id)
	if len(channelSubs) == 0 {
		delete(h.subs, sub.channel)
	}
	close(ch)
}

// Publish delivers an event to every subscriber of its channel. Slow
// subscribers are skipped rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = StatusProcessing
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[event.Channel] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many subscribers a channel currently has.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channel])
}

func (e Event) String() string {
	label := e.Status
	if e.Stage != "" {
		label = e.Stage
	}
	return fmt.Sprintf("%s %.0f%% %s", e.Channel, e.Percent, label)
}
