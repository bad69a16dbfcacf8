package progress

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	hub := NewHub()
	channel := ProcessingChannel("rec-1")

	first := hub.Join(channel)
	second := hub.Join(channel)
	defer hub.Leave(first)
	defer hub.Leave(second)

	hub.Publish(Event{Channel: channel, Percent: 40, Stage: "thumbnail"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case event := <-sub.C:
			if event.Percent != 40 || event.Stage != "thumbnail" {
				t.Fatalf("unexpected event: %#v", event)
			}
			if event.Timestamp.IsZero() {
				t.Fatal("expected timestamp assigned")
			}
			if event.Status != StatusProcessing {
				t.Fatalf("expected default status %q, got %q", StatusProcessing, event.Status)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	hub := NewHub()
	sub := hub.Join(ExportChannel("job-1"))
	defer hub.Leave(sub)

	hub.Publish(Event{Channel: ProcessingChannel("rec-1"), Percent: 50})

	select {
	case event := <-sub.C:
		t.Fatalf("event leaked across channels: %#v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoReplayForLateJoiners(t *testing.T) {
	hub := NewHub()
	channel := ProcessingChannel("rec-1")

	hub.Publish(Event{Channel: channel, Percent: 20})
	sub := hub.Join(channel)
	defer hub.Leave(sub)

	select {
	case event := <-sub.C:
		t.Fatalf("late joiner must not see history: %#v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	channel := ExportChannel("job-1")
	sub := hub.Join(channel)
	defer hub.Leave(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*4; i++ {
			hub.Publish(Event{Channel: channel, Percent: float64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestLeaveClosesChannel(t *testing.T) {
	hub := NewHub()
	channel := ProcessingChannel("rec-1")
	sub := hub.Join(channel)
	hub.Leave(sub)

	if _, open := <-sub.C; open {
		t.Fatal("expected closed channel after leave")
	}
	if count := hub.SubscriberCount(channel); count != 0 {
		t.Fatalf("expected 0 subscribers, got %d", count)
	}
	// Leaving twice is a no-op.
	hub.Leave(sub)
}
