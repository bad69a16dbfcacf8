package api

import (
	"context"
	"testing"
	"time"

	"demostudio/internal/queue"
)

type jobReaderStub struct {
	jobs map[queue.Lane][]*queue.Job
}

func (s *jobReaderStub) List(_ context.Context, lane queue.Lane) ([]*queue.Job, error) {
	return s.jobs[lane], nil
}

func (s *jobReaderStub) GetByID(_ context.Context, id string) (*queue.Job, error) {
	for _, jobs := range s.jobs {
		for _, job := range jobs {
			if job.ID == id {
				return job, nil
			}
		}
	}
	return nil, nil
}

func (s *jobReaderStub) LaneStats(_ context.Context, lane queue.Lane) (queue.Stats, error) {
	return queue.Stats{Waiting: len(s.jobs[lane])}, nil
}

func TestJobServiceListFiltersByLane(t *testing.T) {
	store := &jobReaderStub{jobs: map[queue.Lane][]*queue.Job{
		queue.LaneTransform: {{ID: "job-1", Lane: queue.LaneTransform, State: queue.StateWaiting}},
		queue.LaneExport:    {{ID: "job-2", Lane: queue.LaneExport, State: queue.StateActive}},
	}}
	svc := NewJobService(store)

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}

	exports, err := svc.List(context.Background(), queue.LaneExport)
	if err != nil {
		t.Fatalf("List export: %v", err)
	}
	if len(exports) != 1 || exports[0].ID != "job-2" {
		t.Fatalf("unexpected export listing: %#v", exports)
	}
}

func TestJobServiceDescribeMissing(t *testing.T) {
	svc := NewJobService(&jobReaderStub{})
	job, err := svc.Describe(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %#v", job)
	}
}

func TestFromJobFormatsTimestamps(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	dto := FromJob(&queue.Job{
		ID:        "job-3",
		Lane:      queue.LaneVoice,
		State:     queue.StateActive,
		StartedAt: &started,
	})
	if dto.StartedAt != "2026-03-14T09:26:53.000Z" {
		t.Fatalf("unexpected startedAt: %q", dto.StartedAt)
	}
	if dto.FinishedAt != "" {
		t.Fatalf("expected empty finishedAt, got %q", dto.FinishedAt)
	}
	if dto.Lane != "voice" || dto.State != "active" {
		t.Fatalf("unexpected enum rendering: %#v", dto)
	}
}
