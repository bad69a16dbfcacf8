package api

import (
	"context"

	"demostudio/internal/queue"
)

// JobReader abstracts the queue persistence interactions needed for API
// queries.
type JobReader interface {
	List(ctx context.Context, lane queue.Lane) ([]*queue.Job, error)
	GetByID(ctx context.Context, id string) (*queue.Job, error)
	LaneStats(ctx context.Context, lane queue.Lane) (queue.Stats, error)
}

// JobService exposes read-only queue operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs for the given lanes, or for every lane when none are
// named.
func (s *JobService) List(ctx context.Context, lanes ...queue.Lane) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if len(lanes) == 0 {
		lanes = queue.Lanes()
	}
	var out []Job
	for _, lane := range lanes {
		jobs, err := s.store.List(ctx, lane)
		if err != nil {
			return nil, err
		}
		out = append(out, FromJobs(jobs)...)
	}
	return out, nil
}

// Describe fetches a single job, nil when absent.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// Stats returns per-lane state counts keyed by lane string.
func (s *JobService) Stats(ctx context.Context) (map[string]LaneStats, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats := make(map[queue.Lane]queue.Stats, len(queue.Lanes()))
	for _, lane := range queue.Lanes() {
		laneStats, err := s.store.LaneStats(ctx, lane)
		if err != nil {
			return nil, err
		}
		stats[lane] = laneStats
	}
	return FromStats(stats), nil
}
