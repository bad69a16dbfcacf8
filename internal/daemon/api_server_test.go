package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"demostudio/internal/api"
	"demostudio/internal/queue"
)

type jobReaderStub struct {
	jobs []*queue.Job
}

func (s *jobReaderStub) List(_ context.Context, lane queue.Lane) ([]*queue.Job, error) {
	var out []*queue.Job
	for _, job := range s.jobs {
		if job.Lane == lane {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *jobReaderStub) GetByID(_ context.Context, id string) (*queue.Job, error) {
	for _, job := range s.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, nil
}

func (s *jobReaderStub) LaneStats(context.Context, queue.Lane) (queue.Stats, error) {
	return queue.Stats{}, nil
}

func TestAPIServerHandleJobs(t *testing.T) {
	stub := &jobReaderStub{jobs: []*queue.Job{
		{ID: "job-1", Lane: queue.LaneTransform, State: queue.StateWaiting},
		{ID: "job-2", Lane: queue.LaneExport, State: queue.StateActive},
	}}
	srv := &apiServer{jobs: api.NewJobService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?lane=export", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].ID != "job-2" {
		t.Fatalf("unexpected jobs: %#v", resp.Jobs)
	}
}

func TestAPIServerHandleJobsRejectsUnknownLane(t *testing.T) {
	srv := &apiServer{jobs: api.NewJobService(&jobReaderStub{})}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?lane=mystery", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAuthedMiddleware(t *testing.T) {
	srv := &apiServer{token: "secret"}
	handler := srv.authed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with token, got %d", w.Code)
	}
}
