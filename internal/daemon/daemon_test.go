package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"demostudio/internal/api"
	"demostudio/internal/daemon"
	"demostudio/internal/logging"
	"demostudio/internal/media/ffmpeg"
	"demostudio/internal/pipeline"
	"demostudio/internal/queue"
	"demostudio/internal/records"
	"demostudio/internal/services/speech"
	"demostudio/internal/testsupport"
)

type memGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (g *memGateway) Upload(_ context.Context, data []byte, key, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	url := "mem://" + key
	g.objects[url] = append([]byte(nil), data...)
	return url, nil
}

func (g *memGateway) Download(_ context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[url]
	if !ok {
		return nil, fmt.Errorf("object %s not found", url)
	}
	return data, nil
}

func (g *memGateway) Delete(_ context.Context, url string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, url)
	return nil
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, cmd ffmpeg.Command) error {
	if cmd.OnProgress != nil {
		cmd.OnProgress(100)
	}
	return os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("artifact"), 0o644)
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ context.Context, req speech.Request) (*speech.Result, error) {
	return &speech.Result{Audio: []byte("audio:" + req.Text), ContentType: "audio/mpeg"}, nil
}

func (stubSynth) ListVoices(context.Context) ([]speech.Voice, error) {
	return nil, nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *memGateway) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Speech.APIKey = "" // skip the speech reachability preflight
	gateway := &memGateway{objects: make(map[string][]byte)}
	p, err := pipeline.New(cfg, logging.NewNop(),
		pipeline.WithGateway(gateway),
		pipeline.WithRunner(stubRunner{}),
		pipeline.WithSynthesizer(stubSynth{}),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	d, err := daemon.New(cfg, p, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return d, gateway
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api server to be listening")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonServesExportOverAPI(t *testing.T) {
	d, gateway := newDaemon(t)
	rec := testsupport.NewRecording(t, d.Pipeline().Records(), "demo", 60)
	gateway.mu.Lock()
	gateway.objects[rec.OriginalVideoURL] = []byte("source-bytes")
	gateway.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.APIAddr()

	body, _ := json.Marshal(api.ExportRequest{
		Format:  string(records.FormatContainerVideo),
		Options: testsupport.DefaultExportOptions(),
	})
	resp, err := http.Post(base+"/api/recordings/"+rec.ID+"/export", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var accepted api.EnqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode enqueue response: %v", err)
	}
	if accepted.JobID == "" || accepted.Lane != "export" {
		t.Fatalf("unexpected enqueue response: %#v", accepted)
	}

	deadline := time.After(10 * time.Second)
	for {
		jobResp, err := http.Get(base + "/api/jobs/" + accepted.JobID)
		if err != nil {
			t.Fatalf("GET job: %v", err)
		}
		var payload api.JobResponse
		if err := json.NewDecoder(jobResp.Body).Decode(&payload); err != nil {
			jobResp.Body.Close()
			t.Fatalf("decode job: %v", err)
		}
		jobResp.Body.Close()
		if payload.Job.State == "completed" {
			if payload.Job.Result == "" {
				t.Fatalf("completed job missing result: %#v", payload.Job)
			}
			break
		}
		if payload.Job.State == "failed" {
			t.Fatalf("export failed: %s", payload.Job.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed, last state %q", payload.Job.State)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestDaemonClearsCompletedJobsOverAPI(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed a finished job before the workers start polling.
	store := d.Pipeline().Queue()
	payload, err := queue.NewTransformPayload("rec-1", "mem://source.mp4")
	if err != nil {
		t.Fatalf("NewTransformPayload: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.LaneTransform, queue.KindProcess, payload)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.ClaimNext(ctx, queue.LaneTransform); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if err := store.Complete(ctx, job.ID, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.APIAddr()

	resp, err := http.Post(base+"/api/jobs/clear", "application/json",
		bytes.NewReader([]byte(`{"state":"completed"}`)))
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var cleared api.MaintenanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode clear response: %v", err)
	}
	if cleared.Affected != 1 {
		t.Fatalf("expected one job cleared, got %d", cleared.Affected)
	}

	jobResp, err := http.Get(base + "/api/jobs/" + job.ID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	jobResp.Body.Close()
	if jobResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", jobResp.StatusCode)
	}

	badResp, err := http.Post(base+"/api/jobs/clear", "application/json",
		bytes.NewReader([]byte(`{"state":"active"}`)))
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-terminal state, got %d", badResp.StatusCode)
	}
}

func TestDaemonRejectsUnknownExportFormat(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	body := bytes.NewReader([]byte(`{"format":"betamax"}`))
	resp, err := http.Post("http://"+d.APIAddr()+"/api/recordings/rec-1/export", "application/json", body)
	if err != nil {
		t.Fatalf("POST export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}
