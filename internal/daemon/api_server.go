package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"demostudio/internal/api"
	"demostudio/internal/config"
	"demostudio/internal/logging"
	"demostudio/internal/queue"
	"demostudio/internal/records"
	"demostudio/internal/services"
)

const (
	defaultProgressWait = 25 * time.Second
	maxProgressWait     = 55 * time.Second
	maxProgressBatch    = 64
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	jobs   *api.JobService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logger,
		daemon: d,
		jobs:   api.NewJobService(d.pipeline.Queue()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.authed(srv.handleStatus))
	mux.HandleFunc("/api/stats", srv.authed(srv.handleStats))
	mux.HandleFunc("/api/jobs", srv.authed(srv.handleJobs))
	mux.HandleFunc("/api/jobs/", srv.authed(srv.handleJob))
	mux.HandleFunc("/api/recordings", srv.authed(srv.handleCreateRecording))
	mux.HandleFunc("/api/recordings/", srv.authed(srv.handleRecordingAction))
	mux.HandleFunc("/api/progress", srv.authed(srv.handleProgress))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Lanes:        api.FromStats(status.Lanes),
		Dependencies: deps,
	})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lanes, err := s.jobs.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatsResponse{Lanes: lanes})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var lanes []queue.Lane
	for _, value := range r.URL.Query()["lane"] {
		lane, ok := queue.ParseLane(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown lane %q", value))
			return
		}
		lanes = append(lanes, lane)
	}

	jobs, err := s.jobs.List(r.Context(), lanes...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	switch id {
	case "retry":
		s.retryJobs(w, r)
		return
	case "clear":
		s.clearJobs(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) retryJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RetryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	affected, err := s.daemon.pipeline.Queue().RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.MaintenanceResponse{Affected: affected})
}

func (s *apiServer) clearJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ClearRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	state := queue.State(strings.ToLower(strings.TrimSpace(req.State)))
	if !state.IsTerminal() {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("state must be completed or failed, got %q", req.State))
		return
	}
	affected, err := s.daemon.pipeline.Queue().ClearFinished(r.Context(), state)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.MaintenanceResponse{Affected: affected})
}

func (s *apiServer) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CreateRecordingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OriginalVideoURL) == "" {
		s.writeError(w, http.StatusBadRequest, "originalVideoUrl is required")
		return
	}
	rec, err := s.daemon.pipeline.Records().Create(r.Context(), &records.Recording{
		Title:            req.Title,
		OriginalVideoURL: req.OriginalVideoURL,
		Duration:         req.Duration,
		VisualEffects:    req.VisualEffects,
		Subtitles:        req.Subtitles,
		ScriptSegments:   req.ScriptSegments,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.RecordingResponse{Recording: api.FromRecording(rec)})
}

// handleRecordingAction routes GET /api/recordings/{id} and
// POST /api/recordings/{id}/{process|voice|export}.
func (s *apiServer) handleRecordingAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	parts := strings.Split(rest, "/")

	if r.Method == http.MethodGet {
		if len(parts) != 1 || parts[0] == "" {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.describeRecording(w, r, parts[0])
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if len(parts) != 2 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	recordingID, action := parts[0], parts[1]

	switch action {
	case "process":
		s.enqueueProcess(w, r, recordingID)
	case "voice":
		s.enqueueVoice(w, r, recordingID)
	case "export":
		s.enqueueExport(w, r, recordingID)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeRecording(w http.ResponseWriter, r *http.Request, recordingID string) {
	rec, err := s.daemon.pipeline.Records().GetByID(r.Context(), recordingID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromRecording(rec)})
}

func (s *apiServer) enqueueProcess(w http.ResponseWriter, r *http.Request, recordingID string) {
	var req api.ProcessRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" {
		rec, err := s.daemon.pipeline.Records().GetByID(r.Context(), recordingID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			s.writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		sourceURL = rec.OriginalVideoURL
	}

	jobID, err := s.daemon.pipeline.EnqueueTransform(r.Context(), recordingID, sourceURL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.EnqueueResponse{JobID: jobID, Lane: string(queue.LaneTransform)})
}

func (s *apiServer) enqueueVoice(w http.ResponseWriter, r *http.Request, recordingID string) {
	var req api.VoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	segments := req.Segments
	if len(segments) == 0 {
		rec, err := s.daemon.pipeline.Records().GetByID(r.Context(), recordingID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			s.writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		segments = rec.ScriptSegments
	}

	jobID, err := s.daemon.pipeline.EnqueueVoice(r.Context(), recordingID, segments)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.EnqueueResponse{JobID: jobID, Lane: string(queue.LaneVoice)})
}

func (s *apiServer) enqueueExport(w http.ResponseWriter, r *http.Request, recordingID string) {
	var req api.ExportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	jobID, err := s.daemon.pipeline.EnqueueExport(r.Context(), recordingID, records.ExportFormat(req.Format), req.Options)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.EnqueueResponse{JobID: jobID, Lane: string(queue.LaneExport)})
}

// handleProgress long-polls one progress channel. The request blocks until an
// event arrives or the wait window elapses, then drains whatever else is
// already buffered.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		s.writeError(w, http.StatusBadRequest, "channel is required")
		return
	}
	wait := defaultProgressWait
	if raw := r.URL.Query().Get("wait_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid wait_ms")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, maxProgressWait)
	}

	sub := s.daemon.pipeline.Hub().Join(channel)
	defer s.daemon.pipeline.Hub().Leave(sub)

	var events []api.ProgressEvent
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case event := <-sub.C:
		events = append(events, api.FromProgressEvent(event))
	case <-timer.C:
	case <-r.Context().Done():
		return
	}

	for len(events) > 0 && len(events) < maxProgressBatch {
		select {
		case event := <-sub.C:
			events = append(events, api.FromProgressEvent(event))
		default:
			s.writeJSON(w, http.StatusOK, api.ProgressResponse{Events: events})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, api.ProgressResponse{Events: events})
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
