package transform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"demostudio/internal/config"
	"demostudio/internal/logging"
	"demostudio/internal/media/ffmpeg"
	"demostudio/internal/media/ffprobe"
	"demostudio/internal/progress"
	"demostudio/internal/queue"
	"demostudio/internal/records"
	"demostudio/internal/services"
	"demostudio/internal/services/speech"
	"demostudio/internal/services/storage"
	"demostudio/internal/textutil"
)

// ProbeFunc inspects a local media file. Injected so tests run without
// ffprobe installed.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Engine executes the pipeline's media operations. It is safe for concurrent
// use; each operation stages its files in a private temp directory.
type Engine struct {
	cfg     *config.Config
	store   *records.Store
	gateway storage.Gateway
	runner  ffmpeg.Runner
	speech  speech.Synthesizer
	probe   ProbeFunc
	logger  *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithProbe overrides the media inspection function.
func WithProbe(fn ProbeFunc) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.probe = fn
		}
	}
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(
	cfg *config.Config,
	store *records.Store,
	gateway storage.Gateway,
	runner ffmpeg.Runner,
	synthesizer speech.Synthesizer,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		cfg:     cfg,
		store:   store,
		gateway: gateway,
		runner:  runner,
		speech:  synthesizer,
		probe:   ffprobe.Inspect,
		logger:  logger.With(logging.String(logging.FieldComponent, "transform")),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// ProcessResult carries the derived asset URLs produced by Process.
type ProcessResult struct {
	ThumbnailURL string `json:"thumbnailUrl"`
	AudioURL     string `json:"audioUrl"`
}

// Process runs post-upload processing for a recording: thumbnail at 10% of
// the duration, mono 16kHz PCM audio extraction, upload of both, and the
// record write-back. On failure the recording is marked failed with the
// error message before the error is returned for the retry policy to handle.
func (e *Engine) Process(ctx context.Context, payload queue.TransformPayload, sink progress.Sink) (*ProcessResult, error) {
	rec, err := e.store.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "transform", "process", fmt.Sprintf("recording %s does not exist", payload.RecordingID), nil)
	}
	if err := e.store.SetProcessingState(ctx, rec.ID, records.ProcessingActive, 0, ""); err != nil {
		return nil, err
	}

	result, err := e.process(ctx, rec, payload, sink)
	if err != nil {
		if stateErr := e.store.SetProcessingState(ctx, rec.ID, records.ProcessingFailed, 0, err.Error()); stateErr != nil {
			e.logger.Error("failed to record processing failure",
				logging.String(logging.FieldRecordingID, rec.ID),
				logging.Error(stateErr))
		}
		return nil, err
	}
	return result, nil
}

func (e *Engine) process(ctx context.Context, rec *records.Recording, payload queue.TransformPayload, sink progress.Sink) (*ProcessResult, error) {
	workDir, cleanup, err := e.stageDir("process")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	report := func(percent float64, stage string) {
		sink.Report(ctx, percent, stage)
		if err := e.store.SetProcessingState(ctx, rec.ID, records.ProcessingActive, percent, ""); err != nil {
			e.logger.Warn("failed to persist processing progress",
				logging.String(logging.FieldRecordingID, rec.ID),
				logging.Error(err))
		}
	}

	srcPath, err := e.fetchSource(ctx, workDir, payload.SourceURL)
	if err != nil {
		return nil, err
	}
	report(20, "download")

	duration, err := e.resolveDuration(ctx, rec, srcPath)
	if err != nil {
		return nil, err
	}

	thumbPath := filepath.Join(workDir, "thumbnail.jpg")
	seek := duration * 0.10
	thumbArgs := []string{
		"-y",
		"-ss", formatSeconds(seek),
		"-i", srcPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", e.cfg.Export.ThumbnailWidth, e.cfg.Export.ThumbnailHeight),
		thumbPath,
	}
	if err := e.runner.Run(ctx, ffmpeg.Command{Binary: e.cfg.FFmpeg.FFmpegBinary, Args: thumbArgs}); err != nil {
		return nil, fmt.Errorf("generate thumbnail: %w", err)
	}
	report(40, "thumbnail")

	thumbURL, err := e.uploadFile(ctx, thumbPath, rec.ID+"-thumbnail.jpg", "image/jpeg")
	if err != nil {
		return nil, err
	}
	report(60, "thumbnail upload")

	audioPath := filepath.Join(workDir, "audio.wav")
	audioArgs := []string{
		"-y",
		"-i", srcPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	}
	if err := e.runner.Run(ctx, ffmpeg.Command{Binary: e.cfg.FFmpeg.FFmpegBinary, Args: audioArgs}); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	report(80, "audio")

	audioURL, err := e.uploadFile(ctx, audioPath, rec.ID+"-audio.wav", "audio/wav")
	if err != nil {
		return nil, err
	}
	report(90, "audio upload")

	if err := e.store.AttachDerivedAssets(ctx, rec.ID, thumbURL, audioURL); err != nil {
		return nil, err
	}
	if err := e.store.SetProcessingState(ctx, rec.ID, records.ProcessingCompleted, 100, ""); err != nil {
		return nil, err
	}
	sink.Report(ctx, 100, "complete")

	return &ProcessResult{ThumbnailURL: thumbURL, AudioURL: audioURL}, nil
}

// GenerateAudio synthesizes narration for each segment that still lacks a
// clip, strictly in input order. A failed segment aborts the batch; the
// queue-level retry re-runs the remaining unprocessed set.
func (e *Engine) GenerateAudio(ctx context.Context, payload queue.VoicePayload, sink progress.Sink) error {
	rec, err := e.store.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		return services.Wrap(services.ErrNotFound, "transform", "generate audio", fmt.Sprintf("recording %s does not exist", payload.RecordingID), nil)
	}

	segments := make([]records.ScriptSegment, len(payload.Segments))
	copy(segments, payload.Segments)
	total := len(segments)
	done := 0

	for i := range segments {
		segment := &segments[i]
		if strings.TrimSpace(segment.AudioURL) != "" {
			done++
			sink.Report(ctx, float64(done)/float64(total)*80, "synthesize")
			continue
		}

		result, err := e.speech.Synthesize(ctx, speech.Request{
			Text:    segment.Text,
			VoiceID: segment.VoiceID,
			Speed:   segment.Speed,
			Emotion: segment.Emotion,
		})
		if err != nil {
			return fmt.Errorf("synthesize segment %s: %w", segment.ID, err)
		}

		// Segment ids come in with the script and are not trusted as object
		// key material.
		url, err := e.gateway.Upload(ctx, result.Audio, fmt.Sprintf("%s-segment-%s.mp3", rec.ID, textutil.SanitizeToken(segment.ID)), result.ContentType)
		if err != nil {
			return fmt.Errorf("upload segment %s audio: %w", segment.ID, err)
		}
		segment.AudioURL = url
		done++
		sink.Report(ctx, float64(done)/float64(total)*80, "synthesize")
	}

	merged := mergeSegments(rec.ScriptSegments, segments)
	if err := e.store.UpdateSegments(ctx, rec.ID, merged); err != nil {
		return err
	}
	sink.Report(ctx, 90, "write-back")
	sink.Report(ctx, 100, "complete")
	return nil
}

// Export renders the recording into the requested distribution format and
// uploads the artifact. The returned URL is the job's result; export never
// writes back to the recording.
func (e *Engine) Export(ctx context.Context, payload queue.ExportPayload, sink progress.Sink) (string, error) {
	rec, err := e.store.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", services.Wrap(services.ErrNotFound, "transform", "export", fmt.Sprintf("recording %s does not exist", payload.RecordingID), nil)
	}

	profile, ok := ProfileFor(payload.Format)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "transform", "export", fmt.Sprintf("unsupported format %q", payload.Format), nil)
	}
	profile = profile.Apply(payload.Options)

	workDir, cleanup, err := e.stageDir("export")
	if err != nil {
		return "", err
	}
	defer cleanup()

	srcPath, err := e.fetchSource(ctx, workDir, rec.OriginalVideoURL)
	if err != nil {
		return "", err
	}
	sink.Report(ctx, 10, "download")

	duration, err := e.resolveDuration(ctx, rec, srcPath)
	if err != nil {
		return "", err
	}

	subtitlePath := ""
	if payload.Options.IncludeSubtitles && len(rec.Subtitles) > 0 {
		subtitlePath = filepath.Join(workDir, "subtitles.srt")
		if err := WriteSubtitleFile(subtitlePath, rec.Subtitles); err != nil {
			return "", err
		}
	}

	graph, outLabel, hasGraph := buildFilterGraph(graphInput{
		Effects:      e.usableEffects(rec, duration),
		SubtitlePath: subtitlePath,
		Watermark:    payload.Options.Watermark,
		Profile:      profile,
	})
	sink.Report(ctx, 30, "filter graph")

	outPath := filepath.Join(workDir, profile.OutputName())
	args := buildExportArgs(profile, payload.Options, graph, outLabel, hasGraph, srcPath, outPath)
	sink.Report(ctx, 50, "prepare")
	sink.Report(ctx, 70, "encode")

	encodeSink := progress.Scaled(sink, 70, 90)
	err = e.runner.Run(ctx, ffmpeg.Command{
		Binary:        e.cfg.FFmpeg.FFmpegBinary,
		Args:          args,
		InputDuration: duration,
		OnProgress: func(percent float64) {
			encodeSink.Report(ctx, percent, "encode")
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", payload.Format, err)
	}

	url, err := e.uploadFile(ctx, outPath, fmt.Sprintf("%s-%s.%s", rec.ID, payload.Format, profile.Container), contentTypeFor(profile.Container))
	if err != nil {
		return "", err
	}
	sink.Report(ctx, 95, "upload")
	sink.Report(ctx, 100, "complete")
	return url, nil
}

// usableEffects drops effects whose windows fall outside the recording.
// Missing coordinates are left for the graph builder to skip.
func (e *Engine) usableEffects(rec *records.Recording, duration float64) []records.VisualEffect {
	usable := make([]records.VisualEffect, 0, len(rec.VisualEffects))
	for _, effect := range rec.VisualEffects {
		check := records.Recording{Duration: duration}
		if err := check.ValidateWindow(effect.StartTime, effect.EndTime); err != nil {
			e.logger.Warn("skipping effect with invalid window",
				logging.String(logging.FieldRecordingID, rec.ID),
				logging.String("effect_type", string(effect.Type)),
				logging.Error(err))
			continue
		}
		usable = append(usable, effect)
	}
	return usable
}

func buildExportArgs(profile Profile, opts records.ExportOptions, graph, outLabel string, hasGraph bool, srcPath, outPath string) []string {
	args := []string{"-y", "-i", srcPath}
	if hasGraph {
		args = append(args, "-filter_complex", graph, "-map", "["+outLabel+"]")
		if profile.HasAudio {
			args = append(args, "-map", "0:a?")
		}
	} else {
		args = append(args, "-s", fmt.Sprintf("%dx%d", profile.Width, profile.Height))
	}
	args = append(args, "-r", strconv.Itoa(profile.FrameRate))
	if profile.VideoCodec != "gif" {
		args = append(args, "-c:v", profile.VideoCodec)
	}
	if profile.PixelFormat != "" {
		args = append(args, "-pix_fmt", profile.PixelFormat)
	}
	args = append(args, profile.QualityArgs(opts.Quality)...)
	if profile.HasAudio {
		args = append(args, "-c:a", profile.AudioCodec)
	} else {
		args = append(args, "-an")
	}
	return append(args, outPath)
}

func (e *Engine) fetchSource(ctx context.Context, workDir, sourceURL string) (string, error) {
	data, err := e.gateway.Download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}
	srcPath := filepath.Join(workDir, "source"+sourceExt(sourceURL))
	if err := os.WriteFile(srcPath, data, 0o644); err != nil {
		return "", fmt.Errorf("stage source: %w", err)
	}
	return srcPath, nil
}

func (e *Engine) resolveDuration(ctx context.Context, rec *records.Recording, srcPath string) (float64, error) {
	if rec.Duration > 0 {
		return rec.Duration, nil
	}
	probed, err := e.probe(ctx, e.cfg.FFmpeg.FFprobeBinary, srcPath)
	if err != nil {
		return 0, fmt.Errorf("probe source: %w", err)
	}
	duration := probed.DurationSeconds()
	if duration <= 0 {
		return 0, services.Wrap(services.ErrExternalTool, "transform", "probe", "source reports no duration", nil)
	}
	return duration, nil
}

func (e *Engine) uploadFile(ctx context.Context, path, key, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
	}
	url, err := e.gateway.Upload(ctx, data, key, contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return url, nil
}

func (e *Engine) stageDir(operation string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "demostudio-"+operation+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("temp dir cleanup failed",
				logging.String("dir", dir),
				logging.Error(err))
		}
	}
	return dir, cleanup, nil
}

func mergeSegments(existing, updated []records.ScriptSegment) []records.ScriptSegment {
	if len(existing) == 0 {
		return updated
	}
	audioByID := make(map[string]string, len(updated))
	for _, segment := range updated {
		if segment.AudioURL != "" {
			audioByID[segment.ID] = segment.AudioURL
		}
	}
	merged := make([]records.ScriptSegment, len(existing))
	copy(merged, existing)
	for i := range merged {
		if url, ok := audioByID[merged[i].ID]; ok {
			merged[i].AudioURL = url
		}
	}
	return merged
}

func sourceExt(url string) string {
	base := url
	if idx := strings.LastIndexByte(base, '?'); idx >= 0 {
		base = base[:idx]
	}
	ext := filepath.Ext(base)
	if ext == "" || len(ext) > 6 {
		return ".mp4"
	}
	return ext
}

func contentTypeFor(container string) string {
	switch container {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
