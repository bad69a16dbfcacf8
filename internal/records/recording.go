package records

import (
	"fmt"
	"strings"
	"time"
)

// ProcessingStatus reflects the transform lane's lifecycle on a recording.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingActive    ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// EffectType identifies a declarative visual effect.
type EffectType string

const (
	EffectBlur      EffectType = "blur"
	EffectZoom      EffectType = "zoom"
	EffectHighlight EffectType = "highlight"
)

// Coordinates describe an effect rectangle in source pixel space.
type Coordinates struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VisualEffect is a time-windowed declarative operation applied during export.
// Effects missing Coordinates are skipped by the filter graph builder.
type VisualEffect struct {
	Type        EffectType         `json:"type"`
	StartTime   float64            `json:"startTime"`
	EndTime     float64            `json:"endTime"`
	Coordinates *Coordinates       `json:"coordinates,omitempty"`
	Properties  map[string]float64 `json:"properties,omitempty"`
}

// SubtitleCue is one burn-in caption with its display window.
type SubtitleCue struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Style     string  `json:"style,omitempty"`
}

// ScriptSegment is one narration unit synthesized by the voice lane.
type ScriptSegment struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	VoiceID  string  `json:"voiceId,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Emotion  string  `json:"emotion,omitempty"`
	AudioURL string  `json:"audioUrl,omitempty"`
}

// ExportFormat selects the distribution container for an export job.
type ExportFormat string

const (
	FormatContainerVideo   ExportFormat = "container-video"
	FormatLoopingAnimation ExportFormat = "looping-animation"
	FormatStreamingVideo   ExportFormat = "streaming-video"
)

// ParseExportFormat converts a string into a known ExportFormat.
func ParseExportFormat(value string) (ExportFormat, bool) {
	normalized := ExportFormat(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case FormatContainerVideo, FormatLoopingAnimation, FormatStreamingVideo:
		return normalized, true
	}
	return "", false
}

// WatermarkOptions control the optional drawtext overlay on exports.
type WatermarkOptions struct {
	Enabled  bool    `json:"enabled"`
	Text     string  `json:"text,omitempty"`
	Position string  `json:"position,omitempty"` // top-left, top-right, bottom-left, bottom-right
	Opacity  float64 `json:"opacity,omitempty"`
}

// ExportOptions carry per-job render parameters. Zero values fall back to the
// format's encode profile defaults.
type ExportOptions struct {
	Resolution       string           `json:"resolution,omitempty"` // "1920x1080"
	FrameRate        int              `json:"frameRate,omitempty"`
	Quality          string           `json:"quality,omitempty"` // low, medium, high
	IncludeSubtitles bool             `json:"includeSubtitles"`
	IncludeAudio     bool             `json:"includeAudio"`
	Watermark        WatermarkOptions `json:"watermark"`
}

// Recording is the persisted entity the pipeline reads playback data from and
// writes derived asset URLs back to.
type Recording struct {
	ID                 string
	Title              string
	OriginalVideoURL   string
	ProcessedVideoURL  string
	AudioURL           string
	ThumbnailURL       string
	Duration           float64
	VisualEffects      []VisualEffect
	Subtitles          []SubtitleCue
	ScriptSegments     []ScriptSegment
	ProcessingStatus   ProcessingStatus
	ProcessingProgress float64
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ValidateWindow checks a time window against the recording duration.
// All effect and subtitle windows must satisfy 0 <= start < end <= duration.
func (r *Recording) ValidateWindow(start, end float64) error {
	if start < 0 {
		return fmt.Errorf("window start %.3f is negative", start)
	}
	if start >= end {
		return fmt.Errorf("window start %.3f must precede end %.3f", start, end)
	}
	if r.Duration > 0 && end > r.Duration {
		return fmt.Errorf("window end %.3f exceeds duration %.3f", end, r.Duration)
	}
	return nil
}

// PendingSegments returns the script segments that still lack synthesized audio.
func (r *Recording) PendingSegments() []ScriptSegment {
	var pending []ScriptSegment
	for _, segment := range r.ScriptSegments {
		if strings.TrimSpace(segment.AudioURL) == "" {
			pending = append(pending, segment)
		}
	}
	return pending
}
