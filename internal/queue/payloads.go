package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"demostudio/internal/records"
	"demostudio/internal/services"
)

// TransformPayload carries the transform lane's input: the recording to
// process and the raw capture location.
type TransformPayload struct {
	RecordingID string `json:"recordingId"`
	SourceURL   string `json:"sourceUrl"`
}

// VoicePayload carries the voice lane's input: the script segments awaiting
// synthesis, in strict playback order.
type VoicePayload struct {
	RecordingID string                  `json:"recordingId"`
	Segments    []records.ScriptSegment `json:"segments"`
}

// ExportPayload carries the export lane's input.
type ExportPayload struct {
	RecordingID string                `json:"recordingId"`
	Format      records.ExportFormat  `json:"format"`
	Options     records.ExportOptions `json:"options"`
}

// NewTransformPayload validates and encodes a transform job payload.
func NewTransformPayload(recordingID, sourceURL string) ([]byte, error) {
	recordingID = strings.TrimSpace(recordingID)
	sourceURL = strings.TrimSpace(sourceURL)
	if recordingID == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "transform payload", "recording id is required", nil)
	}
	if sourceURL == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "transform payload", "source url is required", nil)
	}
	return json.Marshal(TransformPayload{RecordingID: recordingID, SourceURL: sourceURL})
}

// NewVoicePayload validates and encodes a voice job payload.
func NewVoicePayload(recordingID string, segments []records.ScriptSegment) ([]byte, error) {
	recordingID = strings.TrimSpace(recordingID)
	if recordingID == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "voice payload", "recording id is required", nil)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "queue", "voice payload", "at least one segment is required", nil)
	}
	for i, segment := range segments {
		if strings.TrimSpace(segment.Text) == "" {
			return nil, services.Wrap(services.ErrValidation, "queue", "voice payload", fmt.Sprintf("segment %d has empty text", i), nil)
		}
	}
	return json.Marshal(VoicePayload{RecordingID: recordingID, Segments: segments})
}

// NewExportPayload validates and encodes an export job payload.
func NewExportPayload(recordingID string, format records.ExportFormat, options records.ExportOptions) ([]byte, error) {
	recordingID = strings.TrimSpace(recordingID)
	if recordingID == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "export payload", "recording id is required", nil)
	}
	if _, ok := records.ParseExportFormat(string(format)); !ok {
		return nil, services.Wrap(services.ErrValidation, "queue", "export payload", fmt.Sprintf("unknown format %q", format), nil)
	}
	return json.Marshal(ExportPayload{RecordingID: recordingID, Format: format, Options: options})
}

// DecodeTransformPayload decodes a transform job's payload bytes.
func DecodeTransformPayload(raw []byte) (TransformPayload, error) {
	var payload TransformPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TransformPayload{}, fmt.Errorf("decode transform payload: %w", err)
	}
	return payload, nil
}

// DecodeVoicePayload decodes a voice job's payload bytes.
func DecodeVoicePayload(raw []byte) (VoicePayload, error) {
	var payload VoicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return VoicePayload{}, fmt.Errorf("decode voice payload: %w", err)
	}
	return payload, nil
}

// DecodeExportPayload decodes an export job's payload bytes.
func DecodeExportPayload(raw []byte) (ExportPayload, error) {
	var payload ExportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ExportPayload{}, fmt.Errorf("decode export payload: %w", err)
	}
	return payload, nil
}
