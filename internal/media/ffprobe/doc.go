// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The transform lane uses it to read the capture duration that thumbnail
// seek points and effect window validation are derived from.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
