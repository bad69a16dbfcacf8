// Package ffmpeg runs the ffmpeg binary and reports encode progress.
//
// Commands are described declaratively and executed through a Runner so
// transform and export operations stay testable without a real ffmpeg
// install. The exec-backed runner parses the machine-readable progress
// stream (-progress pipe:1) into percent callbacks against a known input
// duration.
package ffmpeg
