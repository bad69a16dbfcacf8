// Package config loads, validates, and normalizes the TOML configuration that
// drives the daemon: directories, per-lane queue policies, ffmpeg binaries,
// speech synthesis credentials, and logging output.
package config
