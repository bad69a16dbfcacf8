// Package daemon coordinates the long-running demostudio process.
//
// It wires configuration, the processing pipeline, and the HTTP API into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Preflight checks gate startup so workers never claim jobs a broken host
// cannot finish.
//
// Keep orchestration logic here: job execution lives in the worker and
// transform packages while the daemon focuses on startup, shutdown, and the
// API surface.
package daemon
