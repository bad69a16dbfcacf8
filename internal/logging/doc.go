// Package logging configures slog output for the daemon and CLI and provides
// typed attribute helpers plus standardized field keys shared across the
// pipeline components.
package logging
