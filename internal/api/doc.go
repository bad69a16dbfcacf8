// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal queue and records models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Lane, queue.State) are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
