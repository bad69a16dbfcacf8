// Package queue implements the durable job queue backing the pipeline's three
// lanes (transform, voice, export). Jobs are persisted in SQLite with
// at-least-once delivery: workers claim the oldest runnable job atomically,
// failures reschedule with exponential backoff until the lane's attempt
// budget is exhausted, and terminal jobs are retained briefly for status
// polling before pruning.
package queue
