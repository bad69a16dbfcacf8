// Package transform implements the three pipeline operations: post-upload
// processing (thumbnail and audio extraction), per-segment voice synthesis,
// and export rendering with declarative visual effects.
//
// The Engine owns no scheduling. Workers hand it a decoded payload and a
// progress sink; retries, concurrency, and persistence of job state belong
// to the queue layer. Every operation stages its intermediate files in a
// per-job temp directory that is removed on all exit paths.
package transform
