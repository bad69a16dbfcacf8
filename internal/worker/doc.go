// Package worker runs the per-lane job pools. Each lane gets a fixed number
// of goroutines that claim jobs from the queue store, execute the registered
// handler under the lane's timeout, and persist the outcome. Progress flows
// through a composite sink that both persists advisory percent on the job row
// and broadcasts to the live progress hub.
package worker
