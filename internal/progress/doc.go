// Package progress fans job progress events out to interested subscribers.
//
// Channels are keyed by subject: "processing:<recordingID>" for transform and
// voice work, "export:<jobID>" for export jobs. Delivery is fire and forget;
// a subscriber that cannot keep up loses events, and late joiners see only
// what is published after they join. Durable state lives in the queue store,
// not here.
package progress
