// Package records persists Recording entities: the source video reference,
// derived asset URLs, declared visual effects, subtitle cues, and script
// segments. The pipeline writes back only field-scoped subsets (transform and
// voice touch disjoint columns), so concurrent lanes never clobber each other.
package records
