// Package reconcile folds incoming wire messages into the client-side
// snapshot of match collections.
//
// Apply functions are pure: they take a snapshot plus one message and
// return a new snapshot without mutating the input. That keeps the merge
// logic testable without simulating a live connection, and guarantees the
// renderer never observes a half-applied update.
package reconcile
