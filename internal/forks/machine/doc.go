// Package machine implements the per-repository sync state machine.
//
// A run moves IDLE → CHECKING → STASHING → FETCHING → MERGING →
// {CONFLICTED, RESTORING} → {COMPLETED, FAILED, ABORTED}. Every run ends with
// exactly one SyncOutcome, and a stash created by the run is restored exactly
// once whatever happens after it was taken.
package machine
