package machine

import (
	"time"

	"github.com/temirov/forksync/internal/gitrepo"
)

// State is one step of a repository sync.
type State string

// Sync states. COMPLETED, FAILED and ABORTED are terminal.
const (
	StateIdle       State = "IDLE"
	StateChecking   State = "CHECKING"
	StateStashing   State = "STASHING"
	StateFetching   State = "FETCHING"
	StateMerging    State = "MERGING"
	StateConflicted State = "CONFLICTED"
	StateRestoring  State = "RESTORING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateAborted    State = "ABORTED"
)

// IsTerminal reports whether no further transition follows the state.
func (state State) IsTerminal() bool {
	return state == StateCompleted || state == StateFailed || state == StateAborted
}

// String returns the state name.
func (state State) String() string {
	return string(state)
}

// interruptible lists the states that are not entered once the run is cancelled.
var interruptible = map[State]bool{
	StateStashing: true,
	StateFetching: true,
	StateMerging:  true,
}

// OutcomeStatus summarizes a terminal state for reports.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// OutcomeStatusFor maps a terminal state to its reported status.
func OutcomeStatusFor(state State) OutcomeStatus {
	switch state {
	case StateCompleted:
		return OutcomeSuccess
	case StateAborted:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

// StashRestoreStatus reports what happened to a stash created during the sync.
type StashRestoreStatus string

// Stash restore statuses.
const (
	StashRestoreNone     StashRestoreStatus = "none"
	StashRestoreRestored StashRestoreStatus = "restored"
	StashRestoreFailed   StashRestoreStatus = "failed"
)

// MergeState tracks the repository's merge progress during a run.
type MergeState string

// Merge progress values.
const (
	MergeStateNone       MergeState = "none"
	MergeStateInProgress MergeState = "in-progress"
	MergeStateConflicted MergeState = "conflicted"
	MergeStateCompleted  MergeState = "completed"
	MergeStateAborted    MergeState = "aborted"
)

// Transition records one state change.
type Transition struct {
	From State     `json:"from" yaml:"from"`
	To   State     `json:"to" yaml:"to"`
	At   time.Time `json:"at" yaml:"at"`
}

// RepositoryState is the mutable view of a repository owned by a single run.
type RepositoryState struct {
	OriginalBranch        string
	CurrentBranch         string
	SwitchedBranch        bool
	HasUncommittedChanges bool
	Stash                 *gitrepo.StashRecord
	LastFetch             *gitrepo.FetchResult
	Merge                 MergeState
	LastMerge             *gitrepo.MergeResult
}
