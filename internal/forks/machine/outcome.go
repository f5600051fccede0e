package machine

import (
	"time"

	"github.com/temirov/forksync/internal/gitrepo"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
)

// SyncOutcome is the single record produced by every sync run.
type SyncOutcome struct {
	Repository         string               `json:"repository" yaml:"repository"`
	LocalPath          string               `json:"local_path" yaml:"local_path"`
	Status             OutcomeStatus        `json:"status" yaml:"status"`
	FinalState         State                `json:"final_state" yaml:"final_state"`
	FailedState        State                `json:"failed_state,omitempty" yaml:"failed_state,omitempty"`
	ErrorKind          repoerrors.Kind      `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage       string               `json:"error,omitempty" yaml:"error,omitempty"`
	Err                error                `json:"-" yaml:"-"`
	RetryCount         int                  `json:"retry_count" yaml:"retry_count"`
	Attempts           int                  `json:"attempts" yaml:"attempts"`
	StashCreated       bool                 `json:"stash_created" yaml:"stash_created"`
	StashReference     string               `json:"stash_reference,omitempty" yaml:"stash_reference,omitempty"`
	StashRestore       StashRestoreStatus   `json:"stash_restore" yaml:"stash_restore"`
	StashRestoreFailed bool                 `json:"stash_restore_failed,omitempty" yaml:"stash_restore_failed,omitempty"`
	StashRestoreError  string               `json:"stash_restore_error,omitempty" yaml:"stash_restore_error,omitempty"`
	ConflictedFiles    []string             `json:"conflicted_files,omitempty" yaml:"conflicted_files,omitempty"`
	ResolvedFiles      []string             `json:"resolved_files,omitempty" yaml:"resolved_files,omitempty"`
	StrategyApplied    string               `json:"strategy_applied,omitempty" yaml:"strategy_applied,omitempty"`
	Fetch              *gitrepo.FetchResult `json:"fetch,omitempty" yaml:"fetch,omitempty"`
	Merge              *gitrepo.MergeResult `json:"merge,omitempty" yaml:"merge,omitempty"`
	Transitions        []Transition         `json:"transitions" yaml:"transitions"`
	StartedAt          time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt         time.Time            `json:"finished_at" yaml:"finished_at"`
	Duration           time.Duration        `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the run completed.
func (outcome SyncOutcome) Succeeded() bool {
	return outcome.Status == OutcomeSuccess
}

// SkippedOutcome builds the outcome for a repository that never started.
func SkippedOutcome(name string, localPath string, reason error, at time.Time) SyncOutcome {
	outcome := SyncOutcome{
		Repository:   name,
		LocalPath:    localPath,
		Status:       OutcomeSkipped,
		FinalState:   StateAborted,
		FailedState:  StateIdle,
		StashRestore: StashRestoreNone,
		Transitions:  []Transition{{From: StateIdle, To: StateAborted, At: at}},
		StartedAt:    at,
		FinishedAt:   at,
	}
	if reason != nil {
		outcome.Err = reason
		outcome.ErrorMessage = reason.Error()
	}
	return outcome
}

// FailedOutcome builds a FAILED outcome for a run that could not be driven at all.
func FailedOutcome(name string, localPath string, failure error, startedAt time.Time, finishedAt time.Time) SyncOutcome {
	outcome := SyncOutcome{
		Repository:   name,
		LocalPath:    localPath,
		Status:       OutcomeFailed,
		FinalState:   StateFailed,
		FailedState:  StateIdle,
		StashRestore: StashRestoreNone,
		Transitions:  []Transition{{From: StateIdle, To: StateFailed, At: finishedAt}},
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Duration:     finishedAt.Sub(startedAt),
	}
	if failure != nil {
		outcome.Err = failure
		outcome.ErrorMessage = failure.Error()
		outcome.ErrorKind = repoerrors.KindOf(failure)
	}
	return outcome
}
