package gitrepo

import (
	"time"

	"github.com/temirov/forksync/internal/repos/shared"
)

// StashRecord identifies a stash created before a sync. Reference is the
// stash commit hash, which stays valid while other stashes come and go.
type StashRecord struct {
	Reference string    `json:"reference" yaml:"reference"`
	Message   string    `json:"message" yaml:"message"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// FetchResult describes a completed fetch.
type FetchResult struct {
	Remote          string        `json:"remote" yaml:"remote"`
	Updated         bool          `json:"updated" yaml:"updated"`
	UpdatedBranches []string      `json:"updated_branches,omitempty" yaml:"updated_branches,omitempty"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
}

// MergeStatus enumerates merge outcomes.
type MergeStatus string

// Merge outcomes.
const (
	MergeStatusClean    MergeStatus = "clean"
	MergeStatusConflict MergeStatus = "conflict"
	MergeStatusFailed   MergeStatus = "failed"
)

// MergeResult describes one merge invocation. ConflictedFiles is non-empty
// exactly when Status is MergeStatusConflict.
type MergeResult struct {
	Status          MergeStatus             `json:"status" yaml:"status"`
	Reference       string                  `json:"reference" yaml:"reference"`
	CommitHash      string                  `json:"commit_hash,omitempty" yaml:"commit_hash,omitempty"`
	ConflictedFiles []string                `json:"conflicted_files,omitempty" yaml:"conflicted_files,omitempty"`
	StrategyApplied shared.ConflictStrategy `json:"strategy_applied" yaml:"strategy_applied"`
	AlreadyUpToDate bool                    `json:"already_up_to_date,omitempty" yaml:"already_up_to_date,omitempty"`
}

// RemoteChange reports what EnsureRemote did.
type RemoteChange string

// Remote reconciliation outcomes.
const (
	RemoteUnchanged RemoteChange = "unchanged"
	RemoteAdded     RemoteChange = "added"
	RemoteUpdated   RemoteChange = "updated"
	// RemoteDiverged means the remote points elsewhere and overwriting was not requested.
	RemoteDiverged RemoteChange = "diverged"
)
