package report

import (
	"sort"
	"time"

	"github.com/temirov/forksync/internal/forks/batch"
	"github.com/temirov/forksync/internal/forks/machine"
)

// Failure describes one repository whose sync failed.
type Failure struct {
	Repository      string   `json:"repository" yaml:"repository"`
	LocalPath       string   `json:"local_path" yaml:"local_path"`
	State           string   `json:"state" yaml:"state"`
	Kind            string   `json:"kind" yaml:"kind"`
	Reason          string   `json:"reason" yaml:"reason"`
	ConflictedFiles []string `json:"conflicted_files,omitempty" yaml:"conflicted_files,omitempty"`
	Retries         int      `json:"retries" yaml:"retries"`
}

// Skip describes one repository that never ran.
type Skip struct {
	Repository string `json:"repository" yaml:"repository"`
	Reason     string `json:"reason" yaml:"reason"`
}

// StashWarning flags a repository whose stashed work is still parked in the stash list.
type StashWarning struct {
	Repository     string `json:"repository" yaml:"repository"`
	StashReference string `json:"stash_reference" yaml:"stash_reference"`
	Reason         string `json:"reason" yaml:"reason"`
}

// Summary condenses a batch result for export.
type Summary struct {
	Total           int            `json:"total" yaml:"total"`
	Succeeded       int            `json:"succeeded" yaml:"succeeded"`
	Failed          int            `json:"failed" yaml:"failed"`
	Skipped         int            `json:"skipped" yaml:"skipped"`
	Cancelled       bool           `json:"cancelled" yaml:"cancelled"`
	WallClock       time.Duration  `json:"wall_clock" yaml:"wall_clock"`
	TotalDuration   time.Duration  `json:"total_duration" yaml:"total_duration"`
	AverageDuration time.Duration  `json:"average_duration" yaml:"average_duration"`
	Failures        []Failure      `json:"failures" yaml:"failures"`
	Skips           []Skip         `json:"skips,omitempty" yaml:"skips,omitempty"`
	StashWarnings   []StashWarning `json:"stash_warnings,omitempty" yaml:"stash_warnings,omitempty"`
}

// Build aggregates a batch result. Durations sum the repositories that ran;
// skipped repositories do not count toward the average.
func Build(result batch.Result) Summary {
	summary := Summary{
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Cancelled: result.Cancelled,
		WallClock: result.Duration,
		Failures:  []Failure{},
	}

	ran := 0
	for _, outcome := range result.Outcomes {
		switch outcome.Status {
		case machine.OutcomeSkipped:
			summary.Skips = append(summary.Skips, Skip{Repository: outcome.Repository, Reason: outcome.ErrorMessage})
			continue
		case machine.OutcomeFailed:
			summary.Failures = append(summary.Failures, Failure{
				Repository:      outcome.Repository,
				LocalPath:       outcome.LocalPath,
				State:           outcome.FailedState.String(),
				Kind:            string(outcome.ErrorKind),
				Reason:          outcome.ErrorMessage,
				ConflictedFiles: outcome.ConflictedFiles,
				Retries:         outcome.RetryCount,
			})
		}
		ran++
		summary.TotalDuration += outcome.Duration
		if outcome.StashRestoreFailed {
			summary.StashWarnings = append(summary.StashWarnings, StashWarning{
				Repository:     outcome.Repository,
				StashReference: outcome.StashReference,
				Reason:         outcome.StashRestoreError,
			})
		}
	}
	if ran > 0 {
		summary.AverageDuration = summary.TotalDuration / time.Duration(ran)
	}

	sort.SliceStable(summary.Failures, func(first int, second int) bool {
		return summary.Failures[first].Repository < summary.Failures[second].Repository
	})
	sort.SliceStable(summary.StashWarnings, func(first int, second int) bool {
		return summary.StashWarnings[first].Repository < summary.StashWarnings[second].Repository
	})
	return summary
}
