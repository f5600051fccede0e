package batch

import (
	"sort"
	"time"

	"github.com/temirov/forksync/internal/forks/machine"
)

const (
	exitCodeSuccessConstant = 0
	exitCodeFailureConstant = 1
)

// Result is the immutable summary of one batch run. Outcomes are sorted by repository name.
type Result struct {
	Outcomes   []machine.SyncOutcome `json:"outcomes" yaml:"outcomes"`
	Total      int                   `json:"total" yaml:"total"`
	Succeeded  int                   `json:"succeeded" yaml:"succeeded"`
	Failed     int                   `json:"failed" yaml:"failed"`
	Skipped    int                   `json:"skipped" yaml:"skipped"`
	StartedAt  time.Time             `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time             `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration         `json:"duration" yaml:"duration"`
	Cancelled  bool                  `json:"cancelled" yaml:"cancelled"`
}

// NewResult sorts outcomes and computes the totals.
func NewResult(outcomes []machine.SyncOutcome, startedAt time.Time, finishedAt time.Time, cancelled bool) Result {
	sorted := append([]machine.SyncOutcome{}, outcomes...)
	sort.SliceStable(sorted, func(first int, second int) bool {
		if sorted[first].Repository == sorted[second].Repository {
			return sorted[first].LocalPath < sorted[second].LocalPath
		}
		return sorted[first].Repository < sorted[second].Repository
	})

	result := Result{
		Outcomes:   sorted,
		Total:      len(sorted),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Cancelled:  cancelled,
	}
	for _, outcome := range sorted {
		switch {
		case outcome.Succeeded():
			result.Succeeded++
		case outcome.Status == machine.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result
}

// HasFailures reports whether any repository failed.
func (result Result) HasFailures() bool {
	return result.Failed > 0
}

// ExitCode is 0 when every repository ran without failing and 1 when any
// repository failed or the run was cancelled.
func (result Result) ExitCode() int {
	if result.HasFailures() || result.Cancelled {
		return exitCodeFailureConstant
	}
	return exitCodeSuccessConstant
}

// Outcome returns the outcome for a repository name.
func (result Result) Outcome(repository string) (machine.SyncOutcome, bool) {
	for _, outcome := range result.Outcomes {
		if outcome.Repository == repository {
			return outcome, true
		}
	}
	return machine.SyncOutcome{}, false
}
