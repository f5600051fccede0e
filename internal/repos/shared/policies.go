package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConflictStrategy selects how merge conflicts with upstream are handled.
type ConflictStrategy string

// Supported conflict strategies.
const (
	// ConflictStrategyOurs keeps the fork's side of every conflicting hunk.
	ConflictStrategyOurs ConflictStrategy = "ours"
	// ConflictStrategyTheirs keeps the upstream side of every conflicting hunk.
	ConflictStrategyTheirs ConflictStrategy = "theirs"
	// ConflictStrategyManual leaves conflicts for a person and fails the sync.
	ConflictStrategyManual ConflictStrategy = "manual"
	// ConflictStrategyNone performs a plain merge and reports conflicts unresolved.
	ConflictStrategyNone ConflictStrategy = "none"
)

const (
	unsupportedConflictStrategyTemplateConstant = "%w: %q (expected one of %s)"
	conflictStrategyListSeparatorConstant       = ", "
	negativeMaxRetriesTemplateConstant          = "%w: %d"
	nonPositiveFetchTimeoutTemplateConstant     = "%w: %s"
)

var (
	// ErrConflictStrategyUnsupported indicates an unknown conflict strategy name.
	ErrConflictStrategyUnsupported = errors.New("unsupported conflict strategy")
	// ErrMaxRetriesNegative indicates a negative retry budget.
	ErrMaxRetriesNegative = errors.New("max retries must not be negative")
	// ErrFetchTimeoutNonPositive indicates a fetch timeout that would expire immediately.
	ErrFetchTimeoutNonPositive = errors.New("fetch timeout must be positive")
)

// ConflictStrategies lists every supported strategy in presentation order.
func ConflictStrategies() []ConflictStrategy {
	return []ConflictStrategy{ConflictStrategyOurs, ConflictStrategyTheirs, ConflictStrategyManual, ConflictStrategyNone}
}

// ParseConflictStrategy normalizes user input into a ConflictStrategy.
func ParseConflictStrategy(raw string) (ConflictStrategy, error) {
	normalized := ConflictStrategy(strings.ToLower(strings.TrimSpace(raw)))
	if validationError := normalized.Validate(); validationError != nil {
		return "", validationError
	}
	return normalized, nil
}

// Validate reports whether the strategy is supported.
func (strategy ConflictStrategy) Validate() error {
	for _, supported := range ConflictStrategies() {
		if strategy == supported {
			return nil
		}
	}
	names := make([]string, 0, len(ConflictStrategies()))
	for _, supported := range ConflictStrategies() {
		names = append(names, string(supported))
	}
	return fmt.Errorf(unsupportedConflictStrategyTemplateConstant, ErrConflictStrategyUnsupported, string(strategy), strings.Join(names, conflictStrategyListSeparatorConstant))
}

// ResolvesAutomatically reports whether the strategy drives a second merge pass that settles conflicts.
func (strategy ConflictStrategy) ResolvesAutomatically() bool {
	return strategy == ConflictStrategyOurs || strategy == ConflictStrategyTheirs
}

// String returns the strategy name.
func (strategy ConflictStrategy) String() string {
	return string(strategy)
}

// SyncPolicy carries per-repository overrides. Nil fields inherit the batch options.
type SyncPolicy struct {
	ConflictStrategy *ConflictStrategy `json:"conflict_strategy,omitempty" yaml:"conflict_strategy,omitempty" mapstructure:"conflict_strategy"`
	MaxRetries       *int              `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries"`
	FetchTimeout     *time.Duration    `json:"fetch_timeout,omitempty" yaml:"fetch_timeout,omitempty" mapstructure:"fetch_timeout"`
	StashMessage     *string           `json:"stash_message,omitempty" yaml:"stash_message,omitempty" mapstructure:"stash_message"`
}

// Validate reports the first override that cannot be applied.
func (policy SyncPolicy) Validate() error {
	if policy.ConflictStrategy != nil {
		if strategyError := policy.ConflictStrategy.Validate(); strategyError != nil {
			return strategyError
		}
	}
	if policy.MaxRetries != nil && *policy.MaxRetries < 0 {
		return fmt.Errorf(negativeMaxRetriesTemplateConstant, ErrMaxRetriesNegative, *policy.MaxRetries)
	}
	if policy.FetchTimeout != nil && *policy.FetchTimeout <= 0 {
		return fmt.Errorf(nonPositiveFetchTimeoutTemplateConstant, ErrFetchTimeoutNonPositive, policy.FetchTimeout.String())
	}
	return nil
}
