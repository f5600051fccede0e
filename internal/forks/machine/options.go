package machine

import (
	"strings"
	"time"

	"github.com/temirov/forksync/internal/repos/shared"
	"github.com/temirov/forksync/internal/retry"
)

const (
	// DefaultStashMessage labels stashes created before a sync.
	DefaultStashMessage = "forksync auto-stash"
	// DefaultFetchTimeout bounds a single fetch attempt.
	DefaultFetchTimeout = 60 * time.Second
	// DefaultConflictStrategy leaves conflicts for a person to resolve.
	DefaultConflictStrategy = shared.ConflictStrategyManual

	remoteReferenceSeparatorConstant = "/"
)

// SyncOptions configures one sync run. Descriptor policies override these values.
type SyncOptions struct {
	StashMessage       string
	ConflictStrategy   shared.ConflictStrategy
	MaxRetries         int
	FetchTimeout       time.Duration
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	UpstreamRemoteName string
	ForkRemoteName     string
	DefaultBranch      string
}

// DefaultSyncOptions returns the options used when nothing is configured.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		StashMessage:       DefaultStashMessage,
		ConflictStrategy:   DefaultConflictStrategy,
		MaxRetries:         retry.DefaultMaxRetries,
		FetchTimeout:       DefaultFetchTimeout,
		RetryBaseDelay:     retry.DefaultBaseDelay,
		RetryMaxDelay:      retry.DefaultMaxDelay,
		UpstreamRemoteName: shared.UpstreamRemoteNameConstant,
		ForkRemoteName:     shared.OriginRemoteNameConstant,
		DefaultBranch:      shared.DefaultBranchNameConstant,
	}
}

// resolvedOptions is SyncOptions after defaults and the descriptor policy are applied.
type resolvedOptions struct {
	SyncOptions
	branch string
}

func resolveOptions(options SyncOptions, descriptor shared.RepositoryDescriptor) resolvedOptions {
	defaults := DefaultSyncOptions()
	if len(strings.TrimSpace(options.StashMessage)) == 0 {
		options.StashMessage = defaults.StashMessage
	}
	if options.ConflictStrategy.Validate() != nil {
		options.ConflictStrategy = defaults.ConflictStrategy
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}
	if options.FetchTimeout <= 0 {
		options.FetchTimeout = defaults.FetchTimeout
	}
	if options.RetryBaseDelay <= 0 {
		options.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if options.RetryMaxDelay <= 0 {
		options.RetryMaxDelay = defaults.RetryMaxDelay
	}
	if len(strings.TrimSpace(options.UpstreamRemoteName)) == 0 {
		options.UpstreamRemoteName = defaults.UpstreamRemoteName
	}
	if len(strings.TrimSpace(options.ForkRemoteName)) == 0 {
		options.ForkRemoteName = defaults.ForkRemoteName
	}
	if len(strings.TrimSpace(options.DefaultBranch)) == 0 {
		options.DefaultBranch = defaults.DefaultBranch
	}

	if policy := descriptor.Policy; policy != nil {
		if policy.ConflictStrategy != nil {
			options.ConflictStrategy = *policy.ConflictStrategy
		}
		if policy.MaxRetries != nil {
			options.MaxRetries = *policy.MaxRetries
		}
		if policy.FetchTimeout != nil {
			options.FetchTimeout = *policy.FetchTimeout
		}
		if policy.StashMessage != nil && len(strings.TrimSpace(*policy.StashMessage)) > 0 {
			options.StashMessage = *policy.StashMessage
		}
	}

	branch := strings.TrimSpace(descriptor.DefaultBranch)
	if len(branch) == 0 {
		branch = options.DefaultBranch
	}
	return resolvedOptions{SyncOptions: options, branch: branch}
}

func (options resolvedOptions) upstreamReference() string {
	return options.UpstreamRemoteName + remoteReferenceSeparatorConstant + options.branch
}
