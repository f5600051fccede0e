package forks

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/forksync/internal/forks/batch"
	"github.com/temirov/forksync/internal/forks/machine"
	"github.com/temirov/forksync/internal/forks/report"
	"github.com/temirov/forksync/internal/repos/discovery"
	"github.com/temirov/forksync/internal/repos/shared"
	pathutils "github.com/temirov/forksync/internal/utils/path"
)

const (
	configurationKeySeparatorConstant       = "."
	workersKeyConstant                      = "workers"
	conflictStrategyKeyConstant             = "conflict_strategy"
	maxRetriesKeyConstant                   = "max_retries"
	fetchTimeoutKeyConstant                 = "fetch_timeout"
	retryBaseDelayKeyConstant               = "retry_base_delay"
	retryMaxDelayKeyConstant                = "retry_max_delay"
	stashMessageKeyConstant                 = "stash_message"
	upstreamRemoteKeyConstant               = "upstream_remote"
	forkRemoteKeyConstant                   = "fork_remote"
	defaultBranchKeyConstant                = "default_branch"
	reportFormatKeyConstant                 = "report_format"
	rootsKeyConstant                        = "roots"
	invalidWorkersTemplateConstant          = "%w: %d"
	invalidRetryDelaysTemplateConstant      = "%w: base %s exceeds max %s"
	invalidRepositoryEntryTemplateConstant  = "repository entry %d: %w"
	invalidRepositoryPolicyTemplateConstant = "repository %q policy: %w"
)

var (
	// ErrWorkersInvalid indicates a worker count below one.
	ErrWorkersInvalid = errors.New("workers must be at least one")
	// ErrRetryDelaysInvalid indicates a base retry delay larger than the maximum delay.
	ErrRetryDelaysInvalid = errors.New("retry delays invalid")
	// ErrRepositoryPathMissing indicates a configured repository without a path.
	ErrRepositoryPathMissing = errors.New("repository path missing")
)

// CommandConfiguration captures the sync section of the configuration file.
type CommandConfiguration struct {
	Workers          int           `mapstructure:"workers"`
	ConflictStrategy string        `mapstructure:"conflict_strategy"`
	MaxRetries       int           `mapstructure:"max_retries"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	StashMessage     string        `mapstructure:"stash_message"`
	UpstreamRemote   string        `mapstructure:"upstream_remote"`
	ForkRemote       string        `mapstructure:"fork_remote"`
	DefaultBranch    string        `mapstructure:"default_branch"`
	ReportFormat     string        `mapstructure:"report_format"`
	RepositoryRoots  []string      `mapstructure:"roots"`
}

// RepositoryConfiguration describes one explicitly configured fork.
type RepositoryConfiguration struct {
	Name          string             `mapstructure:"name"`
	Path          string             `mapstructure:"path"`
	ForkURL       string             `mapstructure:"fork_url"`
	UpstreamURL   string             `mapstructure:"upstream_url"`
	DefaultBranch string             `mapstructure:"default_branch"`
	Policy        *shared.SyncPolicy `mapstructure:"policy"`
}

// Configuration groups the sync settings with the explicit repository list.
type Configuration struct {
	Sync         CommandConfiguration      `mapstructure:"sync"`
	Repositories []RepositoryConfiguration `mapstructure:"repositories"`
}

// DefaultCommandConfiguration provides baseline values for the sync command.
func DefaultCommandConfiguration() CommandConfiguration {
	defaults := machine.DefaultSyncOptions()
	return CommandConfiguration{
		Workers:          batch.DefaultMaxWorkers,
		ConflictStrategy: defaults.ConflictStrategy.String(),
		MaxRetries:       defaults.MaxRetries,
		FetchTimeout:     defaults.FetchTimeout,
		RetryBaseDelay:   defaults.RetryBaseDelay,
		RetryMaxDelay:    defaults.RetryMaxDelay,
		StashMessage:     defaults.StashMessage,
		UpstreamRemote:   defaults.UpstreamRemoteName,
		ForkRemote:       defaults.ForkRemoteName,
		DefaultBranch:    defaults.DefaultBranch,
		ReportFormat:     string(report.FormatText),
		RepositoryRoots:  []string{},
	}
}

// DefaultConfiguration returns the sync defaults with no explicit repositories.
func DefaultConfiguration() Configuration {
	return Configuration{Sync: DefaultCommandConfiguration(), Repositories: []RepositoryConfiguration{}}
}

// DefaultConfigurationValues produces Viper defaults for the sync section stored under sectionKey.
func DefaultConfigurationValues(sectionKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	key := func(name string) string {
		return sectionKey + configurationKeySeparatorConstant + name
	}
	return map[string]any{
		key(workersKeyConstant):          defaults.Workers,
		key(conflictStrategyKeyConstant): defaults.ConflictStrategy,
		key(maxRetriesKeyConstant):       defaults.MaxRetries,
		key(fetchTimeoutKeyConstant):     defaults.FetchTimeout,
		key(retryBaseDelayKeyConstant):   defaults.RetryBaseDelay,
		key(retryMaxDelayKeyConstant):    defaults.RetryMaxDelay,
		key(stashMessageKeyConstant):     defaults.StashMessage,
		key(upstreamRemoteKeyConstant):   defaults.UpstreamRemote,
		key(forkRemoteKeyConstant):       defaults.ForkRemote,
		key(defaultBranchKeyConstant):    defaults.DefaultBranch,
		key(reportFormatKeyConstant):     defaults.ReportFormat,
		key(rootsKeyConstant):            defaults.RepositoryRoots,
	}
}

// Sanitize trims values, expands home-relative roots, and fills unset values from defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.ConflictStrategy = strings.ToLower(strings.TrimSpace(configuration.ConflictStrategy))
	if len(sanitized.ConflictStrategy) == 0 {
		sanitized.ConflictStrategy = defaults.ConflictStrategy
	}
	sanitized.ReportFormat = strings.ToLower(strings.TrimSpace(configuration.ReportFormat))
	if len(sanitized.ReportFormat) == 0 {
		sanitized.ReportFormat = defaults.ReportFormat
	}
	sanitized.StashMessage = strings.TrimSpace(configuration.StashMessage)
	if len(sanitized.StashMessage) == 0 {
		sanitized.StashMessage = defaults.StashMessage
	}
	sanitized.UpstreamRemote = defaultString(configuration.UpstreamRemote, defaults.UpstreamRemote)
	sanitized.ForkRemote = defaultString(configuration.ForkRemote, defaults.ForkRemote)
	sanitized.DefaultBranch = defaultString(configuration.DefaultBranch, defaults.DefaultBranch)
	if sanitized.Workers == 0 {
		sanitized.Workers = defaults.Workers
	}
	if sanitized.FetchTimeout == 0 {
		sanitized.FetchTimeout = defaults.FetchTimeout
	}
	if sanitized.RetryBaseDelay == 0 {
		sanitized.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if sanitized.RetryMaxDelay == 0 {
		sanitized.RetryMaxDelay = defaults.RetryMaxDelay
	}
	sanitized.RepositoryRoots = pathutils.NewSanitizer(nil, pathutils.SanitizerConfiguration{PruneNestedPaths: true}).Sanitize(configuration.RepositoryRoots)

	return sanitized
}

// Validate reports the first setting the sync command cannot honor.
func (configuration CommandConfiguration) Validate() error {
	if configuration.Workers < 1 {
		return fmt.Errorf(invalidWorkersTemplateConstant, ErrWorkersInvalid, configuration.Workers)
	}
	if _, strategyError := shared.ParseConflictStrategy(configuration.ConflictStrategy); strategyError != nil {
		return strategyError
	}
	if _, formatError := report.ParseFormat(configuration.ReportFormat); formatError != nil {
		return formatError
	}
	maxRetries := configuration.MaxRetries
	fetchTimeout := configuration.FetchTimeout
	if policyError := (shared.SyncPolicy{MaxRetries: &maxRetries, FetchTimeout: &fetchTimeout}).Validate(); policyError != nil {
		return policyError
	}
	if configuration.RetryBaseDelay > configuration.RetryMaxDelay {
		return fmt.Errorf(invalidRetryDelaysTemplateConstant, ErrRetryDelaysInvalid, configuration.RetryBaseDelay, configuration.RetryMaxDelay)
	}
	for _, remoteName := range []string{configuration.UpstreamRemote, configuration.ForkRemote} {
		if _, remoteError := shared.NewRemoteName(remoteName); remoteError != nil {
			return remoteError
		}
	}
	if _, branchError := shared.NewBranchName(configuration.DefaultBranch); branchError != nil {
		return branchError
	}
	return nil
}

// SyncOptions converts validated settings into machine options.
func (configuration CommandConfiguration) SyncOptions() (machine.SyncOptions, error) {
	strategy, strategyError := shared.ParseConflictStrategy(configuration.ConflictStrategy)
	if strategyError != nil {
		return machine.SyncOptions{}, strategyError
	}
	return machine.SyncOptions{
		StashMessage:       configuration.StashMessage,
		ConflictStrategy:   strategy,
		MaxRetries:         configuration.MaxRetries,
		FetchTimeout:       configuration.FetchTimeout,
		RetryBaseDelay:     configuration.RetryBaseDelay,
		RetryMaxDelay:      configuration.RetryMaxDelay,
		UpstreamRemoteName: configuration.UpstreamRemote,
		ForkRemoteName:     configuration.ForkRemote,
		DefaultBranch:      configuration.DefaultBranch,
	}, nil
}

// DescriptorOptions returns the discovery settings implied by the sync settings.
func (configuration CommandConfiguration) DescriptorOptions() discovery.DescriptorOptions {
	return discovery.DescriptorOptions{
		UpstreamRemoteName: configuration.UpstreamRemote,
		ForkRemoteName:     configuration.ForkRemote,
		DefaultBranch:      configuration.DefaultBranch,
	}
}

// Descriptors converts the explicit repository entries into descriptors.
// Paths are home-expanded; a missing name falls back to the directory name.
func (configuration Configuration) Descriptors(expander *pathutils.HomeExpander) ([]shared.RepositoryDescriptor, error) {
	if expander == nil {
		expander = pathutils.NewHomeExpander(nil)
	}
	descriptors := make([]shared.RepositoryDescriptor, 0, len(configuration.Repositories))
	for entryIndex, entry := range configuration.Repositories {
		path := expander.Expand(strings.TrimSpace(entry.Path))
		if len(path) == 0 {
			return nil, fmt.Errorf(invalidRepositoryEntryTemplateConstant, entryIndex, ErrRepositoryPathMissing)
		}
		name := strings.TrimSpace(entry.Name)
		if len(name) == 0 {
			name = filepath.Base(filepath.Clean(path))
		}
		if entry.Policy != nil {
			if policyError := entry.Policy.Validate(); policyError != nil {
				return nil, fmt.Errorf(invalidRepositoryPolicyTemplateConstant, name, policyError)
			}
		}
		descriptors = append(descriptors, shared.RepositoryDescriptor{
			Name:          name,
			LocalPath:     path,
			ForkURL:       strings.TrimSpace(entry.ForkURL),
			UpstreamURL:   strings.TrimSpace(entry.UpstreamURL),
			DefaultBranch: strings.TrimSpace(entry.DefaultBranch),
			Policy:        entry.Policy,
		})
	}
	return descriptors, nil
}

func defaultString(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallback
	}
	return trimmed
}
