package forks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/forks/batch"
	"github.com/temirov/forksync/internal/forks/machine"
	"github.com/temirov/forksync/internal/forks/report"
	"github.com/temirov/forksync/internal/repos/dependencies"
	"github.com/temirov/forksync/internal/repos/shared"
	"github.com/temirov/forksync/internal/retry"
	"github.com/temirov/forksync/internal/utils"
	flagutils "github.com/temirov/forksync/internal/utils/flags"
	pathutils "github.com/temirov/forksync/internal/utils/path"
)

const (
	commandUseConstant                  = "sync [paths...]"
	commandShortDescriptionConstant     = "Synchronize fork repositories with their upstream"
	commandLongDescriptionConstant      = "sync stashes local work, fetches upstream, merges the default branch, and restores the stash for every configured or discovered fork. Positional paths restrict the run to those repositories."
	flagWorkersNameConstant             = "workers"
	flagWorkersDescriptionConstant      = "Maximum number of repositories synchronized concurrently"
	flagStrategyNameConstant            = "strategy"
	flagStrategyDescriptionConstant     = "Conflict strategy applied when upstream and the fork disagree"
	flagMaxRetriesNameConstant          = "max-retries"
	flagMaxRetriesDescriptionConstant   = "Retries for recoverable fetch failures"
	flagFetchTimeoutNameConstant        = "fetch-timeout"
	flagFetchTimeoutDescriptionConstant = "Timeout for a single fetch attempt"
	flagFormatNameConstant              = "format"
	flagFormatDescriptionConstant       = "Report format"
	noRepositoriesMessageConstant       = "no repositories to synchronize; configure repositories, set sync.roots, or pass --root"
	repositoriesFailedTemplateConstant  = "%w: %d of %d"
	syncInterruptedTemplateConstant     = "%w: %d of %d repositories skipped: %w"
	discoveryErrorTemplateConstant      = "repository discovery failed: %w"
	reportErrorTemplateConstant         = "report could not be written: %w"
	syncPlannedMessageConstant          = "sync planned"
	configuredFieldConstant             = "configured"
	discoveredFieldConstant             = "discovered"
	selectedFieldConstant               = "selected"
	workersFieldConstant                = "workers"
	strategyFieldConstant               = "strategy"
	configurationFileFieldConstant      = "config_file"
)

var (
	// ErrNoRepositories indicates neither configuration, discovery, nor arguments produced a repository.
	ErrNoRepositories = errors.New(noRepositoriesMessageConstant)
	// ErrRepositoriesFailed indicates at least one repository ended in a failed state.
	ErrRepositoriesFailed = errors.New("repositories failed to synchronize")
	// ErrSyncInterrupted indicates the run was cancelled before every repository finished.
	ErrSyncInterrupted = errors.New("sync interrupted")
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the sync command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	GitExecutor                  shared.GitExecutor
	RepositoryManager            machine.RepositoryManager
	Discoverer                   shared.RepositoryDiscoverer
	Registry                     *batch.Registry
	Clock                        shared.Clock
	Sleeper                      retry.Sleeper
	HomeExpander                 *pathutils.HomeExpander
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().Int(flagWorkersNameConstant, defaults.Workers, flagWorkersDescriptionConstant)
	flagutils.AddChoiceFlag(command.Flags(), flagStrategyNameConstant, defaults.ConflictStrategy, conflictStrategyNames(), flagStrategyDescriptionConstant)
	command.Flags().Int(flagMaxRetriesNameConstant, defaults.MaxRetries, flagMaxRetriesDescriptionConstant)
	command.Flags().Duration(flagFetchTimeoutNameConstant, defaults.FetchTimeout, flagFetchTimeoutDescriptionConstant)
	flagutils.AddChoiceFlag(command.Flags(), flagFormatNameConstant, defaults.ReportFormat, reportFormatNames(), flagFormatDescriptionConstant)
	flagutils.BindRootFlags(command, flagutils.RootFlagValues{}, flagutils.RootFlagDefinition{})

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	settings := builder.applyFlags(command, configuration.Sync).Sanitize()
	if validationError := settings.Validate(); validationError != nil {
		return validationError
	}
	syncOptions, optionsError := settings.SyncOptions()
	if optionsError != nil {
		return optionsError
	}
	format, formatError := report.ParseFormat(settings.ReportFormat)
	if formatError != nil {
		return formatError
	}

	logger := builder.resolveLogger()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger, humanReadableLogging)
	if executorError != nil {
		return executorError
	}
	repositoryManager, managerError := dependencies.ResolveRepositoryManager(builder.RepositoryManager, gitExecutor, builder.Clock, logger)
	if managerError != nil {
		return managerError
	}

	configured, configuredError := configuration.Descriptors(builder.HomeExpander)
	if configuredError != nil {
		return configuredError
	}
	discovered := []shared.RepositoryDescriptor{}
	if len(settings.RepositoryRoots) > 0 {
		discoverer, discovererError := dependencies.ResolveRepositoryDiscoverer(builder.Discoverer, settings.DescriptorOptions(), logger)
		if discovererError != nil {
			return discovererError
		}
		found, discoveryError := discoverer.DiscoverDescriptors(command.Context(), settings.RepositoryRoots)
		if discoveryError != nil {
			return fmt.Errorf(discoveryErrorTemplateConstant, discoveryError)
		}
		discovered = found
	}

	descriptors := selectDescriptors(mergeDescriptors(configured, discovered), arguments, builder.HomeExpander)
	if len(descriptors) == 0 {
		_ = command.Help()
		return ErrNoRepositories
	}

	configurationMetadata, _ := utils.NewCommandContextAccessor().ConfigurationMetadata(command.Context())
	logger.Info(syncPlannedMessageConstant,
		zap.Int(configuredFieldConstant, len(configured)),
		zap.Int(discoveredFieldConstant, len(discovered)),
		zap.Int(selectedFieldConstant, len(descriptors)),
		zap.Int(workersFieldConstant, settings.Workers),
		zap.String(strategyFieldConstant, syncOptions.ConflictStrategy.String()),
		zap.String(configurationFileFieldConstant, configurationMetadata.ConfigFileUsed),
	)

	service, serviceError := machine.NewService(machine.Dependencies{
		RepositoryManager: repositoryManager,
		Logger:            logger,
		Clock:             builder.Clock,
		Sleeper:           builder.Sleeper,
	})
	if serviceError != nil {
		return serviceError
	}
	orchestrator, orchestratorError := batch.NewOrchestrator(batch.Dependencies{
		Runner:   service,
		Registry: builder.Registry,
		Logger:   logger,
		Clock:    builder.Clock,
	})
	if orchestratorError != nil {
		return orchestratorError
	}

	result := orchestrator.RunBatchSync(command.Context(), descriptors, batch.Options{MaxWorkers: settings.Workers, Sync: syncOptions})

	encoder, encoderError := report.NewEncoder(command.OutOrStdout())
	if encoderError != nil {
		return encoderError
	}
	if encodeError := encoder.Encode(format, result); encodeError != nil {
		return fmt.Errorf(reportErrorTemplateConstant, encodeError)
	}

	if result.Cancelled {
		return fmt.Errorf(syncInterruptedTemplateConstant, ErrSyncInterrupted, result.Skipped, result.Total, context.Cause(command.Context()))
	}
	if result.HasFailures() {
		return fmt.Errorf(repositoriesFailedTemplateConstant, ErrRepositoriesFailed, result.Failed, result.Total)
	}
	return nil
}

// applyFlags overrides configured values with flags the user set explicitly.
func (builder *CommandBuilder) applyFlags(command *cobra.Command, configuration CommandConfiguration) CommandConfiguration {
	flagSet := command.Flags()
	if flagutils.Changed(command, flagWorkersNameConstant) {
		configuration.Workers, _ = flagSet.GetInt(flagWorkersNameConstant)
	}
	if flagutils.Changed(command, flagStrategyNameConstant) {
		configuration.ConflictStrategy = flagSet.Lookup(flagStrategyNameConstant).Value.String()
	}
	if flagutils.Changed(command, flagMaxRetriesNameConstant) {
		configuration.MaxRetries, _ = flagSet.GetInt(flagMaxRetriesNameConstant)
	}
	if flagutils.Changed(command, flagFetchTimeoutNameConstant) {
		configuration.FetchTimeout, _ = flagSet.GetDuration(flagFetchTimeoutNameConstant)
	}
	if flagutils.Changed(command, flagFormatNameConstant) {
		configuration.ReportFormat = flagSet.Lookup(flagFormatNameConstant).Value.String()
	}
	if flagutils.Changed(command, flagutils.DefaultRootFlagName) {
		configuration.RepositoryRoots, _ = flagSet.GetStringArray(flagutils.DefaultRootFlagName)
	}
	return configuration
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// mergeDescriptors appends discovered descriptors whose path is not already configured.
func mergeDescriptors(configured []shared.RepositoryDescriptor, discovered []shared.RepositoryDescriptor) []shared.RepositoryDescriptor {
	merged := append([]shared.RepositoryDescriptor{}, configured...)
	known := make(map[string]struct{}, len(configured))
	for _, descriptor := range configured {
		known[pathutils.Canonical(descriptor.LocalPath)] = struct{}{}
	}
	for _, descriptor := range discovered {
		key := pathutils.Canonical(descriptor.LocalPath)
		if _, exists := known[key]; exists {
			continue
		}
		known[key] = struct{}{}
		merged = append(merged, descriptor)
	}
	return merged
}

// selectDescriptors keeps descriptors whose path matches an argument. Arguments
// matching no descriptor become descriptors of their own that rely on the
// remotes already configured in the repository.
func selectDescriptors(available []shared.RepositoryDescriptor, arguments []string, expander *pathutils.HomeExpander) []shared.RepositoryDescriptor {
	requested := pathutils.NewSanitizer(expander, pathutils.SanitizerConfiguration{}).Sanitize(arguments)
	if len(requested) == 0 {
		return available
	}
	byPath := make(map[string]shared.RepositoryDescriptor, len(available))
	for _, descriptor := range available {
		byPath[pathutils.Canonical(descriptor.LocalPath)] = descriptor
	}
	selected := make([]shared.RepositoryDescriptor, 0, len(requested))
	for _, path := range requested {
		if descriptor, exists := byPath[pathutils.Canonical(path)]; exists {
			selected = append(selected, descriptor)
			continue
		}
		selected = append(selected, shared.RepositoryDescriptor{
			Name:      filepath.Base(pathutils.Canonical(path)),
			LocalPath: path,
		})
	}
	return selected
}

func conflictStrategyNames() []string {
	names := make([]string, 0, len(shared.ConflictStrategies()))
	for _, strategy := range shared.ConflictStrategies() {
		names = append(names, strategy.String())
	}
	return names
}

func reportFormatNames() []string {
	names := make([]string, 0, len(report.Formats()))
	for _, format := range report.Formats() {
		names = append(names, string(format))
	}
	return names
}
