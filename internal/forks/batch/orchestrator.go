package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/forksync/internal/forks/machine"
	"github.com/temirov/forksync/internal/repos/shared"
	pathutils "github.com/temirov/forksync/internal/utils/path"
)

const (
	// DefaultMaxWorkers bounds concurrent repository syncs when none is configured.
	DefaultMaxWorkers = 4

	syncRunnerMissingMessageConstant   = "sync runner not configured"
	duplicateRepositoryMessageConstant = "repository listed more than once"
	repositoryInFlightMessageConstant  = "repository already syncing"
	batchCancelledMessageConstant      = "batch cancelled before the repository started"
	workerPanicMessageConstant         = "sync worker panicked"
	duplicateTemplateConstant          = "%w: %s"
	panicTemplateConstant              = "%w: %v"
	batchStartedMessageConstant        = "batch sync started"
	batchFinishedMessageConstant       = "batch sync finished"
	repositoryFinishedMessageConstant  = "repository sync finished"
	repositoriesFieldConstant          = "repositories"
	workersFieldConstant               = "workers"
	repositoryFieldConstant            = "repository"
	statusFieldConstant                = "status"
	completedFieldConstant             = "completed"
	succeededFieldConstant             = "succeeded"
	failedFieldConstant                = "failed"
	skippedFieldConstant               = "skipped"
	cancelledFieldConstant             = "cancelled"
	durationFieldConstant              = "duration"
	inFlightFieldConstant              = "in_flight"
)

var (
	// ErrSyncRunnerNotConfigured indicates the sync runner dependency was missing.
	ErrSyncRunnerNotConfigured = errors.New(syncRunnerMissingMessageConstant)
	// ErrDuplicateRepository marks a descriptor whose name or path repeats an earlier one.
	ErrDuplicateRepository = errors.New(duplicateRepositoryMessageConstant)
	// ErrRepositoryInFlight marks a repository another batch is already syncing.
	ErrRepositoryInFlight = errors.New(repositoryInFlightMessageConstant)
	// ErrBatchCancelled marks a repository that was never started.
	ErrBatchCancelled = errors.New(batchCancelledMessageConstant)
	// ErrWorkerPanicked marks a repository whose sync panicked.
	ErrWorkerPanicked = errors.New(workerPanicMessageConstant)
)

// SyncRunner runs one repository sync.
type SyncRunner interface {
	RunSync(executionContext context.Context, descriptor shared.RepositoryDescriptor, options machine.SyncOptions) machine.SyncOutcome
}

// Options configures a batch run. Cancellation comes from the context passed to RunBatchSync.
type Options struct {
	MaxWorkers int
	Sync       machine.SyncOptions
}

// Dependencies enumerates the collaborators of the orchestrator.
type Dependencies struct {
	Runner   SyncRunner
	Registry *Registry
	Logger   *zap.Logger
	Clock    shared.Clock
}

// Orchestrator runs many repository syncs on a bounded worker pool.
type Orchestrator struct {
	runner   SyncRunner
	registry *Registry
	logger   *zap.Logger
	clock    shared.Clock
}

// NewOrchestrator constructs an Orchestrator from the provided dependencies.
func NewOrchestrator(dependencies Dependencies) (*Orchestrator, error) {
	if dependencies.Runner == nil {
		return nil, ErrSyncRunnerNotConfigured
	}
	orchestrator := &Orchestrator{
		runner:   dependencies.Runner,
		registry: dependencies.Registry,
		logger:   dependencies.Logger,
		clock:    dependencies.Clock,
	}
	if orchestrator.registry == nil {
		orchestrator.registry = NewRegistry()
	}
	if orchestrator.logger == nil {
		orchestrator.logger = zap.NewNop()
	}
	if orchestrator.clock == nil {
		orchestrator.clock = shared.SystemClock{}
	}
	return orchestrator, nil
}

type plannedSync struct {
	descriptor shared.RepositoryDescriptor
	key        string
}

// RunBatchSync syncs every descriptor and returns one outcome per descriptor.
// Failures never stop other repositories. Once the context is cancelled,
// repositories that have not started are reported skipped and running ones
// finish at their next safe point.
func (orchestrator *Orchestrator) RunBatchSync(executionContext context.Context, descriptors []shared.RepositoryDescriptor, options Options) Result {
	startedAt := orchestrator.clock.Now()
	workers := options.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	orchestrator.logger.Info(batchStartedMessageConstant, zap.Int(repositoriesFieldConstant, len(descriptors)), zap.Int(workersFieldConstant, workers))

	outcomeChannel := make(chan machine.SyncOutcome, len(descriptors))
	collected := make([]machine.SyncOutcome, 0, len(descriptors))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for outcome := range outcomeChannel {
			collected = append(collected, outcome)
			orchestrator.logger.Info(repositoryFinishedMessageConstant,
				zap.String(repositoryFieldConstant, outcome.Repository),
				zap.String(statusFieldConstant, string(outcome.Status)),
				zap.Int(completedFieldConstant, len(collected)),
				zap.Int(repositoriesFieldConstant, len(descriptors)),
			)
		}
	}()

	planned, duplicates := orchestrator.plan(descriptors)
	for _, duplicate := range duplicates {
		outcomeChannel <- duplicate
	}

	group := new(errgroup.Group)
	group.SetLimit(workers)
	for _, item := range planned {
		item := item
		if executionContext.Err() != nil {
			outcomeChannel <- orchestrator.skipped(item.descriptor, ErrBatchCancelled)
			continue
		}
		group.Go(func() error {
			outcomeChannel <- orchestrator.runOne(executionContext, item, options.Sync)
			return nil
		})
	}
	_ = group.Wait()
	close(outcomeChannel)
	<-collectorDone

	result := NewResult(collected, startedAt, orchestrator.clock.Now(), executionContext.Err() != nil)
	orchestrator.logger.Info(batchFinishedMessageConstant,
		zap.Int(repositoriesFieldConstant, result.Total),
		zap.Int(succeededFieldConstant, result.Succeeded),
		zap.Int(failedFieldConstant, result.Failed),
		zap.Int(skippedFieldConstant, result.Skipped),
		zap.Bool(cancelledFieldConstant, result.Cancelled),
		zap.Duration(durationFieldConstant, result.Duration),
	)
	return result
}

func (orchestrator *Orchestrator) runOne(executionContext context.Context, item plannedSync, options machine.SyncOptions) (outcome machine.SyncOutcome) {
	startedAt := orchestrator.clock.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = machine.FailedOutcome(item.descriptor.Name, item.descriptor.LocalPath, fmt.Errorf(panicTemplateConstant, ErrWorkerPanicked, recovered), startedAt, orchestrator.clock.Now())
		}
	}()

	if executionContext.Err() != nil {
		return orchestrator.skipped(item.descriptor, ErrBatchCancelled)
	}
	if len(item.key) > 0 {
		if !orchestrator.registry.TryAcquire(item.key) {
			orchestrator.logger.Warn(repositoryInFlightMessageConstant,
				zap.String(repositoryFieldConstant, item.descriptor.Name),
				zap.Strings(inFlightFieldConstant, orchestrator.registry.Active()),
			)
			return orchestrator.skipped(item.descriptor, fmt.Errorf(duplicateTemplateConstant, ErrRepositoryInFlight, item.descriptor.LocalPath))
		}
		defer orchestrator.registry.Release(item.key)
	}
	return orchestrator.runner.RunSync(executionContext, item.descriptor, options)
}

// plan drops descriptors whose name or canonical path repeats an earlier descriptor.
func (orchestrator *Orchestrator) plan(descriptors []shared.RepositoryDescriptor) ([]plannedSync, []machine.SyncOutcome) {
	planned := make([]plannedSync, 0, len(descriptors))
	duplicates := []machine.SyncOutcome{}
	seenNames := make(map[string]struct{}, len(descriptors))
	seenPaths := make(map[string]struct{}, len(descriptors))

	for _, descriptor := range descriptors {
		name := strings.TrimSpace(descriptor.Name)
		key := ""
		if trimmedPath := strings.TrimSpace(descriptor.LocalPath); len(trimmedPath) > 0 {
			key = pathutils.Canonical(trimmedPath)
		}

		_, nameSeen := seenNames[name]
		_, pathSeen := seenPaths[key]
		if (len(name) > 0 && nameSeen) || (len(key) > 0 && pathSeen) {
			duplicates = append(duplicates, orchestrator.skipped(descriptor, fmt.Errorf(duplicateTemplateConstant, ErrDuplicateRepository, descriptor.Name)))
			continue
		}
		if len(name) > 0 {
			seenNames[name] = struct{}{}
		}
		if len(key) > 0 {
			seenPaths[key] = struct{}{}
		}
		planned = append(planned, plannedSync{descriptor: descriptor, key: key})
	}
	return planned, duplicates
}

func (orchestrator *Orchestrator) skipped(descriptor shared.RepositoryDescriptor, reason error) machine.SyncOutcome {
	return machine.SkippedOutcome(descriptor.Name, descriptor.LocalPath, reason, orchestrator.clock.Now())
}
