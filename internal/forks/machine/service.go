package machine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/gitrepo"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
	"github.com/temirov/forksync/internal/repos/shared"
	"github.com/temirov/forksync/internal/retry"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	syncCancelledMessageConstant            = "sync cancelled"
	cancelledBeforeTemplateConstant         = "%w before %s: %w"
	cancelledDuringTemplateConstant         = "%w while %s: %w"
	stashCreatedMessageConstant             = "stash created"
	mergeConflictMessageConstant            = "merge produced conflicts"
	currentBranchOperationConstant          = "read current branch"
	fetchOperationTemplateConstant          = "fetch %s"
	transitionMessageConstant               = "sync state transition"
	syncFinishedMessageConstant             = "sync finished"
	syncFailedMessageConstant               = "sync failed"
	stashRestoreFailedMessageConstant       = "stash could not be restored; it was kept"
	stashDropFailedMessageConstant          = "stash restored but could not be dropped"
	returnBranchFailedMessageConstant       = "could not return to the original branch"
	abortMergeFailedMessageConstant         = "could not abort merge"
	repositoryFieldConstant                 = "repository"
	fromStateFieldConstant                  = "from"
	toStateFieldConstant                    = "to"
	stateFieldConstant                      = "state"
	statusFieldConstant                     = "status"
	retriesFieldConstant                    = "retries"
	durationFieldConstant                   = "duration"
	strategyFieldConstant                   = "strategy"
	conflictedFilesFieldConstant            = "conflicted_files"
	stashReferenceFieldConstant             = "stash"
	branchFieldConstant                     = "branch"
)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// ErrSyncCancelled marks a run stopped by cancellation between steps.
var ErrSyncCancelled = errors.New(syncCancelledMessageConstant)

// RepositoryManager is the set of git operations a sync run drives.
type RepositoryManager interface {
	HasUncommittedChanges(executionContext context.Context, repositoryPath string) (bool, error)
	CreateStash(executionContext context.Context, repositoryPath string, message string) (*gitrepo.StashRecord, error)
	ApplyStash(executionContext context.Context, repositoryPath string, record gitrepo.StashRecord) error
	DropStash(executionContext context.Context, repositoryPath string, record gitrepo.StashRecord) error
	FetchUpstream(executionContext context.Context, repositoryPath string, remoteName string, timeout time.Duration) (gitrepo.FetchResult, error)
	MergeBranch(executionContext context.Context, repositoryPath string, reference string, strategy shared.ConflictStrategy) (gitrepo.MergeResult, error)
	AbortMerge(executionContext context.Context, repositoryPath string) error
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error
	EnsureRemote(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string, overwrite bool) (gitrepo.RemoteChange, error)
}

// Dependencies enumerates the collaborators of the sync service.
type Dependencies struct {
	RepositoryManager RepositoryManager
	Logger            *zap.Logger
	Clock             shared.Clock
	Sleeper           retry.Sleeper
}

// Service runs the per-repository sync state machine.
type Service struct {
	repositoryManager RepositoryManager
	logger            *zap.Logger
	clock             shared.Clock
	sleeper           retry.Sleeper
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	service := &Service{
		repositoryManager: dependencies.RepositoryManager,
		logger:            dependencies.Logger,
		clock:             dependencies.Clock,
		sleeper:           dependencies.Sleeper,
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.clock == nil {
		service.clock = shared.SystemClock{}
	}
	if service.sleeper == nil {
		service.sleeper = retry.TimerSleeper{}
	}
	return service, nil
}

type stateHandler func(run *syncRun) State

// syncRun is the state owned by one RunSync call.
type syncRun struct {
	service         *Service
	descriptor      shared.RepositoryDescriptor
	options         resolvedOptions
	cancelContext   context.Context
	gitContext      context.Context
	logger          *zap.Logger
	current         State
	repository      RepositoryState
	pendingTerminal State
	failure         error
	failedState     State
	retryResult     retry.Result
	conflictedFiles []string
	resolvedFiles   []string
	strategyApplied string
	stashRestore    StashRestoreStatus
	stashRestoreErr error
	transitions     []Transition
}

// RunSync drives one repository from IDLE to a terminal state and returns
// exactly one outcome. Git commands run on a context detached from
// cancellation; cancellation is observed before stashing, fetching and merging.
func (service *Service) RunSync(executionContext context.Context, descriptor shared.RepositoryDescriptor, options SyncOptions) SyncOutcome {
	startedAt := service.clock.Now()
	run := &syncRun{
		service:         service,
		descriptor:      descriptor,
		options:         resolveOptions(options, descriptor),
		cancelContext:   executionContext,
		gitContext:      context.WithoutCancel(executionContext),
		logger:          service.logger.With(zap.String(repositoryFieldConstant, descriptor.Name)),
		current:         StateIdle,
		pendingTerminal: StateCompleted,
		stashRestore:    StashRestoreNone,
		repository:      RepositoryState{Merge: MergeStateNone},
	}

	handlers := map[State]stateHandler{
		StateIdle:       (*syncRun).handleIdle,
		StateChecking:   (*syncRun).handleChecking,
		StateStashing:   (*syncRun).handleStashing,
		StateFetching:   (*syncRun).handleFetching,
		StateMerging:    (*syncRun).handleMerging,
		StateConflicted: (*syncRun).handleConflicted,
		StateRestoring:  (*syncRun).handleRestoring,
	}

	for !run.current.IsTerminal() {
		next := handlers[run.current](run)
		if interruptible[next] && run.cancelContext.Err() != nil {
			next = run.abort(run.cancellation(cancelledBeforeTemplateConstant, next))
		}
		run.transition(next)
	}

	return run.outcome(startedAt, service.clock.Now())
}

func (run *syncRun) handleIdle() State {
	if validationError := run.descriptor.Validate(); validationError != nil {
		return run.fail(repoerrors.InvalidDescriptorError{Name: run.descriptor.Name, Cause: validationError})
	}
	return StateChecking
}

func (run *syncRun) handleChecking() State {
	manager := run.service.repositoryManager
	path := run.descriptor.LocalPath

	dirty, statusError := manager.HasUncommittedChanges(run.gitContext, path)
	if statusError != nil {
		return run.fail(statusError)
	}
	run.repository.HasUncommittedChanges = dirty

	branch, branchError := manager.CurrentBranch(run.gitContext, path)
	if branchError != nil {
		return run.fail(repoerrors.GitOperationError{Operation: currentBranchOperationConstant, Path: path, Cause: branchError})
	}
	run.repository.OriginalBranch = branch
	run.repository.CurrentBranch = branch

	if _, upstreamError := manager.EnsureRemote(run.gitContext, path, run.options.UpstreamRemoteName, run.descriptor.UpstreamURL, true); upstreamError != nil {
		return run.fail(upstreamError)
	}
	if len(strings.TrimSpace(run.descriptor.ForkURL)) > 0 {
		if _, forkError := manager.EnsureRemote(run.gitContext, path, run.options.ForkRemoteName, run.descriptor.ForkURL, false); forkError != nil {
			return run.fail(forkError)
		}
	}

	if dirty {
		return StateStashing
	}
	return StateFetching
}

func (run *syncRun) handleStashing() State {
	record, stashError := run.service.repositoryManager.CreateStash(run.gitContext, run.descriptor.LocalPath, run.options.StashMessage)
	if stashError != nil {
		return run.fail(stashError)
	}
	run.repository.Stash = record
	if record != nil {
		run.logger.Debug(stashCreatedMessageConstant, zap.String(stashReferenceFieldConstant, record.Reference))
	}
	return StateFetching
}

func (run *syncRun) handleFetching() State {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = run.options.MaxRetries
	policy.BaseDelay = run.options.RetryBaseDelay
	policy.MaxDelay = run.options.RetryMaxDelay
	policy.Sleeper = run.service.sleeper
	policy.Logger = run.logger

	var fetchResult gitrepo.FetchResult
	retryResult, fetchError := policy.Execute(run.cancelContext, fmt.Sprintf(fetchOperationTemplateConstant, run.options.UpstreamRemoteName), func(context.Context) error {
		result, attemptError := run.service.repositoryManager.FetchUpstream(run.gitContext, run.descriptor.LocalPath, run.options.UpstreamRemoteName, run.options.FetchTimeout)
		fetchResult = result
		return attemptError
	})
	run.retryResult = retryResult
	if fetchError != nil {
		if retryResult.Interrupted && run.cancelContext.Err() != nil {
			return run.abort(run.cancellation(cancelledDuringTemplateConstant, StateFetching))
		}
		return run.fail(fetchError)
	}
	run.repository.LastFetch = &fetchResult
	return StateMerging
}

func (run *syncRun) handleMerging() State {
	manager := run.service.repositoryManager
	path := run.descriptor.LocalPath

	if run.repository.CurrentBranch != run.options.branch {
		if checkoutError := manager.CheckoutBranch(run.gitContext, path, run.options.branch, run.options.upstreamReference()); checkoutError != nil {
			return run.fail(checkoutError)
		}
		run.repository.CurrentBranch = run.options.branch
		run.repository.SwitchedBranch = true
	}

	run.repository.Merge = MergeStateInProgress
	mergeResult, mergeError := manager.MergeBranch(run.gitContext, path, run.options.upstreamReference(), shared.ConflictStrategyNone)
	run.repository.LastMerge = &mergeResult
	if mergeError != nil {
		run.abortMerge()
		return run.fail(mergeError)
	}
	if mergeResult.Status == gitrepo.MergeStatusConflict {
		run.repository.Merge = MergeStateConflicted
		run.conflictedFiles = append([]string{}, mergeResult.ConflictedFiles...)
		return StateConflicted
	}
	run.repository.Merge = MergeStateCompleted
	return StateRestoring
}

func (run *syncRun) handleConflicted() State {
	manager := run.service.repositoryManager
	path := run.descriptor.LocalPath
	strategy := run.options.ConflictStrategy
	reference := run.options.upstreamReference()

	run.logger.Info(mergeConflictMessageConstant,
		zap.Strings(conflictedFilesFieldConstant, run.conflictedFiles),
		zap.String(strategyFieldConstant, strategy.String()),
	)

	if !run.abortMerge() {
		return run.fail(repoerrors.MergeConflictError{Reference: reference, Strategy: strategy.String(), Files: run.conflictedFiles})
	}
	if !strategy.ResolvesAutomatically() {
		return run.fail(repoerrors.MergeConflictError{Reference: reference, Strategy: strategy.String(), Files: run.conflictedFiles})
	}

	run.repository.Merge = MergeStateInProgress
	resolution, resolutionError := manager.MergeBranch(run.gitContext, path, reference, strategy)
	run.repository.LastMerge = &resolution
	if resolutionError != nil {
		run.abortMerge()
		return run.fail(resolutionError)
	}
	if resolution.Status == gitrepo.MergeStatusConflict {
		run.abortMerge()
		return run.fail(repoerrors.MergeConflictError{Reference: reference, Strategy: strategy.String(), Files: resolution.ConflictedFiles})
	}

	run.repository.Merge = MergeStateCompleted
	run.strategyApplied = strategy.String()
	run.resolvedFiles = append([]string{}, run.conflictedFiles...)
	return StateRestoring
}

func (run *syncRun) handleRestoring() State {
	manager := run.service.repositoryManager
	path := run.descriptor.LocalPath

	if run.repository.SwitchedBranch {
		if checkoutError := manager.CheckoutBranch(run.gitContext, path, run.repository.OriginalBranch, ""); checkoutError != nil {
			run.logger.Warn(returnBranchFailedMessageConstant, zap.String(branchFieldConstant, run.repository.OriginalBranch), zap.Error(checkoutError))
		} else {
			run.repository.CurrentBranch = run.repository.OriginalBranch
			run.repository.SwitchedBranch = false
		}
	}

	if record := run.repository.Stash; record != nil {
		if applyError := manager.ApplyStash(run.gitContext, path, *record); applyError != nil {
			run.stashRestore = StashRestoreFailed
			run.stashRestoreErr = applyError
			run.logger.Warn(stashRestoreFailedMessageConstant, zap.String(stashReferenceFieldConstant, record.Reference), zap.Error(applyError))
		} else {
			run.stashRestore = StashRestoreRestored
			if dropError := manager.DropStash(run.gitContext, path, *record); dropError != nil {
				run.logger.Warn(stashDropFailedMessageConstant, zap.String(stashReferenceFieldConstant, record.Reference), zap.Error(dropError))
			}
		}
	}
	return run.pendingTerminal
}

// fail records the first failure and routes through RESTORING when work has to be undone.
func (run *syncRun) fail(failure error) State {
	if run.failure == nil {
		run.failure = failure
		run.failedState = run.current
	}
	run.pendingTerminal = StateFailed
	if run.current != StateRestoring && (run.repository.Stash != nil || run.repository.SwitchedBranch) {
		return StateRestoring
	}
	return StateFailed
}

// abort ends the run as ABORTED, restoring any stash first.
func (run *syncRun) abort(cause error) State {
	if run.failure == nil {
		run.failure = cause
		run.failedState = run.current
	}
	run.pendingTerminal = StateAborted
	if run.repository.Stash != nil || run.repository.SwitchedBranch {
		return StateRestoring
	}
	return StateAborted
}

func (run *syncRun) cancellation(template string, state State) error {
	return fmt.Errorf(template, ErrSyncCancelled, strings.ToLower(state.String()), context.Cause(run.cancelContext))
}

// abortMerge reports whether the working tree is back at the pre-merge HEAD.
func (run *syncRun) abortMerge() bool {
	if abortError := run.service.repositoryManager.AbortMerge(run.gitContext, run.descriptor.LocalPath); abortError != nil {
		run.logger.Error(abortMergeFailedMessageConstant, zap.Error(abortError))
		return false
	}
	run.repository.Merge = MergeStateAborted
	return true
}

func (run *syncRun) transition(next State) {
	run.logger.Debug(transitionMessageConstant,
		zap.String(fromStateFieldConstant, run.current.String()),
		zap.String(toStateFieldConstant, next.String()),
	)
	run.transitions = append(run.transitions, Transition{From: run.current, To: next, At: run.service.clock.Now()})
	run.current = next
}

func (run *syncRun) outcome(startedAt time.Time, finishedAt time.Time) SyncOutcome {
	outcome := SyncOutcome{
		Repository:      run.descriptor.Name,
		LocalPath:       run.descriptor.LocalPath,
		Status:          OutcomeStatusFor(run.current),
		FinalState:      run.current,
		RetryCount:      run.retryResult.Retries,
		Attempts:        run.retryResult.Attempts,
		StashCreated:    run.repository.Stash != nil,
		StashRestore:    run.stashRestore,
		ConflictedFiles: run.conflictedFiles,
		ResolvedFiles:   run.resolvedFiles,
		StrategyApplied: run.strategyApplied,
		Fetch:           run.repository.LastFetch,
		Merge:           run.repository.LastMerge,
		Transitions:     run.transitions,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		Duration:        finishedAt.Sub(startedAt),
	}
	if run.repository.Stash != nil {
		outcome.StashReference = run.repository.Stash.Reference
	}
	if run.stashRestore == StashRestoreFailed {
		outcome.StashRestoreFailed = true
		outcome.StashRestoreError = run.stashRestoreErr.Error()
	}
	if run.failure != nil {
		outcome.Err = run.failure
		outcome.ErrorMessage = run.failure.Error()
		outcome.FailedState = run.failedState
		if outcome.Status == OutcomeFailed {
			outcome.ErrorKind = repoerrors.KindOf(run.failure)
		}
	}

	fields := []zap.Field{
		zap.String(statusFieldConstant, string(outcome.Status)),
		zap.String(stateFieldConstant, outcome.FinalState.String()),
		zap.Int(retriesFieldConstant, outcome.RetryCount),
		zap.Duration(durationFieldConstant, outcome.Duration),
	}
	if outcome.Status == OutcomeFailed {
		run.logger.Warn(syncFailedMessageConstant, append(fields, zap.String(fromStateFieldConstant, outcome.FailedState.String()), zap.Error(run.failure))...)
	} else {
		run.logger.Info(syncFinishedMessageConstant, fields...)
	}
	return outcome
}
