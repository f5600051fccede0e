package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/execshell"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
	"github.com/temirov/forksync/internal/repos/shared"
)

const (
	gitStatusSubcommandConstant           = "status"
	gitPorcelainFlagConstant              = "--porcelain"
	gitStashSubcommandConstant            = "stash"
	gitStashPushSubcommandConstant        = "push"
	gitStashApplySubcommandConstant       = "apply"
	gitStashDropSubcommandConstant        = "drop"
	gitStashListSubcommandConstant        = "list"
	gitIncludeUntrackedFlagConstant       = "--include-untracked"
	gitIndexFlagConstant                  = "--index"
	gitMessageFlagConstant                = "-m"
	gitStashListFormatFlagConstant        = "--format=%gd %H"
	gitLatestStashReferenceConstant       = "stash@{0}"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitQuietVerifyFlagsConstant           = "-q"
	gitVerifyFlagConstant                 = "--verify"
	gitMergeHeadReferenceConstant         = "MERGE_HEAD"
	gitMergeSubcommandConstant            = "merge"
	gitNoEditFlagConstant                 = "--no-edit"
	gitStrategyOptionFlagConstant         = "-X"
	gitAbortFlagConstant                  = "--abort"
	gitDiffSubcommandConstant             = "diff"
	gitNameOnlyFlagConstant               = "--name-only"
	gitUnmergedFilterFlagConstant         = "--diff-filter=U"
	gitCheckoutSubcommandConstant         = "checkout"
	gitCreateBranchFlagConstant           = "-b"
	gitRemoteSubcommandConstant           = "remote"
	gitRemoteAddSubcommandConstant        = "add"
	gitRemoteSetURLSubcommandConstant     = "set-url"
	noLocalChangesOutputConstant          = "no local changes to save"
	alreadyUpToDateOutputConstant         = "already up to date"
	hyphenConstant                        = "-"
	spaceConstant                         = " "
	repositoryFieldConstant               = "repository"
	remoteFieldConstant                   = "remote"
	abortMergeWithoutMergeMessageConstant = "no merge in progress; abort skipped"
	remoteDivergedMessageConstant         = "remote points to a different url; leaving it unchanged"
	stashIndexFallbackMessageConstant     = "stash index could not be restored; applying to the working tree only"
	configuredURLFieldConstant            = "configured_url"
	expectedURLFieldConstant              = "expected_url"
	statusOperationNameConstant           = "status"
	stashLookupOperationNameConstant      = "stash lookup"
	stashDropOperationNameConstant        = "stash drop"
	mergeOperationNameConstant            = "merge %s"
	abortMergeOperationNameConstant       = "merge abort"
	checkoutOperationNameConstant         = "checkout %s"
	remoteOperationNameConstant           = "configure remote %s"
	conflictListingOperationNameConstant  = "list conflicted files"
	stashNotFoundTemplateConstant         = "%w: %s"
)

// ErrGitExecutorNotConfigured indicates a nil executor was supplied.
var ErrGitExecutorNotConfigured = errors.New("git executor not configured")

// ErrStashNotFound indicates the recorded stash commit is no longer in the stash list.
var ErrStashNotFound = errors.New("stash entry not found")

// RepositoryManager performs git operations against local repositories.
// Every method is safe to call repeatedly against a repository in a known state.
type RepositoryManager struct {
	executor  shared.GitExecutor
	inspector RepositoryInspector
	clock     shared.Clock
	logger    *zap.Logger
}

// RepositoryManagerOption customizes a RepositoryManager.
type RepositoryManagerOption func(*RepositoryManager)

// WithInspector replaces the go-git inspector.
func WithInspector(inspector RepositoryInspector) RepositoryManagerOption {
	return func(manager *RepositoryManager) {
		if inspector != nil {
			manager.inspector = inspector
		}
	}
}

// WithClock replaces the clock used to timestamp stashes and fetches.
func WithClock(clock shared.Clock) RepositoryManagerOption {
	return func(manager *RepositoryManager) {
		if clock != nil {
			manager.clock = clock
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *zap.Logger) RepositoryManagerOption {
	return func(manager *RepositoryManager) {
		if logger != nil {
			manager.logger = logger
		}
	}
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor shared.GitExecutor, options ...RepositoryManagerOption) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	manager := &RepositoryManager{
		executor:  executor,
		inspector: NewGoGitInspector(),
		clock:     shared.SystemClock{},
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(manager)
	}
	return manager, nil
}

// HasUncommittedChanges reports whether tracked or untracked changes exist.
func (manager *RepositoryManager) HasUncommittedChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	if validationError := manager.inspector.Validate(repositoryPath); validationError != nil {
		return false, validationError
	}
	result, statusError := manager.executeGit(executionContext, repositoryPath, gitStatusSubcommandConstant, gitPorcelainFlagConstant)
	if statusError != nil {
		return false, repoerrors.GitOperationError{Operation: statusOperationNameConstant, Path: repositoryPath, Cause: statusError}
	}
	return len(strings.TrimSpace(result.StandardOutput)) > 0, nil
}

// CreateStash stashes tracked and untracked changes. It returns nil when the tree is clean.
func (manager *RepositoryManager) CreateStash(executionContext context.Context, repositoryPath string, message string) (*StashRecord, error) {
	dirty, statusError := manager.HasUncommittedChanges(executionContext, repositoryPath)
	if statusError != nil {
		return nil, statusError
	}
	if !dirty {
		return nil, nil
	}

	pushResult, pushError := manager.executeGit(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashPushSubcommandConstant, gitIncludeUntrackedFlagConstant, gitMessageFlagConstant, message)
	if pushError != nil {
		return nil, repoerrors.UncommittedChangesConflictError{Path: repositoryPath, Cause: pushError}
	}
	if strings.Contains(strings.ToLower(pushResult.StandardOutput), noLocalChangesOutputConstant) {
		return nil, nil
	}

	revisionResult, revisionError := manager.executeGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitLatestStashReferenceConstant)
	if revisionError != nil {
		return nil, repoerrors.GitOperationError{Operation: stashLookupOperationNameConstant, Path: repositoryPath, Cause: revisionError}
	}

	return &StashRecord{
		Reference: strings.TrimSpace(revisionResult.StandardOutput),
		Message:   message,
		CreatedAt: manager.clock.Now(),
	}, nil
}

// ApplyStash re-applies a stash without dropping it, keeping staged changes
// staged when the index can be restored and falling back to a working tree
// apply when it cannot. Failures carry the conflicted paths.
func (manager *RepositoryManager) ApplyStash(executionContext context.Context, repositoryPath string, record StashRecord) error {
	_, indexApplyError := manager.executeGit(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashApplySubcommandConstant, gitIndexFlagConstant, record.Reference)
	if indexApplyError == nil {
		return nil
	}
	if conflictedFiles, _ := manager.ConflictedFiles(executionContext, repositoryPath); len(conflictedFiles) > 0 {
		return repoerrors.StashRestoreError{Reference: record.Reference, Files: conflictedFiles, Cause: indexApplyError}
	}

	manager.logger.Debug(stashIndexFallbackMessageConstant, zap.String(repositoryFieldConstant, repositoryPath), zap.Error(indexApplyError))
	_, applyError := manager.executeGit(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashApplySubcommandConstant, record.Reference)
	if applyError == nil {
		return nil
	}
	conflictedFiles, _ := manager.ConflictedFiles(executionContext, repositoryPath)
	return repoerrors.StashRestoreError{Reference: record.Reference, Files: conflictedFiles, Cause: applyError}
}

// DropStash removes the stash entry whose commit matches the record.
func (manager *RepositoryManager) DropStash(executionContext context.Context, repositoryPath string, record StashRecord) error {
	listResult, listError := manager.executeGit(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashListSubcommandConstant, gitStashListFormatFlagConstant)
	if listError != nil {
		return repoerrors.GitOperationError{Operation: stashLookupOperationNameConstant, Path: repositoryPath, Cause: listError}
	}

	selector := ""
	for _, line := range strings.Split(listResult.StandardOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == record.Reference {
			selector = fields[0]
			break
		}
	}
	if len(selector) == 0 {
		return repoerrors.GitOperationError{
			Operation: stashDropOperationNameConstant,
			Path:      repositoryPath,
			Cause:     fmt.Errorf(stashNotFoundTemplateConstant, ErrStashNotFound, record.Reference),
		}
	}

	if _, dropError := manager.executeGit(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashDropSubcommandConstant, selector); dropError != nil {
		return repoerrors.GitOperationError{Operation: stashDropOperationNameConstant, Path: repositoryPath, Cause: dropError}
	}
	return nil
}

// MergeBranch merges a reference into the current branch. Conflicts are reported
// through the result with the merge left in progress; callers decide whether to abort.
func (manager *RepositoryManager) MergeBranch(executionContext context.Context, repositoryPath string, reference string, strategy shared.ConflictStrategy) (MergeResult, error) {
	arguments := []string{gitMergeSubcommandConstant, gitNoEditFlagConstant}
	if strategy.ResolvesAutomatically() {
		arguments = append(arguments, gitStrategyOptionFlagConstant, strategy.String())
	}
	arguments = append(arguments, reference)

	mergeResult := MergeResult{Reference: reference, StrategyApplied: strategy}
	executionResult, mergeError := manager.executeGit(executionContext, repositoryPath, arguments...)
	if mergeError == nil {
		commitHash, hashError := manager.inspector.HeadRevision(repositoryPath)
		if hashError != nil {
			mergeResult.Status = MergeStatusFailed
			return mergeResult, repoerrors.GitOperationError{Operation: fmt.Sprintf(mergeOperationNameConstant, reference), Path: repositoryPath, Cause: hashError}
		}
		mergeResult.Status = MergeStatusClean
		mergeResult.CommitHash = commitHash
		mergeResult.AlreadyUpToDate = isAlreadyUpToDate(executionResult.StandardOutput)
		return mergeResult, nil
	}

	conflictedFiles, listError := manager.ConflictedFiles(executionContext, repositoryPath)
	if listError == nil && len(conflictedFiles) > 0 {
		mergeResult.Status = MergeStatusConflict
		mergeResult.ConflictedFiles = conflictedFiles
		return mergeResult, nil
	}

	mergeResult.Status = MergeStatusFailed
	return mergeResult, repoerrors.GitOperationError{Operation: fmt.Sprintf(mergeOperationNameConstant, reference), Path: repositoryPath, Cause: mergeError}
}

// AbortMerge restores the pre-merge HEAD. Without a merge in progress it only logs a warning.
func (manager *RepositoryManager) AbortMerge(executionContext context.Context, repositoryPath string) error {
	inProgress, probeError := manager.MergeInProgress(executionContext, repositoryPath)
	if probeError != nil {
		return probeError
	}
	if !inProgress {
		manager.logger.Warn(abortMergeWithoutMergeMessageConstant, zap.String(repositoryFieldConstant, repositoryPath))
		return nil
	}
	if _, abortError := manager.executeGit(executionContext, repositoryPath, gitMergeSubcommandConstant, gitAbortFlagConstant); abortError != nil {
		return repoerrors.GitOperationError{Operation: abortMergeOperationNameConstant, Path: repositoryPath, Cause: abortError}
	}
	return nil
}

// MergeInProgress reports whether MERGE_HEAD exists.
func (manager *RepositoryManager) MergeInProgress(executionContext context.Context, repositoryPath string) (bool, error) {
	if validationError := manager.inspector.Validate(repositoryPath); validationError != nil {
		return false, validationError
	}
	_, verifyError := manager.executeGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitQuietVerifyFlagsConstant, gitVerifyFlagConstant, gitMergeHeadReferenceConstant)
	if verifyError == nil {
		return true, nil
	}
	var failedError execshell.CommandFailedError
	if errors.As(verifyError, &failedError) {
		return false, nil
	}
	return false, repoerrors.GitOperationError{Operation: abortMergeOperationNameConstant, Path: repositoryPath, Cause: verifyError}
}

// ConflictedFiles lists unmerged paths in the index.
func (manager *RepositoryManager) ConflictedFiles(executionContext context.Context, repositoryPath string) ([]string, error) {
	result, diffError := manager.executeGit(executionContext, repositoryPath, gitDiffSubcommandConstant, gitNameOnlyFlagConstant, gitUnmergedFilterFlagConstant)
	if diffError != nil {
		return nil, repoerrors.GitOperationError{Operation: conflictListingOperationNameConstant, Path: repositoryPath, Cause: diffError}
	}
	return splitLines(result.StandardOutput), nil
}

// CurrentBranch returns the checked out branch, or the HEAD hash when detached.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.inspector.CurrentReference(repositoryPath)
}

// HeadRevision returns the commit HEAD points at.
func (manager *RepositoryManager) HeadRevision(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.inspector.HeadRevision(repositoryPath)
}

// CheckoutBranch switches to a branch, creating it from startPoint when it does not exist locally.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error {
	arguments := []string{gitCheckoutSubcommandConstant, branchName}
	if len(startPoint) > 0 {
		exists, lookupError := manager.inspector.HasLocalBranch(repositoryPath, branchName)
		if lookupError != nil {
			return lookupError
		}
		if !exists {
			arguments = []string{gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, branchName, startPoint}
		}
	}
	if _, checkoutError := manager.executeGit(executionContext, repositoryPath, arguments...); checkoutError != nil {
		return repoerrors.GitOperationError{Operation: fmt.Sprintf(checkoutOperationNameConstant, branchName), Path: repositoryPath, Cause: checkoutError}
	}
	return nil
}

// EnsureRemote adds a missing remote and, when overwrite is set, repoints one whose URL differs.
// An empty URL only checks that nothing needs adding.
func (manager *RepositoryManager) EnsureRemote(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string, overwrite bool) (RemoteChange, error) {
	configuredURLs, lookupError := manager.inspector.RemoteURLs(repositoryPath, remoteName)
	trimmedURL := strings.TrimSpace(remoteURL)
	operationName := fmt.Sprintf(remoteOperationNameConstant, remoteName)

	if errors.Is(lookupError, ErrRemoteNotConfigured) {
		if len(trimmedURL) == 0 {
			return RemoteUnchanged, repoerrors.GitOperationError{Operation: operationName, Path: repositoryPath, Cause: lookupError}
		}
		if _, addError := manager.executeGit(executionContext, repositoryPath, gitRemoteSubcommandConstant, gitRemoteAddSubcommandConstant, remoteName, trimmedURL); addError != nil {
			return RemoteUnchanged, repoerrors.GitOperationError{Operation: operationName, Path: repositoryPath, Cause: addError}
		}
		return RemoteAdded, nil
	}
	if lookupError != nil {
		return RemoteUnchanged, lookupError
	}
	if len(trimmedURL) == 0 || (len(configuredURLs) > 0 && EquivalentRemoteURLs(configuredURLs[0], trimmedURL)) {
		return RemoteUnchanged, nil
	}

	configuredURL := ""
	if len(configuredURLs) > 0 {
		configuredURL = configuredURLs[0]
	}
	if !overwrite {
		manager.logger.Warn(remoteDivergedMessageConstant,
			zap.String(repositoryFieldConstant, repositoryPath),
			zap.String(remoteFieldConstant, remoteName),
			zap.String(configuredURLFieldConstant, configuredURL),
			zap.String(expectedURLFieldConstant, trimmedURL),
		)
		return RemoteDiverged, nil
	}
	if _, updateError := manager.executeGit(executionContext, repositoryPath, gitRemoteSubcommandConstant, gitRemoteSetURLSubcommandConstant, remoteName, trimmedURL); updateError != nil {
		return RemoteUnchanged, repoerrors.GitOperationError{Operation: operationName, Path: repositoryPath, Cause: updateError}
	}
	return RemoteUpdated, nil
}

func (manager *RepositoryManager) executeGit(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
}

func isAlreadyUpToDate(output string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(output), hyphenConstant, spaceConstant)
	return strings.Contains(normalized, alreadyUpToDateOutputConstant)
}

func splitLines(output string) []string {
	lines := []string{}
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 0 {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
