package gitrepo_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"4d63.com/testcli"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/forksync/internal/execshell"
	"github.com/temirov/forksync/internal/gitrepo"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
	"github.com/temirov/forksync/internal/repos/shared"
	"github.com/temirov/forksync/internal/testsupport"
)

const (
	readmeFileNameConstant             = "README.md"
	upstreamReferenceConstant          = "upstream/main"
	upstreamRemoteConstant             = "upstream"
	testFetchTimeoutConstant           = 30 * time.Second
	stashMessageConstant               = "forksync auto-stash"
	stashListCommandConstant           = "git stash list"
	statusCommandConstant              = "git status --porcelain"
	mirrorRemoteNameConstant           = "mirror"
	mirrorRemoteURLConstant            = "https://github.com/example/mirror.git"
	mirrorSSHRemoteURLConstant         = "git@github.com:example/mirror.git"
	otherRemoteURLConstant             = "https://github.com/example/other.git"
	featureBranchNameConstant          = "feature/sync"
	missingRepositoryDirectoryConstant = "missing"
	conflictUpstreamContentConstant    = "upstream\n"
	conflictForkContentConstant        = "fork\n"
)

func newManager(t *testing.T, options ...gitrepo.RepositoryManagerOption) *gitrepo.RepositoryManager {
	t.Helper()
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner())
	require.NoError(t, executorError)
	manager, managerError := gitrepo.NewRepositoryManager(executor, options...)
	require.NoError(t, managerError)
	return manager
}

func newFixture(t *testing.T) testsupport.ForkFixture {
	t.Helper()
	testsupport.ConfigureGit(t)
	return testsupport.NewForkFixture(t, testcli.MkdirTemp(t), "alpha")
}

func TestNewRepositoryManagerRequiresExecutor(t *testing.T) {
	manager, managerError := gitrepo.NewRepositoryManager(nil)
	require.Nil(t, manager)
	require.ErrorIs(t, managerError, gitrepo.ErrGitExecutorNotConfigured)
}

func TestHasUncommittedChanges(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	dirty, statusError := manager.HasUncommittedChanges(executionContext, fixture.ForkPath)
	require.NoError(t, statusError)
	require.False(t, dirty)

	fixture.WriteForkFile(t, "notes.txt", "scratch\n")
	dirty, statusError = manager.HasUncommittedChanges(executionContext, fixture.ForkPath)
	require.NoError(t, statusError)
	require.True(t, dirty)

	_, statusError = manager.HasUncommittedChanges(executionContext, filepath.Join(filepath.Dir(fixture.ForkPath), missingRepositoryDirectoryConstant))
	var notFound repoerrors.RepositoryNotFoundError
	require.ErrorAs(t, statusError, &notFound)
	require.Equal(t, repoerrors.KindRepositoryNotFound, repoerrors.KindOf(statusError))
}

func TestStashLifecycleRestoresWorkingTree(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	cleanRecord, cleanError := manager.CreateStash(executionContext, fixture.ForkPath, stashMessageConstant)
	require.NoError(t, cleanError)
	require.Nil(t, cleanRecord)

	fixture.WriteForkFile(t, readmeFileNameConstant, "edited\n")
	fixture.WriteForkFile(t, "untracked.txt", "new\n")

	record, stashError := manager.CreateStash(executionContext, fixture.ForkPath, stashMessageConstant)
	require.NoError(t, stashError)
	require.NotNil(t, record)
	require.Len(t, record.Reference, 40)
	require.Equal(t, stashMessageConstant, record.Message)
	require.Empty(t, fixture.ForkGit(t, statusCommandConstant))

	require.NoError(t, manager.ApplyStash(executionContext, fixture.ForkPath, *record))
	require.Equal(t, "edited\n", fixture.ReadForkFile(t, readmeFileNameConstant))
	require.Equal(t, "new\n", fixture.ReadForkFile(t, "untracked.txt"))

	require.NoError(t, manager.DropStash(executionContext, fixture.ForkPath, *record))
	require.Empty(t, fixture.ForkGit(t, stashListCommandConstant))

	dropError := manager.DropStash(executionContext, fixture.ForkPath, *record)
	require.ErrorIs(t, dropError, gitrepo.ErrStashNotFound)
}

func TestApplyStashKeepsStagedChangesStaged(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	fixture.WriteForkFile(t, readmeFileNameConstant, "staged\n")
	fixture.ForkGit(t, "git add README.md")
	fixture.WriteForkFile(t, "notes.txt", "unstaged\n")
	before := fixture.ForkGit(t, statusCommandConstant)

	record, stashError := manager.CreateStash(executionContext, fixture.ForkPath, stashMessageConstant)
	require.NoError(t, stashError)
	require.NotNil(t, record)

	require.NoError(t, manager.ApplyStash(executionContext, fixture.ForkPath, *record))
	require.Equal(t, before, fixture.ForkGit(t, statusCommandConstant))
	require.Contains(t, fixture.ForkGit(t, statusCommandConstant), "M  README.md")
}

type fixedClock struct {
	now time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.now
}

func TestCreateStashUsesConfiguredClock(t *testing.T) {
	fixture := newFixture(t)
	stashedAt := time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)
	manager := newManager(t, gitrepo.WithClock(fixedClock{now: stashedAt}))

	fixture.WriteForkFile(t, readmeFileNameConstant, "edited\n")
	record, stashError := manager.CreateStash(context.Background(), fixture.ForkPath, stashMessageConstant)
	require.NoError(t, stashError)
	require.NotNil(t, record)
	require.Equal(t, stashedAt, record.CreatedAt)

	fetchResult, fetchError := manager.FetchUpstream(context.Background(), fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)
	require.Zero(t, fetchResult.Duration)
}

func TestDropStashLeavesUnrelatedEntries(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	fixture.WriteForkFile(t, readmeFileNameConstant, "ours\n")
	record, stashError := manager.CreateStash(executionContext, fixture.ForkPath, stashMessageConstant)
	require.NoError(t, stashError)
	require.NotNil(t, record)

	fixture.WriteForkFile(t, readmeFileNameConstant, "unrelated\n")
	fixture.ForkGit(t, "git stash push -m unrelated")

	require.NoError(t, manager.DropStash(executionContext, fixture.ForkPath, *record))

	remaining := fixture.ForkGit(t, stashListCommandConstant)
	require.Len(t, strings.Split(remaining, "\n"), 1)
	require.Contains(t, remaining, "unrelated")
}

func TestApplyStashReportsConflicts(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	fixture.WriteForkFile(t, readmeFileNameConstant, "stashed\n")
	record, stashError := manager.CreateStash(executionContext, fixture.ForkPath, stashMessageConstant)
	require.NoError(t, stashError)
	require.NotNil(t, record)

	fixture.CommitFork(t, readmeFileNameConstant, "committed\n", "Diverging change")

	applyError := manager.ApplyStash(executionContext, fixture.ForkPath, *record)
	var restoreError repoerrors.StashRestoreError
	require.ErrorAs(t, applyError, &restoreError)
	require.Equal(t, []string{readmeFileNameConstant}, restoreError.Files)
	require.Contains(t, fixture.ForkGit(t, stashListCommandConstant), stashMessageConstant)
}

func TestFetchUpstreamReportsUpdatedBranches(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	firstFetch, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)
	require.True(t, firstFetch.Updated)
	require.Equal(t, []string{"main"}, firstFetch.UpdatedBranches)

	unchangedFetch, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)
	require.False(t, unchangedFetch.Updated)
	require.Empty(t, unchangedFetch.UpdatedBranches)

	fixture.CommitUpstream(t, "CHANGELOG.md", "v2\n", "Upstream change")
	updatedFetch, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)
	require.True(t, updatedFetch.Updated)
	require.Equal(t, upstreamRemoteConstant, updatedFetch.Remote)
}

func TestFetchUpstreamMissingRemoteRepositoryIsFatal(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	fixture.ForkGit(t, "git remote set-url upstream "+filepath.Join(filepath.Dir(fixture.ForkPath), missingRepositoryDirectoryConstant))

	_, fetchError := manager.FetchUpstream(context.Background(), fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.Error(t, fetchError)
	require.Equal(t, repoerrors.KindNetworkFatal, repoerrors.KindOf(fetchError))
	require.False(t, repoerrors.IsRecoverable(fetchError))
}

type stalledFetchRunner struct {
	delegate execshell.CommandRunner
}

func (runner stalledFetchRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	if len(command.Details.Arguments) > 0 && command.Details.Arguments[0] == "fetch" {
		<-executionContext.Done()
		return execshell.ExecutionResult{}, executionContext.Err()
	}
	return runner.delegate.Run(executionContext, command)
}

func newStalledFetchManager(t *testing.T) *gitrepo.RepositoryManager {
	t.Helper()
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), stalledFetchRunner{delegate: execshell.NewOSCommandRunner()})
	require.NoError(t, executorError)
	manager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(t, managerError)
	return manager
}

func TestFetchUpstreamTimeoutIsRecoverable(t *testing.T) {
	fixture := newFixture(t)
	manager := newStalledFetchManager(t)

	_, fetchError := manager.FetchUpstream(context.Background(), fixture.ForkPath, upstreamRemoteConstant, 50*time.Millisecond)

	var recoverable repoerrors.NetworkRecoverableError
	require.ErrorAs(t, fetchError, &recoverable)
	require.ErrorIs(t, fetchError, context.DeadlineExceeded)
	require.True(t, repoerrors.IsRecoverable(fetchError))
	require.Equal(t, upstreamRemoteConstant, recoverable.Remote)
}

func TestFetchUpstreamInterruptedIsFatal(t *testing.T) {
	fixture := newFixture(t)
	manager := newStalledFetchManager(t)
	executionContext, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)

	require.Equal(t, repoerrors.KindNetworkFatal, repoerrors.KindOf(fetchError))
	require.False(t, repoerrors.IsRecoverable(fetchError))
}

func TestMergeBranchOutcomes(t *testing.T) {
	testCases := []struct {
		name            string
		strategy        shared.ConflictStrategy
		expectedStatus  gitrepo.MergeStatus
		expectedContent string
	}{
		{name: "manual_leaves_conflict", strategy: shared.ConflictStrategyManual, expectedStatus: gitrepo.MergeStatusConflict},
		{name: "none_leaves_conflict", strategy: shared.ConflictStrategyNone, expectedStatus: gitrepo.MergeStatusConflict},
		{name: "theirs_takes_upstream", strategy: shared.ConflictStrategyTheirs, expectedStatus: gitrepo.MergeStatusClean, expectedContent: conflictUpstreamContentConstant},
		{name: "ours_keeps_fork", strategy: shared.ConflictStrategyOurs, expectedStatus: gitrepo.MergeStatusClean, expectedContent: conflictForkContentConstant},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newFixture(t)
			manager := newManager(t)
			executionContext := context.Background()

			fixture.CommitUpstream(t, readmeFileNameConstant, conflictUpstreamContentConstant, "Upstream edit")
			forkHead := fixture.CommitFork(t, readmeFileNameConstant, conflictForkContentConstant, "Fork edit")
			_, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
			require.NoError(t, fetchError)

			mergeResult, mergeError := manager.MergeBranch(executionContext, fixture.ForkPath, upstreamReferenceConstant, testCase.strategy)
			require.NoError(t, mergeError)
			require.Equal(t, testCase.expectedStatus, mergeResult.Status)
			require.Equal(t, testCase.strategy, mergeResult.StrategyApplied)

			if testCase.expectedStatus == gitrepo.MergeStatusConflict {
				require.Equal(t, []string{readmeFileNameConstant}, mergeResult.ConflictedFiles)
				require.Empty(t, mergeResult.CommitHash)

				inProgress, probeError := manager.MergeInProgress(executionContext, fixture.ForkPath)
				require.NoError(t, probeError)
				require.True(t, inProgress)

				require.NoError(t, manager.AbortMerge(executionContext, fixture.ForkPath))
				headAfterAbort, headError := manager.HeadRevision(executionContext, fixture.ForkPath)
				require.NoError(t, headError)
				require.Equal(t, forkHead, headAfterAbort)
				require.Equal(t, conflictForkContentConstant, fixture.ReadForkFile(t, readmeFileNameConstant))
				return
			}

			require.Empty(t, mergeResult.ConflictedFiles)
			require.NotEqual(t, forkHead, mergeResult.CommitHash)
			require.Equal(t, testCase.expectedContent, fixture.ReadForkFile(t, readmeFileNameConstant))
		})
	}
}

func TestMergeBranchAlreadyUpToDate(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	_, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)

	mergeResult, mergeError := manager.MergeBranch(executionContext, fixture.ForkPath, upstreamReferenceConstant, shared.ConflictStrategyManual)
	require.NoError(t, mergeError)
	require.Equal(t, gitrepo.MergeStatusClean, mergeResult.Status)
	require.True(t, mergeResult.AlreadyUpToDate)
}

func TestAbortMergeWithoutMergeLogsWarning(t *testing.T) {
	fixture := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	manager := newManager(t, gitrepo.WithLogger(zap.New(core)))

	require.NoError(t, manager.AbortMerge(context.Background(), fixture.ForkPath))
	require.Equal(t, 1, logs.Len())
	require.Equal(t, fixture.ForkPath, logs.All()[0].ContextMap()["repository"])
}

func TestCheckoutBranchCreatesFromStartPoint(t *testing.T) {
	fixture := newFixture(t)
	manager := newManager(t)
	executionContext := context.Background()

	_, fetchError := manager.FetchUpstream(executionContext, fixture.ForkPath, upstreamRemoteConstant, testFetchTimeoutConstant)
	require.NoError(t, fetchError)

	require.NoError(t, manager.CheckoutBranch(executionContext, fixture.ForkPath, featureBranchNameConstant, upstreamReferenceConstant))
	currentBranch, branchError := manager.CurrentBranch(executionContext, fixture.ForkPath)
	require.NoError(t, branchError)
	require.Equal(t, featureBranchNameConstant, currentBranch)

	require.NoError(t, manager.CheckoutBranch(executionContext, fixture.ForkPath, "main", upstreamReferenceConstant))
	require.NoError(t, manager.CheckoutBranch(executionContext, fixture.ForkPath, featureBranchNameConstant, upstreamReferenceConstant))
	currentBranch, branchError = manager.CurrentBranch(executionContext, fixture.ForkPath)
	require.NoError(t, branchError)
	require.Equal(t, featureBranchNameConstant, currentBranch)
}

func TestEnsureRemoteReconcilesURLs(t *testing.T) {
	fixture := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	manager := newManager(t, gitrepo.WithLogger(zap.New(core)))
	executionContext := context.Background()

	change, ensureError := manager.EnsureRemote(executionContext, fixture.ForkPath, mirrorRemoteNameConstant, mirrorRemoteURLConstant, false)
	require.NoError(t, ensureError)
	require.Equal(t, gitrepo.RemoteAdded, change)

	change, ensureError = manager.EnsureRemote(executionContext, fixture.ForkPath, mirrorRemoteNameConstant, mirrorSSHRemoteURLConstant, false)
	require.NoError(t, ensureError)
	require.Equal(t, gitrepo.RemoteUnchanged, change)

	change, ensureError = manager.EnsureRemote(executionContext, fixture.ForkPath, mirrorRemoteNameConstant, otherRemoteURLConstant, false)
	require.NoError(t, ensureError)
	require.Equal(t, gitrepo.RemoteDiverged, change)
	require.Equal(t, 1, logs.Len())

	change, ensureError = manager.EnsureRemote(executionContext, fixture.ForkPath, mirrorRemoteNameConstant, otherRemoteURLConstant, true)
	require.NoError(t, ensureError)
	require.Equal(t, gitrepo.RemoteUpdated, change)
	require.Equal(t, otherRemoteURLConstant, fixture.ForkGit(t, "git remote get-url mirror"))

	_, ensureError = manager.EnsureRemote(executionContext, fixture.ForkPath, "absent", "", false)
	require.ErrorIs(t, ensureError, gitrepo.ErrRemoteNotConfigured)
}

func TestInspectorRemoteDefaultBranch(t *testing.T) {
	fixture := newFixture(t)
	inspector := gitrepo.NewGoGitInspector()

	branch, branchError := inspector.RemoteDefaultBranch(fixture.ForkPath, shared.OriginRemoteNameConstant)
	require.NoError(t, branchError)
	require.Equal(t, "main", branch)

	_, branchError = inspector.RemoteDefaultBranch(fixture.ForkPath, upstreamRemoteConstant)
	require.ErrorIs(t, branchError, gitrepo.ErrRemoteHeadUnknown)
}
