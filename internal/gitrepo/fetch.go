package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/temirov/forksync/internal/execshell"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
)

const (
	gitFetchSubcommandConstant         = "fetch"
	gitPruneFlagConstant               = "--prune"
	fetchTimeoutReasonTemplateConstant = "fetch timed out after %s"
	fetchInterruptedReasonConstant     = "fetch interrupted"
	fetchUnclassifiedReasonConstant    = "unrecognized fetch failure"
	fetchExecutionReasonConstant       = "git could not be executed"
	fetchSnapshotOperationConstant     = "snapshot remote references"
	authenticationReasonConstant       = "authentication rejected"
	remoteMissingReasonConstant        = "remote repository not found"
	malformedRepositoryReasonConstant  = "remote is not a valid repository"
	rateLimitedReasonConstant          = "rate limited by remote"
	serverErrorReasonConstant          = "remote server error"
	connectionReasonConstant           = "connection failure"
	nameResolutionReasonConstant       = "host name resolution failed"
)

type fetchFailurePattern struct {
	fragment string
	reason   string
}

// Fatal patterns are checked before recoverable ones.
var fatalFetchFailurePatterns = []fetchFailurePattern{
	{fragment: "authentication failed", reason: authenticationReasonConstant},
	{fragment: "could not read username", reason: authenticationReasonConstant},
	{fragment: "could not read password", reason: authenticationReasonConstant},
	{fragment: "invalid username or password", reason: authenticationReasonConstant},
	{fragment: "permission denied", reason: authenticationReasonConstant},
	{fragment: "host key verification failed", reason: authenticationReasonConstant},
	{fragment: "returned error: 401", reason: authenticationReasonConstant},
	{fragment: "returned error: 403", reason: authenticationReasonConstant},
	{fragment: "repository not found", reason: remoteMissingReasonConstant},
	{fragment: "returned error: 404", reason: remoteMissingReasonConstant},
	{fragment: "no such remote", reason: remoteMissingReasonConstant},
	{fragment: "does not appear to be a git repository", reason: malformedRepositoryReasonConstant},
	{fragment: "not a git repository", reason: malformedRepositoryReasonConstant},
	{fragment: "invalid index-pack output", reason: malformedRepositoryReasonConstant},
}

var recoverableFetchFailurePatterns = []fetchFailurePattern{
	{fragment: "returned error: 429", reason: rateLimitedReasonConstant},
	{fragment: "rate limit", reason: rateLimitedReasonConstant},
	{fragment: "too many requests", reason: rateLimitedReasonConstant},
	{fragment: "returned error: 5", reason: serverErrorReasonConstant},
	{fragment: "http 5", reason: serverErrorReasonConstant},
	{fragment: "internal server error", reason: serverErrorReasonConstant},
	{fragment: "bad gateway", reason: serverErrorReasonConstant},
	{fragment: "service unavailable", reason: serverErrorReasonConstant},
	{fragment: "gateway timeout", reason: serverErrorReasonConstant},
	{fragment: "could not resolve host", reason: nameResolutionReasonConstant},
	{fragment: "temporary failure in name resolution", reason: nameResolutionReasonConstant},
	{fragment: "connection reset", reason: connectionReasonConstant},
	{fragment: "connection refused", reason: connectionReasonConstant},
	{fragment: "connection timed out", reason: connectionReasonConstant},
	{fragment: "operation timed out", reason: connectionReasonConstant},
	{fragment: "network is unreachable", reason: connectionReasonConstant},
	{fragment: "early eof", reason: connectionReasonConstant},
	{fragment: "the remote end hung up unexpectedly", reason: connectionReasonConstant},
	{fragment: "rpc failed", reason: connectionReasonConstant},
	{fragment: "unexpected disconnect", reason: connectionReasonConstant},
	{fragment: "tls handshake timeout", reason: connectionReasonConstant},
	{fragment: "gnutls_handshake() failed", reason: connectionReasonConstant},
}

// FetchUpstream fetches a remote under a timeout. Failures are returned as
// NetworkRecoverableError or NetworkFatalError; exceeding the timeout is recoverable.
func (manager *RepositoryManager) FetchUpstream(executionContext context.Context, repositoryPath string, remoteName string, timeout time.Duration) (FetchResult, error) {
	fetchResult := FetchResult{Remote: remoteName}
	before, snapshotError := manager.inspector.RemoteReferences(repositoryPath, remoteName)
	if snapshotError != nil {
		return fetchResult, snapshotError
	}

	fetchContext := executionContext
	cancel := func() {}
	if timeout > 0 {
		fetchContext, cancel = context.WithTimeout(executionContext, timeout)
	}
	defer cancel()

	startTime := manager.clock.Now()
	_, fetchError := manager.executeGit(fetchContext, repositoryPath, gitFetchSubcommandConstant, gitPruneFlagConstant, remoteName)
	fetchResult.Duration = manager.clock.Now().Sub(startTime)

	if fetchError != nil {
		if errors.Is(fetchContext.Err(), context.DeadlineExceeded) && executionContext.Err() == nil {
			return fetchResult, repoerrors.NetworkRecoverableError{
				Remote: remoteName,
				Reason: fmt.Sprintf(fetchTimeoutReasonTemplateConstant, timeout),
				Cause:  context.DeadlineExceeded,
			}
		}
		if executionContext.Err() != nil {
			return fetchResult, repoerrors.NetworkFatalError{Remote: remoteName, Reason: fetchInterruptedReasonConstant, Cause: executionContext.Err()}
		}
		return fetchResult, ClassifyFetchFailure(remoteName, fetchError)
	}

	after, snapshotError := manager.inspector.RemoteReferences(repositoryPath, remoteName)
	if snapshotError != nil {
		return fetchResult, repoerrors.GitOperationError{Operation: fetchSnapshotOperationConstant, Path: repositoryPath, Cause: snapshotError}
	}
	fetchResult.UpdatedBranches = changedReferences(before, after)
	fetchResult.Updated = len(fetchResult.UpdatedBranches) > 0
	return fetchResult, nil
}

// ClassifyFetchFailure maps a failed fetch to a recoverable or fatal network error
// by inspecting git's standard error. Unrecognized failures are fatal.
func ClassifyFetchFailure(remoteName string, fetchError error) error {
	var failedError execshell.CommandFailedError
	if !errors.As(fetchError, &failedError) {
		return repoerrors.NetworkFatalError{Remote: remoteName, Reason: fetchExecutionReasonConstant, Cause: fetchError}
	}

	standardError := strings.ToLower(failedError.Result.StandardError)
	for _, pattern := range fatalFetchFailurePatterns {
		if strings.Contains(standardError, pattern.fragment) {
			return repoerrors.NetworkFatalError{Remote: remoteName, Reason: pattern.reason, Cause: fetchError}
		}
	}
	for _, pattern := range recoverableFetchFailurePatterns {
		if strings.Contains(standardError, pattern.fragment) {
			return repoerrors.NetworkRecoverableError{Remote: remoteName, Reason: pattern.reason, Cause: fetchError}
		}
	}
	return repoerrors.NetworkFatalError{Remote: remoteName, Reason: fetchUnclassifiedReasonConstant, Cause: fetchError}
}

func changedReferences(before map[string]string, after map[string]string) []string {
	changed := []string{}
	for name, hash := range after {
		if before[name] != hash {
			changed = append(changed, name)
		}
	}
	for name := range before {
		if _, stillPresent := after[name]; !stillPresent {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
