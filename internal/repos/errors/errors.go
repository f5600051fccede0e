package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable, serializable classification of a sync failure.
type Kind string

// Failure kinds surfaced in sync outcomes.
const (
	KindRepositoryNotFound Kind = "repository_not_found"
	KindUncommittedChanges Kind = "uncommitted_changes"
	KindNetworkRecoverable Kind = "network_recoverable"
	KindNetworkFatal       Kind = "network_fatal"
	KindMergeConflict      Kind = "merge_conflict"
	KindStashRestore       Kind = "stash_restore"
	KindGitOperation       Kind = "git_operation"
	KindInvalidDescriptor  Kind = "invalid_descriptor"
	KindUnexpected         Kind = "unexpected"
	KindNone               Kind = ""
)

const (
	repositoryNotFoundTemplateConstant = "repository not found at %s"
	uncommittedChangesTemplateConstant = "uncommitted changes in %s"
	networkRecoverableTemplateConstant = "transient failure fetching %s: %s"
	networkFatalTemplateConstant       = "fetching %s failed permanently: %s"
	mergeConflictTemplateConstant      = "merging %s produced conflicts in %d file(s): %s"
	stashRestoreTemplateConstant       = "restoring stash %s failed"
	stashRestoreFilesTemplateConstant  = "restoring stash %s failed with conflicts in: %s"
	gitOperationTemplateConstant       = "%s failed in %s"
	invalidDescriptorTemplateConstant  = "repository descriptor %q is invalid"
	causeSuffixTemplateConstant        = "%s: %v"
	fileListSeparatorConstant          = ", "
)

// OperationError is implemented by every failure the sync engine classifies.
type OperationError interface {
	error
	Kind() Kind
	Message() string
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var operationError OperationError
	if errors.As(err, &operationError) {
		return operationError.Kind()
	}
	return KindUnexpected
}

// IsRecoverable reports whether err is a transient network failure worth retrying.
func IsRecoverable(err error) bool {
	var recoverable NetworkRecoverableError
	return errors.As(err, &recoverable)
}

func withCause(message string, cause error) string {
	if cause == nil {
		return message
	}
	return fmt.Sprintf(causeSuffixTemplateConstant, message, cause)
}

// RepositoryNotFoundError indicates the local path is missing or is not a git repository.
type RepositoryNotFoundError struct {
	Path  string
	Cause error
}

func (failure RepositoryNotFoundError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure RepositoryNotFoundError) Message() string {
	return fmt.Sprintf(repositoryNotFoundTemplateConstant, failure.Path)
}

// Kind implements OperationError.
func (RepositoryNotFoundError) Kind() Kind { return KindRepositoryNotFound }

func (failure RepositoryNotFoundError) Unwrap() error { return failure.Cause }

// UncommittedChangesConflictError labels a failure to set aside local changes before syncing.
type UncommittedChangesConflictError struct {
	Path  string
	Cause error
}

func (failure UncommittedChangesConflictError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure UncommittedChangesConflictError) Message() string {
	return fmt.Sprintf(uncommittedChangesTemplateConstant, failure.Path)
}

// Kind implements OperationError.
func (UncommittedChangesConflictError) Kind() Kind { return KindUncommittedChanges }

func (failure UncommittedChangesConflictError) Unwrap() error { return failure.Cause }

// NetworkRecoverableError is a transient fetch failure: timeout, rate limit, dropped connection or 5xx.
type NetworkRecoverableError struct {
	Remote string
	Reason string
	Cause  error
}

func (failure NetworkRecoverableError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure NetworkRecoverableError) Message() string {
	return fmt.Sprintf(networkRecoverableTemplateConstant, failure.Remote, failure.Reason)
}

// Kind implements OperationError.
func (NetworkRecoverableError) Kind() Kind { return KindNetworkRecoverable }

func (failure NetworkRecoverableError) Unwrap() error { return failure.Cause }

// NetworkFatalError is a fetch failure that retrying cannot fix: authentication, missing or malformed remote.
type NetworkFatalError struct {
	Remote string
	Reason string
	Cause  error
}

func (failure NetworkFatalError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure NetworkFatalError) Message() string {
	return fmt.Sprintf(networkFatalTemplateConstant, failure.Remote, failure.Reason)
}

// Kind implements OperationError.
func (NetworkFatalError) Kind() Kind { return KindNetworkFatal }

func (failure NetworkFatalError) Unwrap() error { return failure.Cause }

// MergeConflictError reports a merge that stopped on conflicting paths.
type MergeConflictError struct {
	Reference string
	Strategy  string
	Files     []string
}

func (failure MergeConflictError) Error() string {
	return failure.Message()
}

// Message returns the human-readable summary.
func (failure MergeConflictError) Message() string {
	return fmt.Sprintf(mergeConflictTemplateConstant, failure.Reference, len(failure.Files), strings.Join(failure.Files, fileListSeparatorConstant))
}

// Kind implements OperationError.
func (MergeConflictError) Kind() Kind { return KindMergeConflict }

// StashRestoreError reports a stash that could not be re-applied. The stash is kept.
type StashRestoreError struct {
	Reference string
	Files     []string
	Cause     error
}

func (failure StashRestoreError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure StashRestoreError) Message() string {
	if len(failure.Files) == 0 {
		return fmt.Sprintf(stashRestoreTemplateConstant, failure.Reference)
	}
	return fmt.Sprintf(stashRestoreFilesTemplateConstant, failure.Reference, strings.Join(failure.Files, fileListSeparatorConstant))
}

// Kind implements OperationError.
func (StashRestoreError) Kind() Kind { return KindStashRestore }

func (failure StashRestoreError) Unwrap() error { return failure.Cause }

// GitOperationError reports a local git command that failed outside the cases above.
type GitOperationError struct {
	Operation string
	Path      string
	Cause     error
}

func (failure GitOperationError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure GitOperationError) Message() string {
	return fmt.Sprintf(gitOperationTemplateConstant, failure.Operation, failure.Path)
}

// Kind implements OperationError.
func (GitOperationError) Kind() Kind { return KindGitOperation }

func (failure GitOperationError) Unwrap() error { return failure.Cause }

// InvalidDescriptorError reports a descriptor rejected before any git command ran.
type InvalidDescriptorError struct {
	Name  string
	Cause error
}

func (failure InvalidDescriptorError) Error() string {
	return withCause(failure.Message(), failure.Cause)
}

// Message returns the human-readable summary without the cause.
func (failure InvalidDescriptorError) Message() string {
	return fmt.Sprintf(invalidDescriptorTemplateConstant, failure.Name)
}

// Kind implements OperationError.
func (InvalidDescriptorError) Kind() Kind { return KindInvalidDescriptor }

func (failure InvalidDescriptorError) Unwrap() error { return failure.Cause }
