package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/temirov/forksync/internal/execshell"
)

const (
	// UpstreamRemoteNameConstant identifies the remote tracking the original repository.
	UpstreamRemoteNameConstant = "upstream"
	// OriginRemoteNameConstant identifies the remote tracking the user's fork.
	OriginRemoteNameConstant = "origin"
	// DefaultBranchNameConstant is assumed when neither the descriptor nor the repository names a branch.
	DefaultBranchNameConstant = "main"

	invalidValueTemplateConstant = "%w: %q"
	branchRangeSequenceConstant  = ".."
	branchLockSuffixConstant     = ".lock"
	flagPrefixConstant           = "-"
	nameSegmentSeparatorConstant = "/"
)

var (
	// ErrRepositoryPathRequired indicates an empty local path.
	ErrRepositoryPathRequired = errors.New("repository path required")
	// ErrRepositoryPathInvalid indicates a path containing control characters.
	ErrRepositoryPathInvalid = errors.New("repository path invalid")
	// ErrRepositoryNameRequired indicates an empty repository name.
	ErrRepositoryNameRequired = errors.New("repository name required")
	// ErrRepositoryNameInvalid indicates a name containing path separators or whitespace.
	ErrRepositoryNameInvalid = errors.New("repository name invalid")
	// ErrRemoteNameInvalid indicates a remote name git would reject.
	ErrRemoteNameInvalid = errors.New("remote name invalid")
	// ErrBranchNameInvalid indicates a branch name git would reject.
	ErrBranchNameInvalid = errors.New("branch name invalid")
)

// RepositoryPath is a trimmed, single-line filesystem path.
type RepositoryPath string

// NewRepositoryPath validates a local repository path.
func NewRepositoryPath(raw string) (RepositoryPath, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", ErrRepositoryPathRequired
	}
	if strings.ContainsFunc(trimmed, unicode.IsControl) {
		return "", fmt.Errorf(invalidValueTemplateConstant, ErrRepositoryPathInvalid, raw)
	}
	return RepositoryPath(trimmed), nil
}

// String returns the path.
func (path RepositoryPath) String() string {
	return string(path)
}

// RepositoryName is the display name of a repository in reports.
type RepositoryName string

// NewRepositoryName validates a repository display name. Names of nested
// discovered repositories use forward slashes, as in "group/project".
func NewRepositoryName(raw string) (RepositoryName, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", ErrRepositoryNameRequired
	}
	invalid := strings.ContainsRune(trimmed, '\\') ||
		strings.ContainsFunc(trimmed, unicode.IsSpace) ||
		strings.HasPrefix(trimmed, nameSegmentSeparatorConstant) ||
		strings.HasSuffix(trimmed, nameSegmentSeparatorConstant) ||
		strings.Contains(trimmed, branchRangeSequenceConstant)
	if invalid {
		return "", fmt.Errorf(invalidValueTemplateConstant, ErrRepositoryNameInvalid, raw)
	}
	return RepositoryName(trimmed), nil
}

// String returns the name.
func (name RepositoryName) String() string {
	return string(name)
}

// RemoteName identifies a configured git remote.
type RemoteName string

// NewRemoteName validates a git remote name.
func NewRemoteName(raw string) (RemoteName, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 || strings.ContainsFunc(trimmed, unicode.IsSpace) || strings.HasPrefix(trimmed, flagPrefixConstant) {
		return "", fmt.Errorf(invalidValueTemplateConstant, ErrRemoteNameInvalid, raw)
	}
	return RemoteName(trimmed), nil
}

// String returns the remote name.
func (name RemoteName) String() string {
	return string(name)
}

// BranchName identifies a local or remote-tracking branch.
type BranchName string

// NewBranchName validates a branch name against the most common git ref rules.
func NewBranchName(raw string) (BranchName, error) {
	trimmed := strings.TrimSpace(raw)
	invalid := len(trimmed) == 0 ||
		strings.ContainsFunc(trimmed, unicode.IsSpace) ||
		strings.HasPrefix(trimmed, flagPrefixConstant) ||
		strings.Contains(trimmed, branchRangeSequenceConstant) ||
		strings.HasSuffix(trimmed, branchLockSuffixConstant) ||
		strings.ContainsAny(trimmed, "~^:?*[\\")
	if invalid {
		return "", fmt.Errorf(invalidValueTemplateConstant, ErrBranchNameInvalid, raw)
	}
	return BranchName(trimmed), nil
}

// String returns the branch name.
func (name BranchName) String() string {
	return string(name)
}

// RepositoryDescriptor describes one fork to synchronize. Descriptors are
// supplied by configuration or discovery and are never mutated by the engine.
type RepositoryDescriptor struct {
	Name          string      `json:"name" yaml:"name"`
	LocalPath     string      `json:"local_path" yaml:"local_path"`
	ForkURL       string      `json:"fork_url,omitempty" yaml:"fork_url,omitempty"`
	UpstreamURL   string      `json:"upstream_url,omitempty" yaml:"upstream_url,omitempty"`
	DefaultBranch string      `json:"default_branch" yaml:"default_branch"`
	Policy        *SyncPolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Validate reports the first descriptor field that cannot be used.
func (descriptor RepositoryDescriptor) Validate() error {
	if _, nameError := NewRepositoryName(descriptor.Name); nameError != nil {
		return nameError
	}
	if _, pathError := NewRepositoryPath(descriptor.LocalPath); pathError != nil {
		return pathError
	}
	if len(strings.TrimSpace(descriptor.DefaultBranch)) > 0 {
		if _, branchError := NewBranchName(descriptor.DefaultBranch); branchError != nil {
			return branchError
		}
	}
	if descriptor.Policy != nil {
		return descriptor.Policy.Validate()
	}
	return nil
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// GitExecutor exposes the subset of shell execution used by repository services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryDiscoverer locates fork repositories under filesystem roots.
type RepositoryDiscoverer interface {
	DiscoverDescriptors(executionContext context.Context, roots []string) ([]RepositoryDescriptor, error)
}
