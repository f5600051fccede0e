package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	repoerrors "github.com/temirov/forksync/internal/repos/errors"
)

const (
	remoteReferencePrefixTemplateConstant = "refs/remotes/%s/"
	remoteHeadReferenceSuffixConstant     = "/HEAD"
	notDirectoryMessageConstant           = "path is not a directory"
	remoteNotConfiguredTemplateConstant   = "%w: %s"
)

// ErrRemoteNotConfigured indicates the repository has no remote with the requested name.
var ErrRemoteNotConfigured = errors.New("remote not configured")

// ErrRemoteHeadUnknown indicates the remote's default branch has not been recorded locally.
var ErrRemoteHeadUnknown = errors.New("remote default branch unknown")

// ErrNoCommits indicates the repository has no HEAD commit yet.
var ErrNoCommits = errors.New("repository has no commits")

// RepositoryInspector answers read-only questions about a local repository.
type RepositoryInspector interface {
	Validate(repositoryPath string) error
	CurrentReference(repositoryPath string) (string, error)
	HeadRevision(repositoryPath string) (string, error)
	HasLocalBranch(repositoryPath string, branchName string) (bool, error)
	RemoteURLs(repositoryPath string, remoteName string) ([]string, error)
	RemoteReferences(repositoryPath string, remoteName string) (map[string]string, error)
	RemoteDefaultBranch(repositoryPath string, remoteName string) (string, error)
}

// GoGitInspector reads repository metadata in-process through go-git.
type GoGitInspector struct{}

// NewGoGitInspector constructs a go-git backed inspector.
func NewGoGitInspector() GoGitInspector {
	return GoGitInspector{}
}

// Validate returns a RepositoryNotFoundError when the path is missing or is not a repository root.
func (inspector GoGitInspector) Validate(repositoryPath string) error {
	_, openError := inspector.open(repositoryPath)
	return openError
}

// CurrentReference returns the checked out branch, or the HEAD hash when detached.
func (inspector GoGitInspector) CurrentReference(repositoryPath string) (string, error) {
	head, headError := inspector.head(repositoryPath)
	if headError != nil {
		return "", headError
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}

// HeadRevision returns the commit hash HEAD points at.
func (inspector GoGitInspector) HeadRevision(repositoryPath string) (string, error) {
	head, headError := inspector.head(repositoryPath)
	if headError != nil {
		return "", headError
	}
	return head.Hash().String(), nil
}

// HasLocalBranch reports whether refs/heads/<branchName> exists.
func (inspector GoGitInspector) HasLocalBranch(repositoryPath string, branchName string) (bool, error) {
	repository, openError := inspector.open(repositoryPath)
	if openError != nil {
		return false, openError
	}
	_, referenceError := repository.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if errors.Is(referenceError, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if referenceError != nil {
		return false, referenceError
	}
	return true, nil
}

// RemoteURLs returns the configured URLs for a remote.
func (inspector GoGitInspector) RemoteURLs(repositoryPath string, remoteName string) ([]string, error) {
	repository, openError := inspector.open(repositoryPath)
	if openError != nil {
		return nil, openError
	}
	remote, remoteError := repository.Remote(remoteName)
	if errors.Is(remoteError, git.ErrRemoteNotFound) {
		return nil, fmt.Errorf(remoteNotConfiguredTemplateConstant, ErrRemoteNotConfigured, remoteName)
	}
	if remoteError != nil {
		return nil, remoteError
	}
	return append([]string{}, remote.Config().URLs...), nil
}

// RemoteReferences maps remote-tracking branch names (without the remote prefix) to commit hashes.
func (inspector GoGitInspector) RemoteReferences(repositoryPath string, remoteName string) (map[string]string, error) {
	repository, openError := inspector.open(repositoryPath)
	if openError != nil {
		return nil, openError
	}
	references, referencesError := repository.References()
	if referencesError != nil {
		return nil, referencesError
	}
	defer references.Close()

	prefix := fmt.Sprintf(remoteReferencePrefixTemplateConstant, remoteName)
	snapshot := make(map[string]string)
	iterationError := references.ForEach(func(reference *plumbing.Reference) error {
		if reference.Type() != plumbing.HashReference || !reference.Name().IsRemote() {
			return nil
		}
		name := reference.Name().String()
		if !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, remoteHeadReferenceSuffixConstant) {
			return nil
		}
		snapshot[strings.TrimPrefix(name, prefix)] = reference.Hash().String()
		return nil
	})
	if iterationError != nil {
		return nil, iterationError
	}
	return snapshot, nil
}

// RemoteDefaultBranch resolves refs/remotes/<remote>/HEAD to a branch name.
func (inspector GoGitInspector) RemoteDefaultBranch(repositoryPath string, remoteName string) (string, error) {
	repository, openError := inspector.open(repositoryPath)
	if openError != nil {
		return "", openError
	}
	symbolicHead, referenceError := repository.Reference(plumbing.NewRemoteHEADReferenceName(remoteName), false)
	if errors.Is(referenceError, plumbing.ErrReferenceNotFound) {
		return "", ErrRemoteHeadUnknown
	}
	if referenceError != nil {
		return "", referenceError
	}
	if symbolicHead.Type() != plumbing.SymbolicReference {
		return "", ErrRemoteHeadUnknown
	}
	target := symbolicHead.Target().String()
	prefix := fmt.Sprintf(remoteReferencePrefixTemplateConstant, remoteName)
	if !strings.HasPrefix(target, prefix) {
		return "", ErrRemoteHeadUnknown
	}
	return strings.TrimPrefix(target, prefix), nil
}

func (inspector GoGitInspector) head(repositoryPath string) (*plumbing.Reference, error) {
	repository, openError := inspector.open(repositoryPath)
	if openError != nil {
		return nil, openError
	}
	head, headError := repository.Head()
	if errors.Is(headError, plumbing.ErrReferenceNotFound) {
		return nil, ErrNoCommits
	}
	return head, headError
}

func (inspector GoGitInspector) open(repositoryPath string) (*git.Repository, error) {
	information, statError := os.Stat(repositoryPath)
	if statError != nil {
		return nil, repoerrors.RepositoryNotFoundError{Path: repositoryPath, Cause: statError}
	}
	if !information.IsDir() {
		return nil, repoerrors.RepositoryNotFoundError{Path: repositoryPath, Cause: errors.New(notDirectoryMessageConstant)}
	}
	repository, openError := git.PlainOpenWithOptions(repositoryPath, &git.PlainOpenOptions{DetectDotGit: false, EnableDotGitCommonDir: true})
	if openError != nil {
		return nil, repoerrors.RepositoryNotFoundError{Path: repositoryPath, Cause: openError}
	}
	return repository, nil
}
