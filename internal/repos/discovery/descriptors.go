package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/gitrepo"
	"github.com/temirov/forksync/internal/repos/shared"
	pathutils "github.com/temirov/forksync/internal/utils/path"
)

const (
	currentDirectoryConstant                 = "."
	parentDirectoryConstant                  = ".."
	repositoryWithoutUpstreamMessageConstant = "skipping repository without upstream remote"
	remoteHeadFallbackMessageConstant        = "upstream default branch unknown, using configured default"
	repositoriesDiscoveredMessageConstant    = "repositories discovered"
	repositoryFieldConstant                  = "repository"
	remoteFieldConstant                      = "remote"
	rootFieldConstant                        = "root"
	countFieldConstant                       = "count"
	defaultBranchFieldConstant               = "default_branch"
	inspectorMissingMessageConstant          = "repository inspector not configured"
)

// ErrInspectorNotConfigured indicates the discoverer was built without an inspector.
var ErrInspectorNotConfigured = errors.New(inspectorMissingMessageConstant)

// DescriptorOptions names the remotes and fallback branch used to describe discovered forks.
type DescriptorOptions struct {
	UpstreamRemoteName string
	ForkRemoteName     string
	DefaultBranch      string
}

// DescriptorDiscoverer turns repositories found under filesystem roots into sync descriptors.
type DescriptorDiscoverer struct {
	walker    *FilesystemRepositoryDiscoverer
	inspector gitrepo.RepositoryInspector
	options   DescriptorOptions
	logger    *zap.Logger
}

// NewDescriptorDiscoverer constructs a DescriptorDiscoverer.
func NewDescriptorDiscoverer(inspector gitrepo.RepositoryInspector, options DescriptorOptions, logger *zap.Logger) (*DescriptorDiscoverer, error) {
	if inspector == nil {
		return nil, ErrInspectorNotConfigured
	}
	if len(strings.TrimSpace(options.UpstreamRemoteName)) == 0 {
		options.UpstreamRemoteName = shared.UpstreamRemoteNameConstant
	}
	if len(strings.TrimSpace(options.ForkRemoteName)) == 0 {
		options.ForkRemoteName = shared.OriginRemoteNameConstant
	}
	if len(strings.TrimSpace(options.DefaultBranch)) == 0 {
		options.DefaultBranch = shared.DefaultBranchNameConstant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DescriptorDiscoverer{
		walker:    NewFilesystemRepositoryDiscoverer(),
		inspector: inspector,
		options:   options,
		logger:    logger,
	}, nil
}

// DiscoverDescriptors describes every repository under roots that has the upstream remote configured.
// Names are paths relative to their root, so two repositories sharing a folder name stay distinct.
func (discoverer *DescriptorDiscoverer) DiscoverDescriptors(executionContext context.Context, roots []string) ([]shared.RepositoryDescriptor, error) {
	seen := make(map[string]struct{})
	descriptors := []shared.RepositoryDescriptor{}

	for _, root := range roots {
		repositories, walkError := discoverer.walker.DiscoverRepositories(executionContext, root)
		if walkError != nil {
			return nil, walkError
		}
		for _, repositoryPath := range repositories {
			key := pathutils.Canonical(repositoryPath)
			if _, alreadySeen := seen[key]; alreadySeen {
				continue
			}
			seen[key] = struct{}{}

			descriptor, described := discoverer.describe(root, repositoryPath)
			if described {
				descriptors = append(descriptors, descriptor)
			}
		}
		discoverer.logger.Debug(repositoriesDiscoveredMessageConstant, zap.String(rootFieldConstant, root), zap.Int(countFieldConstant, len(repositories)))
	}
	return descriptors, nil
}

func (discoverer *DescriptorDiscoverer) describe(root string, repositoryPath string) (shared.RepositoryDescriptor, bool) {
	upstreamURLs, upstreamError := discoverer.inspector.RemoteURLs(repositoryPath, discoverer.options.UpstreamRemoteName)
	if upstreamError != nil || len(upstreamURLs) == 0 {
		discoverer.logger.Debug(repositoryWithoutUpstreamMessageConstant, zap.String(repositoryFieldConstant, repositoryPath), zap.String(remoteFieldConstant, discoverer.options.UpstreamRemoteName))
		return shared.RepositoryDescriptor{}, false
	}

	descriptor := shared.RepositoryDescriptor{
		Name:          descriptorName(root, repositoryPath),
		LocalPath:     repositoryPath,
		UpstreamURL:   upstreamURLs[0],
		DefaultBranch: discoverer.options.DefaultBranch,
	}
	if forkURLs, forkError := discoverer.inspector.RemoteURLs(repositoryPath, discoverer.options.ForkRemoteName); forkError == nil && len(forkURLs) > 0 {
		descriptor.ForkURL = forkURLs[0]
	}

	branch, branchError := discoverer.inspector.RemoteDefaultBranch(repositoryPath, discoverer.options.UpstreamRemoteName)
	if branchError == nil && len(branch) > 0 {
		descriptor.DefaultBranch = branch
	} else {
		discoverer.logger.Debug(remoteHeadFallbackMessageConstant, zap.String(repositoryFieldConstant, repositoryPath), zap.String(defaultBranchFieldConstant, descriptor.DefaultBranch))
	}
	return descriptor, true
}

func descriptorName(root string, repositoryPath string) string {
	relative, relativeError := filepath.Rel(root, repositoryPath)
	if relativeError != nil || relative == currentDirectoryConstant || strings.HasPrefix(relative, parentDirectoryConstant) {
		return filepath.Base(repositoryPath)
	}
	return filepath.ToSlash(relative)
}
