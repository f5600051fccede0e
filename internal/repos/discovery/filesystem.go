package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	pathutils "github.com/temirov/forksync/internal/utils/path"
)

const gitMetadataDirectoryNameConstant = ".git"

// FilesystemRepositoryDiscoverer locates git repositories on disk.
type FilesystemRepositoryDiscoverer struct{}

// NewFilesystemRepositoryDiscoverer constructs a repository discoverer backed by filepath.WalkDir.
func NewFilesystemRepositoryDiscoverer() *FilesystemRepositoryDiscoverer {
	return &FilesystemRepositoryDiscoverer{}
}

// DiscoverRepositories walks root and returns sorted directories containing a .git entry.
// Unreadable directories are skipped; the walk stops when the context is cancelled.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(executionContext context.Context, root string) ([]string, error) {
	seen := make(map[string]struct{})
	var repositories []string

	walkError := filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if walkError != nil {
			return nil
		}
		if directoryEntry.Name() != gitMetadataDirectoryNameConstant {
			return nil
		}

		repositoryPath := filepath.Dir(path)
		key := pathutils.Canonical(repositoryPath)
		if _, alreadySeen := seen[key]; !alreadySeen {
			seen[key] = struct{}{}
			repositories = append(repositories, repositoryPath)
		}
		if directoryEntry.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	sort.Strings(repositories)
	return repositories, nil
}
