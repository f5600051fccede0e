package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/execshell"
	"github.com/temirov/forksync/internal/forks/machine"
	"github.com/temirov/forksync/internal/gitrepo"
	"github.com/temirov/forksync/internal/repos/discovery"
	"github.com/temirov/forksync/internal/repos/shared"
	"github.com/temirov/forksync/internal/ui"
)

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
// Human readable logging attaches a console observer that narrates each git command.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, humanReadableLogging bool) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	executorOptions := []execshell.ShellExecutorOption{}
	if humanReadableLogging {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), executorOptions...)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveRepositoryManager returns the provided repository manager or constructs one from the executor.
// A nil clock keeps the system clock.
func ResolveRepositoryManager(existing machine.RepositoryManager, executor shared.GitExecutor, clock shared.Clock, logger *zap.Logger) (machine.RepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, gitrepo.WithLogger(logger), gitrepo.WithClock(clock))
	if managerError != nil {
		return nil, managerError
	}
	return repositoryManager, nil
}

// ResolveRepositoryDiscoverer returns the provided discoverer or a go-git backed default.
func ResolveRepositoryDiscoverer(existing shared.RepositoryDiscoverer, options discovery.DescriptorOptions, logger *zap.Logger) (shared.RepositoryDiscoverer, error) {
	if existing != nil {
		return existing, nil
	}
	discoverer, discovererError := discovery.NewDescriptorDiscoverer(gitrepo.NewGoGitInspector(), options, logger)
	if discovererError != nil {
		return nil, discovererError
	}
	return discoverer, nil
}
