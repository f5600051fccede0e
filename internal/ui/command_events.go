package ui

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/forksync/internal/execshell"
)

const (
	repositoryFieldNameConstant = "repository"
	unknownRepositoryConstant   = "."
)

// ConsoleCommandEventLogger renders git lifecycle events for people watching a sync run.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command), eventLogger.repositoryField(command))
}

// CommandCompleted implements execshell.CommandEventObserver. Non-zero exits log at warn level.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command), eventLogger.repositoryField(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result), eventLogger.repositoryField(command))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure), eventLogger.repositoryField(command))
}

func (eventLogger *ConsoleCommandEventLogger) repositoryField(command execshell.ShellCommand) zap.Field {
	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return zap.String(repositoryFieldNameConstant, unknownRepositoryConstant)
	}
	return zap.String(repositoryFieldNameConstant, filepath.Base(workingDirectory))
}
