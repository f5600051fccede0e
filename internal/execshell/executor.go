package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandName identifies an executable invoked through the shell executor.
type CommandName string

const (
	// CommandGit invokes the git executable.
	CommandGit CommandName = "git"
)

const (
	commandNameFieldConstant              = "command"
	commandArgumentsFieldConstant         = "arguments"
	commandWorkingDirectoryFieldConstant  = "working_directory"
	commandExitCodeFieldConstant          = "exit_code"
	commandDurationFieldConstant          = "duration"
	commandStandardErrorFieldConstant     = "stderr"
	commandFailedErrorTemplateConstant    = "%s exited with code %d: %s"
	commandExecutionErrorTemplateConstant = "%s could not be executed: %v"
	gitTerminalPromptVariableConstant     = "GIT_TERMINAL_PROMPT"
	gitMergeAutoEditVariableConstant      = "GIT_MERGE_AUTOEDIT"
	disabledEnvironmentValueConstant      = "0"
	disabledMergeAutoEditValueConstant    = "no"
	localeAllVariableConstant             = "LC_ALL"
	localeLanguageVariableConstant        = "LANGUAGE"
	untranslatedLocaleValueConstant       = "C"
)

// ErrLoggerNotConfigured indicates that a logger was not provided to the executor.
var ErrLoggerNotConfigured = errors.New("shell executor logger not configured")

// ErrCommandRunnerNotConfigured indicates that a command runner was not provided to the executor.
var ErrCommandRunnerNotConfigured = errors.New("shell executor command runner not configured")

// CommandDetails describes the arguments and environment of a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable output of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that ran but returned a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failing command.
func (failure CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failure.Command), failure.Result.ExitCode, strings.TrimSpace(failure.Result.StandardError))
}

// CommandExecutionError reports a command that could not be started or was interrupted.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(failure.Command), failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutor runs external commands with structured lifecycle logging.
type ShellExecutor struct {
	logger           *zap.Logger
	runner           CommandRunner
	observer         CommandEventObserver
	messageFormatter CommandMessageFormatter
}

// ShellExecutorOption customizes a ShellExecutor.
type ShellExecutorOption func(*ShellExecutor)

// WithCommandEventObserver registers an observer notified about every command.
func WithCommandEventObserver(observer CommandEventObserver) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		if observer != nil {
			executor.observer = observer
		}
	}
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, options ...ShellExecutorOption) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	executor := &ShellExecutor{
		logger:           logger,
		runner:           runner,
		observer:         noopCommandEventObserver{},
		messageFormatter: CommandMessageFormatter{},
	}
	for _, option := range options {
		option(executor)
	}
	return executor, nil
}

// ExecuteGit runs git with prompts disabled so credential requests fail fast.
// Messages are always untranslated; callers match on git's English output.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	environment := make(map[string]string, len(details.EnvironmentVariables)+4)
	environment[gitTerminalPromptVariableConstant] = disabledEnvironmentValueConstant
	environment[gitMergeAutoEditVariableConstant] = disabledMergeAutoEditValueConstant
	for key, value := range details.EnvironmentVariables {
		environment[key] = value
	}
	environment[localeAllVariableConstant] = untranslatedLocaleValueConstant
	environment[localeLanguageVariableConstant] = untranslatedLocaleValueConstant
	details.EnvironmentVariables = environment
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandFields := []zap.Field{
		zap.String(commandNameFieldConstant, string(command.Name)),
		zap.Strings(commandArgumentsFieldConstant, command.Details.Arguments),
		zap.String(commandWorkingDirectoryFieldConstant, command.Details.WorkingDirectory),
	}

	executor.logger.Debug(executor.messageFormatter.BuildStartedMessage(command), commandFields...)
	executor.observer.CommandStarted(command)

	startTime := time.Now()
	result, runError := executor.runner.Run(executionContext, command)
	elapsed := time.Since(startTime)

	if runError != nil {
		executor.logger.Warn(
			executor.messageFormatter.BuildExecutionFailureMessage(command, runError),
			append(commandFields, zap.Duration(commandDurationFieldConstant, elapsed), zap.Error(runError))...,
		)
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, result)

	if result.ExitCode != 0 {
		executor.logger.Debug(
			executor.messageFormatter.BuildFailureMessage(command, result),
			append(commandFields,
				zap.Int(commandExitCodeFieldConstant, result.ExitCode),
				zap.Duration(commandDurationFieldConstant, elapsed),
				zap.String(commandStandardErrorFieldConstant, strings.TrimSpace(result.StandardError)),
			)...,
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: result}
	}

	executor.logger.Debug(
		executor.messageFormatter.BuildSuccessMessage(command),
		append(commandFields, zap.Duration(commandDurationFieldConstant, elapsed))...,
	)
	return result, nil
}

func describeCommand(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
}
