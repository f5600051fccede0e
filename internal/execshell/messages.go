package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
)

const (
	gitRevParseSubcommandNameConstant  = "rev-parse"
	gitAbbrevRefFlagConstant           = "--abbrev-ref"
	gitRemoteSubcommandNameConstant    = "remote"
	gitRemoteAddSubcommandNameConstant = "add"
	gitRemoteSetURLSubcommandConstant  = "set-url"
	gitStatusSubcommandNameConstant    = "status"
	gitCheckoutSubcommandNameConstant  = "checkout"
	gitFetchSubcommandNameConstant     = "fetch"
	gitMergeSubcommandNameConstant     = "merge"
	gitMergeAbortFlagConstant          = "--abort"
	gitMergeStrategyOptionFlagConstant = "-X"
	gitStashSubcommandNameConstant     = "stash"
	gitStashPushSubcommandConstant     = "push"
	gitStashApplySubcommandConstant    = "apply"
	gitStashDropSubcommandConstant     = "drop"
	gitStashListSubcommandConstant     = "list"
	gitDiffSubcommandNameConstant      = "diff"
	gitFetchAllRemotesLabelConstant    = "all remotes"
	gitMergeDefaultStrategyConstant    = "recursive"
	gitMessageFlagConstant             = "-m"
)

const (
	gitCurrentBranchStartTemplateConstant         = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant       = "Current branch in %s is %s"
	gitCurrentBranchFailureTemplateConstant       = "Failed to identify current branch in %s (exit code %d%s)"
	gitRevisionStartTemplateConstant              = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant            = "%s in %s resolved to %s"
	gitRevisionFailureTemplateConstant            = "Failed to resolve %s in %s (exit code %d%s)"
	gitRemoteAddStartTemplateConstant             = "Adding %s remote %s to %s"
	gitRemoteAddSuccessTemplateConstant           = "Added %s remote %s to %s"
	gitRemoteAddFailureTemplateConstant           = "Failed to add %s remote %s to %s (exit code %d%s)"
	gitRemoteUpdateStartTemplateConstant          = "Updating %s remote for %s to %s"
	gitRemoteUpdateSuccessTemplateConstant        = "%s remote for %s now points to %s"
	gitRemoteUpdateFailureTemplateConstant        = "Failed to update %s remote for %s to %s (exit code %d%s)"
	gitStatusStartTemplateConstant                = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant              = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant              = "Failed to review working tree status in %s (exit code %d%s)"
	gitCheckoutStartTemplateConstant              = "Switching %s to branch %s"
	gitCheckoutSuccessTemplateConstant            = "%s now on branch %s"
	gitCheckoutFailureTemplateConstant            = "Failed to switch %s to branch %s (exit code %d%s)"
	gitFetchStartTemplateConstant                 = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant               = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant               = "Failed to fetch from %s in %s (exit code %d%s)"
	gitMergeStartTemplateConstant                 = "Merging %s into %s using %s strategy"
	gitMergeSuccessTemplateConstant               = "Merged %s into %s"
	gitMergeFailureTemplateConstant               = "Merge of %s into %s stopped (exit code %d%s)"
	gitMergeAbortStartTemplateConstant            = "Aborting merge in %s"
	gitMergeAbortSuccessTemplateConstant          = "Aborted merge in %s"
	gitMergeAbortFailureTemplateConstant          = "Failed to abort merge in %s (exit code %d%s)"
	gitStashPushStartTemplateConstant             = "Stashing local changes in %s"
	gitStashPushSuccessTemplateConstant           = "Stashed local changes in %s"
	gitStashPushFailureTemplateConstant           = "Failed to stash local changes in %s (exit code %d%s)"
	gitStashApplyStartTemplateConstant            = "Restoring stash %s in %s"
	gitStashApplySuccessTemplateConstant          = "Restored stash %s in %s"
	gitStashApplyFailureTemplateConstant          = "Failed to restore stash %s in %s (exit code %d%s)"
	gitStashDropStartTemplateConstant             = "Dropping stash %s in %s"
	gitStashDropSuccessTemplateConstant           = "Dropped stash %s in %s"
	gitStashDropFailureTemplateConstant           = "Failed to drop stash %s in %s (exit code %d%s)"
	gitStashListStartTemplateConstant             = "Listing stashes in %s"
	gitStashListSuccessTemplateConstant           = "Listed stashes in %s"
	gitStashListFailureTemplateConstant           = "Failed to list stashes in %s (exit code %d%s)"
	gitDiffStartTemplateConstant                  = "Collecting changed paths in %s"
	gitDiffSuccessTemplateConstant                = "Collected changed paths in %s"
	gitDiffFailureTemplateConstant                = "Failed to collect changed paths in %s (exit code %d%s)"
	gitSubcommandExecutionFailureTemplateConstant = "Unable to run git %s in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	if stage == messageStageExecutionFailure {
		return fmt.Sprintf(gitSubcommandExecutionFailureTemplateConstant, subcommand, formatter.describeWorkingDirectory(command), formatter.describeFailure(failure))
	}

	var templates *stageTemplates
	var values []any
	switch subcommand {
	case gitRevParseSubcommandNameConstant:
		templates, values = formatter.describeRevParse(command, result, stage)
	case gitRemoteSubcommandNameConstant:
		templates, values = formatter.describeRemote(command)
	case gitStatusSubcommandNameConstant:
		templates = &stageTemplates{gitStatusStartTemplateConstant, gitStatusSuccessTemplateConstant, gitStatusFailureTemplateConstant}
		values = []any{formatter.describeWorkingDirectory(command)}
	case gitCheckoutSubcommandNameConstant:
		templates = &stageTemplates{gitCheckoutStartTemplateConstant, gitCheckoutSuccessTemplateConstant, gitCheckoutFailureTemplateConstant}
		values = []any{formatter.describeWorkingDirectory(command), formatter.ensureValue(formatter.lastPositionalArgument(command.Details.Arguments[1:]))}
	case gitFetchSubcommandNameConstant:
		remoteName := formatter.lastPositionalArgument(command.Details.Arguments[1:])
		if len(remoteName) == 0 {
			remoteName = gitFetchAllRemotesLabelConstant
		}
		templates = &stageTemplates{gitFetchStartTemplateConstant, gitFetchSuccessTemplateConstant, gitFetchFailureTemplateConstant}
		values = []any{remoteName, formatter.describeWorkingDirectory(command)}
	case gitMergeSubcommandNameConstant:
		templates, values = formatter.describeMerge(command, stage)
	case gitStashSubcommandNameConstant:
		templates, values = formatter.describeStash(command)
	case gitDiffSubcommandNameConstant:
		templates = &stageTemplates{gitDiffStartTemplateConstant, gitDiffSuccessTemplateConstant, gitDiffFailureTemplateConstant}
		values = []any{formatter.describeWorkingDirectory(command)}
	}

	if templates == nil {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	default:
		failureValues := append(append([]any{}, values...), result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(templates.failure, failureValues...)
	}
}

type stageTemplates struct {
	start   string
	success string
	failure string
}

func (formatter CommandMessageFormatter) describeRevParse(command ShellCommand, result ExecutionResult, stage messageStage) (*stageTemplates, []any) {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	if containsArgument(arguments, gitAbbrevRefFlagConstant) {
		if stage == messageStageSuccess {
			return &stageTemplates{success: gitCurrentBranchSuccessTemplateConstant}, []any{workingDirectory, formatter.ensureValue(result.StandardOutput)}
		}
		return &stageTemplates{gitCurrentBranchStartTemplateConstant, emptyStringConstant, gitCurrentBranchFailureTemplateConstant}, []any{workingDirectory}
	}
	reference := formatter.ensureValue(formatter.lastPositionalArgument(arguments[1:]))
	if stage == messageStageSuccess {
		return &stageTemplates{success: gitRevisionSuccessTemplateConstant}, []any{reference, workingDirectory, formatter.ensureValue(result.StandardOutput)}
	}
	return &stageTemplates{gitRevisionStartTemplateConstant, emptyStringConstant, gitRevisionFailureTemplateConstant}, []any{reference, workingDirectory}
}

func (formatter CommandMessageFormatter) describeRemote(command ShellCommand) (*stageTemplates, []any) {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	remoteName := formatter.ensureValue(formatter.argumentAtIndex(arguments, 2))
	remoteURL := formatter.ensureValue(formatter.argumentAtIndex(arguments, 3))
	switch strings.TrimSpace(formatter.argumentAtIndex(arguments, 1)) {
	case gitRemoteAddSubcommandNameConstant:
		return &stageTemplates{gitRemoteAddStartTemplateConstant, gitRemoteAddSuccessTemplateConstant, gitRemoteAddFailureTemplateConstant}, []any{remoteName, remoteURL, workingDirectory}
	case gitRemoteSetURLSubcommandConstant:
		return &stageTemplates{gitRemoteUpdateStartTemplateConstant, gitRemoteUpdateSuccessTemplateConstant, gitRemoteUpdateFailureTemplateConstant}, []any{remoteName, workingDirectory, remoteURL}
	default:
		return nil, nil
	}
}

func (formatter CommandMessageFormatter) describeMerge(command ShellCommand, stage messageStage) (*stageTemplates, []any) {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	if containsArgument(arguments, gitMergeAbortFlagConstant) {
		return &stageTemplates{gitMergeAbortStartTemplateConstant, gitMergeAbortSuccessTemplateConstant, gitMergeAbortFailureTemplateConstant}, []any{workingDirectory}
	}
	reference := formatter.ensureValue(formatter.lastPositionalArgument(arguments[1:]))
	if stage == messageStageStart {
		strategy := findFlagValue(arguments, gitMergeStrategyOptionFlagConstant)
		if len(strategy) == 0 {
			strategy = gitMergeDefaultStrategyConstant
		}
		return &stageTemplates{start: gitMergeStartTemplateConstant}, []any{reference, workingDirectory, strategy}
	}
	return &stageTemplates{emptyStringConstant, gitMergeSuccessTemplateConstant, gitMergeFailureTemplateConstant}, []any{reference, workingDirectory}
}

func (formatter CommandMessageFormatter) describeStash(command ShellCommand) (*stageTemplates, []any) {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	stashReference := fallbackUnknownValueLabelConstant
	if len(arguments) > 2 {
		stashReference = formatter.ensureValue(formatter.lastPositionalArgument(arguments[2:]))
	}
	switch strings.TrimSpace(formatter.argumentAtIndex(arguments, 1)) {
	case gitStashPushSubcommandConstant:
		return &stageTemplates{gitStashPushStartTemplateConstant, gitStashPushSuccessTemplateConstant, gitStashPushFailureTemplateConstant}, []any{workingDirectory}
	case gitStashApplySubcommandConstant:
		return &stageTemplates{gitStashApplyStartTemplateConstant, gitStashApplySuccessTemplateConstant, gitStashApplyFailureTemplateConstant}, []any{stashReference, workingDirectory}
	case gitStashDropSubcommandConstant:
		return &stageTemplates{gitStashDropStartTemplateConstant, gitStashDropSuccessTemplateConstant, gitStashDropFailureTemplateConstant}, []any{stashReference, workingDirectory}
	case gitStashListSubcommandConstant:
		return &stageTemplates{gitStashListStartTemplateConstant, gitStashListSuccessTemplateConstant, gitStashListFailureTemplateConstant}, []any{workingDirectory}
	default:
		return nil, nil
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// lastPositionalArgument skips flags and the values of flags that take one.
func (formatter CommandMessageFormatter) lastPositionalArgument(arguments []string) string {
	positional := emptyStringConstant
	for index := 0; index < len(arguments); index++ {
		argument := strings.TrimSpace(arguments[index])
		if len(argument) == 0 {
			continue
		}
		if argument == gitMergeStrategyOptionFlagConstant || argument == gitMessageFlagConstant {
			index++
			continue
		}
		if strings.HasPrefix(argument, flagPrefixConstant) {
			continue
		}
		positional = argument
	}
	return positional
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
