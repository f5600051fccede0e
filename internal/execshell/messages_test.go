package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandMessageFormatterDescribesGitSubcommands(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		stage     messageStage
		result    ExecutionResult
		expected  string
	}{
		{
			name:      "fetch_start",
			arguments: []string{"fetch", "--prune", "upstream"},
			stage:     messageStageStart,
			expected:  "Fetching from upstream in /workspace/repo",
		},
		{
			name:      "fetch_failure",
			arguments: []string{"fetch", "--prune", "upstream"},
			stage:     messageStageFailure,
			result:    ExecutionResult{ExitCode: 128, StandardError: "fatal: unable to access\n"},
			expected:  "Failed to fetch from upstream in /workspace/repo (exit code 128: fatal: unable to access)",
		},
		{
			name:      "merge_with_strategy",
			arguments: []string{"merge", "--no-edit", "-X", "theirs", "upstream/main"},
			stage:     messageStageStart,
			expected:  "Merging upstream/main into /workspace/repo using theirs strategy",
		},
		{
			name:      "merge_without_strategy",
			arguments: []string{"merge", "--no-edit", "upstream/main"},
			stage:     messageStageStart,
			expected:  "Merging upstream/main into /workspace/repo using recursive strategy",
		},
		{
			name:      "merge_abort",
			arguments: []string{"merge", "--abort"},
			stage:     messageStageSuccess,
			expected:  "Aborted merge in /workspace/repo",
		},
		{
			name:      "stash_push",
			arguments: []string{"stash", "push", "--include-untracked", "-m", "auto stash"},
			stage:     messageStageStart,
			expected:  "Stashing local changes in /workspace/repo",
		},
		{
			name:      "stash_apply",
			arguments: []string{"stash", "apply", "3f2a9c1"},
			stage:     messageStageSuccess,
			expected:  "Restored stash 3f2a9c1 in /workspace/repo",
		},
		{
			name:      "remote_set_url",
			arguments: []string{"remote", "set-url", "upstream", "https://example.com/owner/repo.git"},
			stage:     messageStageStart,
			expected:  "Updating upstream remote for /workspace/repo to https://example.com/owner/repo.git",
		},
		{
			name:      "current_branch",
			arguments: []string{"rev-parse", "--abbrev-ref", "HEAD"},
			stage:     messageStageSuccess,
			result:    ExecutionResult{StandardOutput: "main\n"},
			expected:  "Current branch in /workspace/repo is main",
		},
		{
			name:      "unknown_subcommand",
			arguments: []string{"gc"},
			stage:     messageStageStart,
			expected:  "Running git gc (in /workspace/repo)",
		},
	}

	formatter := CommandMessageFormatter{}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			command := ShellCommand{
				Name: CommandGit,
				Details: CommandDetails{
					Arguments:        testCase.arguments,
					WorkingDirectory: "/workspace/repo",
				},
			}
			require.Equal(t, testCase.expected, formatter.buildMessage(command, testCase.result, nil, testCase.stage))
		})
	}
}

func TestBuildExecutionFailureMessageIncludesCause(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name:    CommandGit,
		Details: CommandDetails{Arguments: []string{"stash", "drop", "stash@{0}"}},
	}

	message := formatter.BuildExecutionFailureMessage(command, errors.New("signal: killed"))

	require.Equal(t, "Unable to run git stash in current directory: signal: killed", message)
}
