package gitrepo_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forksync/internal/execshell"
	"github.com/temirov/forksync/internal/gitrepo"
	repoerrors "github.com/temirov/forksync/internal/repos/errors"
)

func TestClassifyFetchFailure(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		standardError string
		cause         error
		expectedKind  repoerrors.Kind
	}{
		{
			name:          "rate_limited",
			standardError: "error: RPC failed; HTTP 429 curl 22 The requested URL returned error: 429",
			expectedKind:  repoerrors.KindNetworkRecoverable,
		},
		{
			name:          "server_error",
			standardError: "fatal: unable to access 'https://github.com/o/r.git/': The requested URL returned error: 503",
			expectedKind:  repoerrors.KindNetworkRecoverable,
		},
		{
			name:          "dns_failure",
			standardError: "fatal: unable to access 'https://github.com/o/r.git/': Could not resolve host: github.com",
			expectedKind:  repoerrors.KindNetworkRecoverable,
		},
		{
			name:          "connection_reset",
			standardError: "fatal: the remote end hung up unexpectedly\nfatal: early EOF",
			expectedKind:  repoerrors.KindNetworkRecoverable,
		},
		{
			name:          "authentication_failed",
			standardError: "remote: Invalid username or password.\nfatal: Authentication failed for 'https://github.com/o/r.git/'",
			expectedKind:  repoerrors.KindNetworkFatal,
		},
		{
			name:          "authentication_before_hangup",
			standardError: "git@github.com: Permission denied (publickey).\nfatal: the remote end hung up unexpectedly",
			expectedKind:  repoerrors.KindNetworkFatal,
		},
		{
			name:          "repository_missing",
			standardError: "remote: Repository not found.\nfatal: repository 'https://github.com/o/missing.git/' not found",
			expectedKind:  repoerrors.KindNetworkFatal,
		},
		{
			name:          "unknown_failure",
			standardError: "fatal: something nobody has seen before",
			expectedKind:  repoerrors.KindNetworkFatal,
		},
		{
			name:         "execution_failure",
			cause:        execshell.CommandExecutionError{Cause: errors.New("exec: \"git\": executable file not found in $PATH")},
			expectedKind: repoerrors.KindNetworkFatal,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cause := testCase.cause
			if cause == nil {
				cause = execshell.CommandFailedError{Result: execshell.ExecutionResult{StandardError: testCase.standardError, ExitCode: 128}}
			}
			classified := gitrepo.ClassifyFetchFailure("upstream", cause)
			require.Equal(t, testCase.expectedKind, repoerrors.KindOf(classified))
			require.Contains(t, classified.Error(), "upstream")
		})
	}
}
