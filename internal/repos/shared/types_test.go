package shared_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forksync/internal/repos/shared"
)

func TestNewRepositoryPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{name: "valid_path", input: "/tmp/repo", expected: "/tmp/repo"},
		{name: "strips_whitespace", input: "   /tmp/repo  ", expected: "/tmp/repo"},
		{name: "rejects_empty", input: "", expectError: true},
		{name: "rejects_embedded_newline", input: "/tmp/re\npo", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := shared.NewRepositoryPath(testCase.input)
			if testCase.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.expected, result.String())
		})
	}
}

func TestNewRepositoryName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{name: "valid_name", input: "forksync", expect: "forksync"},
		{name: "trims_name", input: " fork-sync ", expect: "fork-sync"},
		{name: "rejects_empty", input: "", expectError: true},
		{name: "accepts_nested", input: "group/repo", expect: "group/repo"},
		{name: "rejects_backslash", input: `group\repo`, expectError: true},
		{name: "rejects_leading_slash", input: "/repo", expectError: true},
		{name: "rejects_parent_segment", input: "group/../repo", expectError: true},
		{name: "rejects_whitespace", input: "my repo", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := shared.NewRepositoryName(testCase.input)
			if testCase.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.expect, result.String())
		})
	}
}

func TestNewRemoteName(t *testing.T) {
	t.Parallel()

	value, err := shared.NewRemoteName("upstream")
	require.NoError(t, err)
	require.Equal(t, "upstream", value.String())

	_, err = shared.NewRemoteName("invalid name")
	require.ErrorIs(t, err, shared.ErrRemoteNameInvalid)
}

func TestNewBranchName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expectError bool
	}{
		{name: "nested_branch", input: "feature/new-ui"},
		{name: "rejects_space", input: "with space", expectError: true},
		{name: "rejects_range", input: "main..dev", expectError: true},
		{name: "rejects_flag", input: "-main", expectError: true},
		{name: "rejects_lock_suffix", input: "main.lock", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := shared.NewBranchName(testCase.input)
			if testCase.expectError {
				require.ErrorIs(t, err, shared.ErrBranchNameInvalid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.input, result.String())
		})
	}
}

func TestRepositoryDescriptorValidate(t *testing.T) {
	t.Parallel()

	negativeRetries := -1
	unknownStrategy := shared.ConflictStrategy("rebase")

	testCases := []struct {
		name        string
		descriptor  shared.RepositoryDescriptor
		expectError error
	}{
		{
			name:       "valid_descriptor",
			descriptor: shared.RepositoryDescriptor{Name: "alpha", LocalPath: "/tmp/alpha", DefaultBranch: "main"},
		},
		{
			name:        "missing_name",
			descriptor:  shared.RepositoryDescriptor{LocalPath: "/tmp/alpha"},
			expectError: shared.ErrRepositoryNameRequired,
		},
		{
			name:        "missing_path",
			descriptor:  shared.RepositoryDescriptor{Name: "alpha"},
			expectError: shared.ErrRepositoryPathRequired,
		},
		{
			name:        "invalid_branch",
			descriptor:  shared.RepositoryDescriptor{Name: "alpha", LocalPath: "/tmp/alpha", DefaultBranch: "bad branch"},
			expectError: shared.ErrBranchNameInvalid,
		},
		{
			name:        "negative_retries",
			descriptor:  shared.RepositoryDescriptor{Name: "alpha", LocalPath: "/tmp/alpha", Policy: &shared.SyncPolicy{MaxRetries: &negativeRetries}},
			expectError: shared.ErrMaxRetriesNegative,
		},
		{
			name:        "unknown_strategy",
			descriptor:  shared.RepositoryDescriptor{Name: "alpha", LocalPath: "/tmp/alpha", Policy: &shared.SyncPolicy{ConflictStrategy: &unknownStrategy}},
			expectError: shared.ErrConflictStrategyUnsupported,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			validationError := testCase.descriptor.Validate()
			if testCase.expectError == nil {
				require.NoError(t, validationError)
				return
			}
			require.ErrorIs(t, validationError, testCase.expectError)
		})
	}
}

func TestParseConflictStrategy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expect      shared.ConflictStrategy
		automatic   bool
		expectError bool
	}{
		{name: "ours", input: "ours", expect: shared.ConflictStrategyOurs, automatic: true},
		{name: "theirs_mixed_case", input: " Theirs ", expect: shared.ConflictStrategyTheirs, automatic: true},
		{name: "manual", input: "manual", expect: shared.ConflictStrategyManual},
		{name: "none", input: "NONE", expect: shared.ConflictStrategyNone},
		{name: "empty", input: "", expectError: true},
		{name: "unknown", input: "rebase", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			strategy, err := shared.ParseConflictStrategy(testCase.input)
			if testCase.expectError {
				require.ErrorIs(t, err, shared.ErrConflictStrategyUnsupported)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.expect, strategy)
			require.Equal(t, testCase.automatic, strategy.ResolvesAutomatically())
		})
	}
}

func TestSyncPolicyRejectsNonPositiveTimeout(t *testing.T) {
	t.Parallel()

	zeroTimeout := time.Duration(0)
	policy := shared.SyncPolicy{FetchTimeout: &zeroTimeout}

	require.ErrorIs(t, policy.Validate(), shared.ErrFetchTimeoutNonPositive)
}

func TestWriterReporterFormatsLines(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	reporter := shared.NewWriterReporter(&buffer)
	reporter.Printf("%s: %d\n", "alpha", 3)

	require.Equal(t, "alpha: 3\n", buffer.String())
}
