package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "DefaultFirstChoice",
			defaultChoice:  "text",
			choices:        []string{"text", "json"},
			description:    "Report format.",
			expectedOutput: "`<TEXT|json>` Report format.",
		},
		{
			name:           "DefaultLaterChoice",
			defaultChoice:  "manual",
			choices:        []string{"ours", "theirs", "manual", "none"},
			description:    "Conflict strategy.",
			expectedOutput: "`<ours|theirs|MANUAL|none>` Conflict strategy.",
		},
		{
			name:           "EmptyDescription",
			defaultChoice:  "yaml",
			choices:        []string{"json", "yaml"},
			expectedOutput: "`<json|YAML>`",
		},
		{
			name:           "DuplicateChoicesIgnored",
			defaultChoice:  "ours",
			choices:        []string{"ours", "OURS", " theirs "},
			description:    "Pick a side.",
			expectedOutput: "`<OURS|theirs>` Pick a side.",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, testCase.expectedOutput, FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description))
		})
	}
}

func TestChoiceFlagAcceptsKnownValues(t *testing.T) {
	t.Parallel()
	flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	value := AddChoiceFlag(flagSet, "strategy", "manual", []string{"ours", "theirs", "manual"}, "Conflict strategy.")

	require.Equal(t, "manual", value.String())
	require.NoError(t, flagSet.Parse([]string{"--strategy", "Theirs"}))
	require.Equal(t, "theirs", value.String())
	require.Equal(t, "choice", flagSet.Lookup("strategy").Value.Type())
}

func TestChoiceFlagRejectsUnknownValues(t *testing.T) {
	t.Parallel()
	value := NewChoiceValue("text", []string{"text", "json"})

	setError := value.Set("xml")
	require.ErrorIs(t, setError, ErrInvalidChoice)
	require.Contains(t, setError.Error(), "text, json")
	require.Equal(t, "text", value.String())
}
