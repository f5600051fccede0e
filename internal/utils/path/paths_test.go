package pathutils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/forksync/internal/utils/path"
)

func TestHomeExpander(t *testing.T) {
	t.Parallel()

	expander := pathutils.NewHomeExpander(func() (string, error) { return "/home/tester", nil })
	require.Equal(t, "/home/tester", expander.Expand("~"))
	require.Equal(t, filepath.Join("/home/tester", "src", "alpha"), expander.Expand("~/src/alpha"))
	require.Equal(t, "/srv/alpha", expander.Expand("/srv/alpha"))
	require.Equal(t, "~other/alpha", expander.Expand("~other/alpha"))

	failing := pathutils.NewHomeExpander(func() (string, error) { return "", errors.New("no home") })
	require.Equal(t, "~/alpha", failing.Expand("~/alpha"))
}

func TestCanonicalResolvesSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := filepath.Join(root, "alpha")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(root, "alpha-link")
	require.NoError(t, os.Symlink(target, link))

	require.Equal(t, pathutils.Canonical(target), pathutils.Canonical(link))
	require.Equal(t, pathutils.Canonical(target), pathutils.Canonical(target+string(os.PathSeparator)+"."))
	require.NotEqual(t, pathutils.Canonical(target), pathutils.Canonical(filepath.Join(root, "beta")))
}

func TestSanitizer(t *testing.T) {
	t.Parallel()

	expander := pathutils.NewHomeExpander(func() (string, error) { return "/home/tester", nil })

	testCases := []struct {
		name          string
		configuration pathutils.SanitizerConfiguration
		inputs        []string
		expected      []string
	}{
		{
			name:     "trims_expands_and_deduplicates",
			inputs:   []string{"", "  /srv/alpha\t", "~/beta", "/srv/alpha/", "/home/tester/beta"},
			expected: []string{"/srv/alpha", "/home/tester/beta"},
		},
		{
			name:          "prunes_nested_paths",
			configuration: pathutils.SanitizerConfiguration{PruneNestedPaths: true},
			inputs:        []string{"/srv/projects/alpha", "/srv/projects", "/srv/projects-other"},
			expected:      []string{"/srv/projects", "/srv/projects-other"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			sanitizer := pathutils.NewSanitizer(expander, testCase.configuration)
			require.Equal(t, testCase.expected, sanitizer.Sanitize(testCase.inputs))
		})
	}
}
