package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"4d63.com/testcli"
	"github.com/stretchr/testify/require"
)

const (
	homeEnvironmentKeyConstant         = "HOME"
	systemConfigEnvironmentKeyConstant = "GIT_CONFIG_NOSYSTEM"
	systemConfigDisabledValueConstant  = "1"
	upstreamDirectorySuffixConstant    = "-upstream"
	initialFileNameConstant            = "README.md"
	initialFileContentConstant         = "base\n"
	gitInitCommandConstant             = "git init"
	gitAddAllCommandConstant           = "git add ."
	gitCommitCommandTemplateConstant   = "git commit -m '%s'"
	gitCloneCommandTemplateConstant    = "git clone %s %s"
	gitAddUpstreamTemplateConstant     = "git remote add upstream %s"
	initialCommitMessageConstant       = "Initial commit"
	commandFailedTemplateConstant      = "%s exited with %d: %s"
)

var globalGitConfigurationCommands = []string{
	"git config --global user.email 'tests@example.com'",
	"git config --global user.name 'Tests'",
	"git config --global init.defaultBranch main",
	"git config --global commit.gpgsign false",
	"git config --global advice.detachedHead false",
}

// ConfigureGit isolates git configuration under a temporary HOME for the duration of the test.
func ConfigureGit(t *testing.T) {
	t.Helper()
	home := testcli.MkdirTemp(t)
	t.Setenv(homeEnvironmentKeyConstant, home)
	t.Setenv(systemConfigEnvironmentKeyConstant, systemConfigDisabledValueConstant)
	testcli.Chdir(t, home)
	for _, command := range globalGitConfigurationCommands {
		Git(t, command)
	}
}

// Git runs a git command line in the current directory and returns trimmed standard output.
func Git(t *testing.T, command string) string {
	t.Helper()
	exitCode, standardOutput, standardError := testcli.Exec(t, command)
	require.Zerof(t, exitCode, commandFailedTemplateConstant, command, exitCode, standardError)
	return strings.TrimSpace(standardOutput)
}

// ForkFixture is a cloned fork with an upstream remote pointing at a sibling repository.
// The fork's origin is the upstream repository itself, which is enough for sync tests.
type ForkFixture struct {
	Name         string
	UpstreamPath string
	ForkPath     string
}

// NewForkFixture creates <root>/<name>-upstream with one commit and clones it to <root>/<name>.
func NewForkFixture(t *testing.T, root string, name string) ForkFixture {
	t.Helper()
	fixture := ForkFixture{
		Name:         name,
		UpstreamPath: filepath.Join(root, name+upstreamDirectorySuffixConstant),
		ForkPath:     filepath.Join(root, name),
	}

	require.NoError(t, os.MkdirAll(fixture.UpstreamPath, 0o755))
	testcli.Chdir(t, fixture.UpstreamPath)
	Git(t, gitInitCommandConstant)
	testcli.WriteFile(t, initialFileNameConstant, []byte(initialFileContentConstant))
	Git(t, gitAddAllCommandConstant)
	Git(t, fmt.Sprintf(gitCommitCommandTemplateConstant, initialCommitMessageConstant))

	testcli.Chdir(t, root)
	Git(t, fmt.Sprintf(gitCloneCommandTemplateConstant, fixture.UpstreamPath, fixture.ForkPath))
	testcli.Chdir(t, fixture.ForkPath)
	Git(t, fmt.Sprintf(gitAddUpstreamTemplateConstant, fixture.UpstreamPath))
	return fixture
}

// CommitUpstream writes a file in the upstream repository and commits it.
func (fixture ForkFixture) CommitUpstream(t *testing.T, fileName string, content string, message string) string {
	t.Helper()
	return commitFile(t, fixture.UpstreamPath, fileName, content, message)
}

// CommitFork writes a file in the fork and commits it.
func (fixture ForkFixture) CommitFork(t *testing.T, fileName string, content string, message string) string {
	t.Helper()
	return commitFile(t, fixture.ForkPath, fileName, content, message)
}

// WriteForkFile leaves an uncommitted change in the fork's working tree.
func (fixture ForkFixture) WriteForkFile(t *testing.T, fileName string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(fixture.ForkPath, fileName), []byte(content), 0o644))
}

// ReadForkFile returns the content of a file in the fork's working tree.
func (fixture ForkFixture) ReadForkFile(t *testing.T, fileName string) string {
	t.Helper()
	content, readError := os.ReadFile(filepath.Join(fixture.ForkPath, fileName))
	require.NoError(t, readError)
	return string(content)
}

// ForkGit runs a git command line inside the fork.
func (fixture ForkFixture) ForkGit(t *testing.T, command string) string {
	t.Helper()
	testcli.Chdir(t, fixture.ForkPath)
	return Git(t, command)
}

func commitFile(t *testing.T, repositoryPath string, fileName string, content string, message string) string {
	t.Helper()
	testcli.Chdir(t, repositoryPath)
	require.NoError(t, os.WriteFile(filepath.Join(repositoryPath, fileName), []byte(content), 0o644))
	Git(t, gitAddAllCommandConstant)
	Git(t, fmt.Sprintf(gitCommitCommandTemplateConstant, message))
	return Git(t, "git rev-parse HEAD")
}
