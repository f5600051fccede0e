package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forksync/internal/utils"
)

const (
	testEnvironmentPrefixConstant          = "TESTFORKSYNC"
	testConfigurationNameConstant          = "config"
	testConfigurationTypeConstant          = "yaml"
	testConfigFileNameConstant             = "config.yaml"
	testLogLevelKeyConstant                = "common.log_level"
	testFetchTimeoutKeyConstant            = "sync.fetch_timeout"
	testConfigContentTemplateConstant      = "common:\n  log_level: %s\nsync:\n  fetch_timeout: %s\n"
	testUserConfigurationDirectoryConstant = "forksync"
	testLogLevelEnvironmentConstant        = "TESTFORKSYNC_COMMON_LOG_LEVEL"
	testRootsEnvironmentConstant           = "TESTFORKSYNC_SYNC_ROOTS"
)

type configurationFixture struct {
	Common struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"common"`
	Sync struct {
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
		Roots        []string      `mapstructure:"roots"`
	} `mapstructure:"sync"`
}

func TestConfigurationLoaderLoadConfiguration(t *testing.T) {
	testCases := []struct {
		name                 string
		embeddedLogLevel     string
		fileLogLevel         string
		fileFetchTimeout     string
		environmentLogLevel  string
		expectedLogLevel     string
		expectedFetchTimeout time.Duration
	}{
		{
			name:                 "embedded_configuration_merges",
			embeddedLogLevel:     "debug",
			expectedLogLevel:     "debug",
			expectedFetchTimeout: 30 * time.Second,
		},
		{
			name:                 "config_file_overrides_embedded",
			embeddedLogLevel:     "info",
			fileLogLevel:         "warn",
			fileFetchTimeout:     "2m",
			expectedLogLevel:     "warn",
			expectedFetchTimeout: 2 * time.Minute,
		},
		{
			name:                 "environment_overrides_file",
			embeddedLogLevel:     "info",
			fileLogLevel:         "warn",
			fileFetchTimeout:     "45s",
			environmentLogLevel:  "error",
			expectedLogLevel:     "error",
			expectedFetchTimeout: 45 * time.Second,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configurationFilePath := ""
			if len(testCase.fileLogLevel) > 0 {
				configurationFilePath = filepath.Join(t.TempDir(), testConfigFileNameConstant)
				content := fmt.Sprintf(testConfigContentTemplateConstant, testCase.fileLogLevel, testCase.fileFetchTimeout)
				require.NoError(t, os.WriteFile(configurationFilePath, []byte(content), 0o600))
			}
			if len(testCase.environmentLogLevel) > 0 {
				t.Setenv(testLogLevelEnvironmentConstant, testCase.environmentLogLevel)
			}

			loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{t.TempDir()})
			loader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testConfigContentTemplateConstant, testCase.embeddedLogLevel, "30s")), testConfigurationTypeConstant)

			loaded := configurationFixture{}
			metadata, loadError := loader.LoadConfiguration(configurationFilePath, map[string]any{testLogLevelKeyConstant: "info", testFetchTimeoutKeyConstant: "60s"}, &loaded)
			require.NoError(t, loadError)
			require.Equal(t, testCase.expectedLogLevel, loaded.Common.LogLevel)
			require.Equal(t, testCase.expectedFetchTimeout, loaded.Sync.FetchTimeout)
			require.Equal(t, configurationFilePath, metadata.ConfigFileUsed)
			require.Equal(t, testEnvironmentPrefixConstant, metadata.EnvironmentPrefix)
		})
	}
}

func TestConfigurationLoaderSplitsEnvironmentLists(t *testing.T) {
	t.Setenv(testRootsEnvironmentConstant, "/srv/forks,/home/me/src")
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{t.TempDir()})

	loaded := configurationFixture{}
	_, loadError := loader.LoadConfiguration("", map[string]any{"sync.roots": []string{}}, &loaded)
	require.NoError(t, loadError)
	require.Equal(t, []string{"/srv/forks", "/home/me/src"}, loaded.Sync.Roots)
}

func TestConfigurationLoaderRejectsMissingExplicitFile(t *testing.T) {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	_, loadError := loader.LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml"), nil, &configurationFixture{})
	require.Error(t, loadError)
}

func TestConfigurationLoaderRequiresTarget(t *testing.T) {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	_, loadError := loader.LoadConfiguration("", nil, nil)
	require.ErrorIs(t, loadError, utils.ErrConfigurationTargetMissing)
}

func TestConfigurationLoaderSearchesUserConfigurationDirectory(t *testing.T) {
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDirectory, "config"))

	searchPaths := utils.DefaultSearchPaths(testUserConfigurationDirectoryConstant)
	require.Len(t, searchPaths, 2)
	require.Equal(t, ".", searchPaths[0])

	require.NoError(t, os.MkdirAll(searchPaths[1], 0o755))
	configurationPath := filepath.Join(searchPaths[1], testConfigFileNameConstant)
	require.NoError(t, os.WriteFile(configurationPath, []byte(fmt.Sprintf(testConfigContentTemplateConstant, "debug", "15s")), 0o600))

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths[1:])
	loaded := configurationFixture{}
	metadata, loadError := loader.LoadConfiguration("", nil, &loaded)
	require.NoError(t, loadError)
	require.Equal(t, "debug", loaded.Common.LogLevel)
	require.Equal(t, 15*time.Second, loaded.Sync.FetchTimeout)
	require.Equal(t, configurationPath, metadata.ConfigFileUsed)
}
