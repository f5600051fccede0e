package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forksync/internal/utils"
)

func TestCommandContextAccessorConfigurationMetadata(t *testing.T) {
	t.Parallel()
	accessor := utils.NewCommandContextAccessor()

	_, available := accessor.ConfigurationMetadata(context.Background())
	require.False(t, available)

	metadata := utils.LoadedConfiguration{ConfigFileUsed: "/etc/forksync/config.yaml", EnvironmentPrefix: "FORKSYNC"}
	executionContext := accessor.WithConfigurationMetadata(context.Background(), metadata)

	resolved, available := accessor.ConfigurationMetadata(executionContext)
	require.True(t, available)
	require.Equal(t, metadata, resolved)
}
