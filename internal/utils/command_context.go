package utils

import "context"

const (
	configurationMetadataContextKeyConstant = commandContextKey("configurationMetadata")
)

type commandContextKey string

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationMetadata attaches the resolved configuration metadata to the provided context.
func (accessor CommandContextAccessor) WithConfigurationMetadata(parentContext context.Context, metadata LoadedConfiguration) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationMetadataContextKeyConstant, metadata)
}

// ConfigurationMetadata extracts the configuration metadata from the provided context.
func (accessor CommandContextAccessor) ConfigurationMetadata(executionContext context.Context) (LoadedConfiguration, bool) {
	if executionContext == nil {
		return LoadedConfiguration{}, false
	}
	metadata, metadataAvailable := executionContext.Value(configurationMetadataContextKeyConstant).(LoadedConfiguration)
	return metadata, metadataAvailable
}
