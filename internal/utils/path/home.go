package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant        = "~"
	forwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory.
type HomeDirectoryProvider func() (string, error)

// HomeExpander replaces a leading tilde with the user's home directory.
type HomeExpander struct {
	provider  HomeDirectoryProvider
	once      sync.Once
	directory string
}

// NewHomeExpander constructs a HomeExpander. A nil provider uses os.UserHomeDir.
func NewHomeExpander(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{provider: provider}
}

// Expand resolves "~" and "~/..." and leaves every other path unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}
	expander.once.Do(func() {
		if directory, lookupError := expander.provider(); lookupError == nil {
			expander.directory = directory
		}
	})
	if len(expander.directory) == 0 {
		return candidatePath
	}
	if candidatePath == tildeSymbolConstant {
		return expander.directory
	}
	separatorPrefix := tildeSymbolConstant + string(os.PathSeparator)
	for _, prefix := range []string{forwardSlashPrefixConstant, separatorPrefix} {
		if strings.HasPrefix(candidatePath, prefix) {
			return filepath.Join(expander.directory, strings.TrimPrefix(candidatePath, prefix))
		}
	}
	return candidatePath
}
