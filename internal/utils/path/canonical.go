package pathutils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const windowsOperatingSystemConstant = "windows"

// Canonical returns an absolute, cleaned path with symlinks resolved when the
// path exists. Two spellings of the same repository produce the same value.
func Canonical(candidatePath string) string {
	cleaned := filepath.Clean(candidatePath)
	absolute, absoluteError := filepath.Abs(cleaned)
	if absoluteError != nil {
		return comparisonForm(cleaned)
	}
	if resolved, resolveError := filepath.EvalSymlinks(absolute); resolveError == nil {
		absolute = resolved
	}
	return comparisonForm(filepath.Clean(absolute))
}

// IsNested reports whether candidate equals parent or lies beneath it.
func IsNested(parent string, candidate string) bool {
	parentKey := Canonical(parent)
	candidateKey := Canonical(candidate)
	if parentKey == candidateKey {
		return true
	}
	if !strings.HasPrefix(candidateKey, parentKey) || len(candidateKey) <= len(parentKey) {
		return false
	}
	if parentKey[len(parentKey)-1] == os.PathSeparator {
		return true
	}
	return candidateKey[len(parentKey)] == os.PathSeparator
}

func comparisonForm(path string) string {
	if runtime.GOOS == windowsOperatingSystemConstant {
		return strings.ToLower(path)
	}
	return path
}
