package pathutils

import (
	"sort"
	"strings"
)

// SanitizerConfiguration controls Sanitize.
type SanitizerConfiguration struct {
	// PruneNestedPaths drops paths that lie inside another provided path.
	PruneNestedPaths bool
}

// Sanitizer normalizes user supplied repository paths and discovery roots.
type Sanitizer struct {
	expander      *HomeExpander
	configuration SanitizerConfiguration
}

// NewSanitizer constructs a Sanitizer. A nil expander uses the operating system home directory.
func NewSanitizer(expander *HomeExpander, configuration SanitizerConfiguration) *Sanitizer {
	if expander == nil {
		expander = NewHomeExpander(nil)
	}
	return &Sanitizer{expander: expander, configuration: configuration}
}

// Expand trims and home-expands a single path.
func (sanitizer *Sanitizer) Expand(candidatePath string) string {
	return sanitizer.expander.Expand(strings.TrimSpace(candidatePath))
}

// Sanitize trims, expands and de-duplicates paths, keeping the first spelling of each.
func (sanitizer *Sanitizer) Sanitize(candidatePaths []string) []string {
	seen := make(map[string]struct{}, len(candidatePaths))
	sanitized := make([]string, 0, len(candidatePaths))
	for _, candidate := range candidatePaths {
		expanded := sanitizer.Expand(candidate)
		if len(expanded) == 0 {
			continue
		}
		key := Canonical(expanded)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		sanitized = append(sanitized, expanded)
	}
	if sanitizer.configuration.PruneNestedPaths {
		return pruneNested(sanitized)
	}
	return sanitized
}

func pruneNested(paths []string) []string {
	type indexedPath struct {
		index int
		value string
		key   string
	}
	ordered := make([]indexedPath, 0, len(paths))
	for index, value := range paths {
		ordered = append(ordered, indexedPath{index: index, value: value, key: Canonical(value)})
	}
	sort.SliceStable(ordered, func(first int, second int) bool {
		return len(ordered[first].key) < len(ordered[second].key)
	})

	kept := make([]indexedPath, 0, len(ordered))
	for _, candidate := range ordered {
		nested := false
		for _, parent := range kept {
			if IsNested(parent.key, candidate.key) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, candidate)
		}
	}
	sort.SliceStable(kept, func(first int, second int) bool {
		return kept[first].index < kept[second].index
	})

	pruned := make([]string, 0, len(kept))
	for _, path := range kept {
		pruned = append(pruned, path.value)
	}
	return pruned
}
