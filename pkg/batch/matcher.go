// Package batch selects HTML files under a directory and captures them
// concurrently.
package batch

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// PatternMatcher decides which relative paths take part in a batch.
// Patterns use '/' as separator: '*' stays within one directory, '**'
// crosses directories.
type PatternMatcher struct {
	allowedPatterns []glob.Glob
	deniedPatterns  []glob.Glob
}

// DefaultInclude selects HTML files at any depth.
var DefaultInclude = []string{"**.html", "**.htm"}

// NewPatternMatcher compiles the include and exclude patterns
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	pm := &PatternMatcher{}

	for _, pattern := range include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		pm.allowedPatterns = append(pm.allowedPatterns, g)
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		pm.deniedPatterns = append(pm.deniedPatterns, g)
	}

	return pm, nil
}

// Match reports whether rel, a path relative to the batch root, is selected.
// Excludes win over includes; with no includes everything not excluded is
// selected.
func (pm *PatternMatcher) Match(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))

	for _, pattern := range pm.deniedPatterns {
		if pattern.Match(rel) {
			return false
		}
	}

	if len(pm.allowedPatterns) == 0 {
		return true
	}

	for _, pattern := range pm.allowedPatterns {
		if pattern.Match(rel) {
			return true
		}
	}
	return false
}
