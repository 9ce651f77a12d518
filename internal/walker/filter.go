package walker

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are directory names never descended into. .mathedit holds
// the incremental batch state, which is not a document.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	".mathedit",
	".idea",
	".vscode",
}

// shouldExcludeDir reports whether a directory name is a default exclusion.
func shouldExcludeDir(name string) bool {
	for _, excl := range DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// ValidatePatterns returns an error naming the first malformed glob.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// MatchesInclude reports whether relPath matches any include pattern. No
// patterns include everything.
func MatchesInclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(relPath, patterns)
}

// MatchesExclude reports whether relPath matches any exclude pattern.
func MatchesExclude(relPath string, patterns []string) bool {
	return matchesAny(relPath, patterns)
}

// matchesAny matches slash-separated paths on every OS. A pattern with a
// slash is matched against the whole path; one without is matched against
// the base name as well, so "*.min.html" applies at any depth.
func matchesAny(relPath string, patterns []string) bool {
	p := filepath.ToSlash(relPath)
	base := path.Base(p)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}
