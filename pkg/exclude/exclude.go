// Package exclude decides which directories and files are left out of a deploy.
//
// Directory names are compared literally against the exclusion list. File
// names are matched against it with shell glob semantics (see pkg/fnmatch).
// An optional list of doublestar patterns is matched against paths relative
// to the deploy root and applies to both directories and files.
package exclude

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuya-takeyama/ssh-deploy/pkg/fnmatch"
)

// Matcher holds a compiled exclusion set. The zero value excludes nothing.
type Matcher struct {
	names    map[string]struct{}
	patterns []*fnmatch.Pattern
	paths    []string
}

// New compiles the exclusion entries and relative path patterns.
func New(entries []string, pathPatterns []string) (*Matcher, error) {
	m := &Matcher{
		names: make(map[string]struct{}, len(entries)),
	}

	for _, entry := range entries {
		p, err := fnmatch.Compile(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", entry, err)
		}
		m.names[entry] = struct{}{}
		m.patterns = append(m.patterns, p)
	}

	for _, pattern := range pathPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude path pattern %q", pattern)
		}
		m.paths = append(m.paths, pattern)
	}

	return m, nil
}

// IsExcludedDir reports whether name is literally one of the exclusion entries.
func (m *Matcher) IsExcludedDir(name string) bool {
	_, ok := m.names[name]
	return ok
}

// IsExcludedFile reports whether name matches any exclusion entry.
func (m *Matcher) IsExcludedFile(name string) bool {
	for _, p := range m.patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// IsExcludedPath reports whether the slash-separated path relative to the
// deploy root matches one of the path patterns.
func (m *Matcher) IsExcludedPath(relPath string) bool {
	for _, pattern := range m.paths {
		// Patterns were validated in New.
		if doublestar.MatchUnvalidated(pattern, relPath) {
			return true
		}
	}
	return false
}
