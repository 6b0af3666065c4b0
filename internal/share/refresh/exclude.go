package refresh

import (
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludePattern is a single parsed path-exclusion pattern, used to keep
// configured subtrees (caches, version-control directories, partial
// downloads) out of a root's refresh entirely.
type excludePattern struct {
	negated       bool
	directoryOnly bool
	matchLeaf     bool
	pattern       string
}

// newExcludePattern validates and parses a user-provided exclusion pattern.
func newExcludePattern(pattern string) (*excludePattern, error) {
	if pattern == "" || pattern == "!" {
		return nil, fmt.Errorf("empty pattern")
	} else if pattern == "/" || pattern == "!/" {
		return nil, fmt.Errorf("root pattern")
	} else if pattern == "//" || pattern == "!//" {
		return nil, fmt.Errorf("root directory pattern")
	}

	negated := false
	if pattern[0] == '!' {
		negated = true
		pattern = pattern[1:]
	}

	absolute := false
	if pattern[0] == '/' {
		absolute = true
		pattern = pattern[1:]
	}

	directoryOnly := false
	if pattern[len(pattern)-1] == '/' {
		directoryOnly = true
		pattern = pattern[:len(pattern)-1]
	}

	containsSlash := strings.IndexByte(pattern, '/') >= 0

	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, fmt.Errorf("unable to validate pattern: %w", err)
	}

	return &excludePattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     !absolute && !containsSlash,
		pattern:       pattern,
	}, nil
}

// matches reports whether the pattern matches path, and if so whether the
// match is negated (a re-inclusion of a previously excluded path).
func (p *excludePattern) matches(path string, directory bool) (matched, negated bool) {
	if p.directoryOnly && !directory {
		return false, false
	}
	if match, _ := doublestar.Match(p.pattern, path); match {
		return true, p.negated
	}
	if p.matchLeaf && path != "" {
		if match, _ := doublestar.Match(p.pattern, pathpkg.Base(path)); match {
			return true, p.negated
		}
	}
	return false, false
}

// ValidExcludePattern reports whether pattern is syntactically valid.
func ValidExcludePattern(pattern string) bool {
	_, err := newExcludePattern(pattern)
	return err == nil
}

// excluder evaluates an ordered list of exclusion patterns against scan
// paths, later patterns taking precedence (so a negated pattern can
// re-include a path excluded by an earlier, broader one).
type excluder struct {
	patterns []*excludePattern
}

// newExcluder parses patterns into an excluder.
func newExcluder(patterns []string) (*excluder, error) {
	parsed := make([]*excludePattern, len(patterns))
	for i, raw := range patterns {
		p, err := newExcludePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to parse pattern %q: %w", raw, err)
		}
		parsed[i] = p
	}
	return &excluder{patterns: parsed}, nil
}

// excluded reports whether path should be skipped by the scanner.
func (e *excluder) excluded(path string, directory bool) bool {
	excluded := false
	for _, p := range e.patterns {
		if match, negated := p.matches(path, directory); match {
			excluded = !negated
		}
	}
	return excluded
}
