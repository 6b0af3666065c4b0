package tree

import (
	"regexp"
	"sort"
	"sync"
)

// ReleaseNameMatcher recognizes directory names matching a configured
// "release" pattern and tracks every matching name observed so far in a
// sorted, case-folded list, giving the queue manager (out of scope here)
// an O(log n) duplicate-download check via sort.SearchStrings. It is
// guarded by its own mutex, distinct from the tree's own lock: a caller
// needing both takes the tree lock first, then this one.
type ReleaseNameMatcher struct {
	pattern *regexp.Regexp

	mu    sync.Mutex
	names []string
}

// NewReleaseNameMatcher compiles pattern as the release-name regex. An
// empty pattern disables matching: Observe becomes a no-op and Contains
// always reports false.
func NewReleaseNameMatcher(pattern string) (*ReleaseNameMatcher, error) {
	if pattern == "" {
		return &ReleaseNameMatcher{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &ReleaseNameMatcher{pattern: re}, nil
}

// Observe records name if it matches the configured pattern and isn't
// already tracked. Safe to call on a nil matcher.
func (m *ReleaseNameMatcher) Observe(name string) {
	if m == nil || m.pattern == nil || !m.pattern.MatchString(name) {
		return
	}
	key := foldName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.SearchStrings(m.names, key)
	if i < len(m.names) && m.names[i] == key {
		return
	}
	m.names = append(m.names, "")
	copy(m.names[i+1:], m.names[i:])
	m.names[i] = key
}

// Contains reports whether name (case-folded) has already been observed as
// a release name. Safe to call on a nil matcher.
func (m *ReleaseNameMatcher) Contains(name string) bool {
	if m == nil {
		return false
	}
	key := foldName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.SearchStrings(m.names, key)
	return i < len(m.names) && m.names[i] == key
}

// Reset clears the tracked name list, called ahead of a full rescan so
// release names belonging to directories that no longer exist don't
// linger (the tree itself is "replaced wholesale" on the same occasion,
// per the package's lifecycle notes). Safe to call on a nil matcher.
func (m *ReleaseNameMatcher) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = m.names[:0]
}
