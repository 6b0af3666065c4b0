package tree

import "testing"

// TestReleaseNameMatcherTracksMatchesOnly verifies that only names matching
// the configured pattern are recorded, and that membership checks are
// case-insensitive.
func TestReleaseNameMatcherTracksMatchesOnly(t *testing.T) {
	m, err := NewReleaseNameMatcher(`^The\..*-GROUP$`)
	if err != nil {
		t.Fatal(err)
	}

	m.Observe("The.Movie.2024-GROUP")
	m.Observe("Random.Folder")

	if !m.Contains("the.movie.2024-group") {
		t.Error("expected case-insensitive membership for an observed release name")
	}
	if m.Contains("random.folder") {
		t.Error("non-matching directory name should never be tracked")
	}
}

// TestReleaseNameMatcherDeduplicatesAndStaysSorted verifies that observing
// the same name twice doesn't produce duplicate entries, and a second
// distinct name is still found afterward regardless of insertion order.
func TestReleaseNameMatcherDeduplicatesAndStaysSorted(t *testing.T) {
	m, err := NewReleaseNameMatcher(`-GROUP$`)
	if err != nil {
		t.Fatal(err)
	}

	m.Observe("Zulu-GROUP")
	m.Observe("Alpha-GROUP")
	m.Observe("Zulu-GROUP")

	if len(m.names) != 2 {
		t.Fatalf("expected 2 tracked names after a duplicate observe, got %d", len(m.names))
	}
	if !m.Contains("Alpha-GROUP") || !m.Contains("Zulu-GROUP") {
		t.Error("expected both distinct observed names to be tracked")
	}
}

// TestReleaseNameMatcherResetClearsNames verifies Reset drops all tracked
// names ahead of a full rescan.
func TestReleaseNameMatcherResetClearsNames(t *testing.T) {
	m, err := NewReleaseNameMatcher(`-GROUP$`)
	if err != nil {
		t.Fatal(err)
	}
	m.Observe("Alpha-GROUP")
	m.Reset()

	if m.Contains("Alpha-GROUP") {
		t.Error("expected Reset to clear previously tracked release names")
	}
}

// TestReleaseNameMatcherNilIsSafe verifies every method tolerates a nil
// receiver, matching the pattern used elsewhere when a feature is
// unconfigured.
func TestReleaseNameMatcherNilIsSafe(t *testing.T) {
	var m *ReleaseNameMatcher
	m.Observe("anything-GROUP")
	m.Reset()
	if m.Contains("anything-GROUP") {
		t.Error("nil matcher should never report a match")
	}
}
