package tth

import "testing"

// TestParseRoundTrip tests that String and Parse are mutual inverses.
func TestParseRoundTrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i * 7)
	}

	text := h.String()
	parsed, err := Parse(text)
	if err != nil {
		t.Fatal("unable to parse encoded hash:", err)
	}
	if parsed != h {
		t.Error("parsed hash does not match original")
	}
}

// TestParseInvalid tests that Parse rejects malformed input.
func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"not-base32!!!",
		"AAAA",
	}
	for _, text := range tests {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) unexpectedly succeeded", text)
		}
	}
}

// TestFromBytes tests FromBytes validation of digest length.
func TestFromBytes(t *testing.T) {
	if _, err := FromBytes(make([]byte, Size-1)); err == nil {
		t.Error("FromBytes accepted a short digest")
	}
	if _, err := FromBytes(make([]byte, Size)); err != nil {
		t.Error("FromBytes rejected a correctly sized digest:", err)
	}
}

// TestIsZero tests IsZero for zero and non-zero hashes.
func TestIsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero hash not classified as zero")
	}
	nonZero := Hash{1}
	if nonZero.IsZero() {
		t.Error("non-zero hash classified as zero")
	}
}

// TestReverseLookupMap tests basic ReverseLookupMap operations.
func TestReverseLookupMap(t *testing.T) {
	m := NewReverseLookupMap[string](0)
	if m.Length() != 0 {
		t.Error("new map has non-zero length")
	}

	var h Hash
	h[0] = 1
	m.Insert(h, "/some/path")

	if m.Length() != 1 {
		t.Error("map length incorrect after insert")
	}

	if v, ok := m.Lookup(h); !ok || v != "/some/path" {
		t.Error("lookup did not return inserted value")
	}

	m.Delete(h)
	if _, ok := m.Lookup(h); ok {
		t.Error("lookup succeeded after delete")
	}
}
