package bloom

import "testing"

// TestMightContainNoFalseNegatives verifies that every token added to the
// filter is reported as possibly present.
func TestMightContainNoFalseNegatives(t *testing.T) {
	f := New(1<<16, DefaultK)

	names := []string{"Song.mp3", "Movie-Trailer.mkv", "archive.tar.gz", "Résumé.pdf"}
	var allTokens []string
	for _, name := range names {
		f.AddName(name)
		allTokens = append(allTokens, Tokenize(name)...)
	}

	for _, token := range allTokens {
		if !f.MightContain(token) {
			t.Errorf("filter reports false negative for token %q", token)
		}
	}
}

// TestMightContainAbsentToken verifies that a token never added is very
// likely reported absent (false positives are only probabilistically
// bounded, but for a sparsely populated large filter a clearly unrelated
// token should not collide).
func TestMightContainAbsentToken(t *testing.T) {
	f := New(1<<16, DefaultK)
	f.AddName("Song.mp3")

	if f.MightContain("completely-unrelated-token-xyz") {
		t.Error("filter reports token present that was never added")
	}
}

// TestSerializeReportsParameters verifies that Serialize reports the
// configured parameters and a correctly sized bit vector.
func TestSerializeReportsParameters(t *testing.T) {
	f := New(128, 3)
	f.Add("token")

	k, m, data := f.Serialize()
	if k != 3 {
		t.Error("unexpected k:", k)
	}
	if m != 128 {
		t.Error("unexpected m:", m)
	}
	if len(data) != 16 {
		t.Error("unexpected serialized data length:", len(data))
	}
}

// TestKCappedAtAvailableHashFunctions verifies that requesting more hash
// functions than are available is clamped rather than panicking.
func TestKCappedAtAvailableHashFunctions(t *testing.T) {
	f := New(64, 1000)
	if f.K() != len(hashKeys) {
		t.Error("K not clamped to available hash functions:", f.K())
	}
}
