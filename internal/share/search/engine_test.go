package search

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hubshare/shareindex/internal/share/bloom"
	"github.com/hubshare/shareindex/internal/share/index"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
)

func testHash(b byte) tth.Hash {
	var h tth.Hash
	h[0] = b
	return h
}

func buildEngine(t *testing.T, roots ...*tree.Directory) *Engine {
	t.Helper()
	idx := index.New()
	idx.Rebuild(roots)

	filter := bloom.New(1<<16, bloom.DefaultK)
	for _, root := range roots {
		tree.Walk(root, "", tree.Visitor{
			File: func(_ string, f *tree.File) {
				filter.AddName(f.Name)
			},
		})
	}

	return New(filter, idx)
}

// TestLegacySearchMatchesScenarioA mirrors §8 scenario (a): a single
// matching audio file is returned with the correct virtual path.
func TestLegacySearchMatchesScenarioA(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	if _, err := root.InsertFile("Song.mp3", 1234567, testHash(1), tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	results := engine.Search(LegacyQuery{
		Terms:    []string{"song"},
		Category: CategoryAudio,
	})

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].VirtualPath != "Music/Song.mp3" {
		t.Error("unexpected virtual path:", results[0].VirtualPath)
	}
}

// TestLegacySearchBloomPrefilterShortCircuits verifies that a query term
// never ingested by the Bloom filter yields no results without walking the
// tree.
func TestLegacySearchBloomPrefilterShortCircuits(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	if _, err := root.InsertFile("Song.mp3", 1, testHash(1), tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	results := engine.Search(LegacyQuery{Terms: []string{"zzzznotpresent"}})
	if results != nil {
		t.Error("expected nil results for a term absent from the filter")
	}
}

// TestLegacySearchMatchesNonWordBoundarySubstring verifies that a query
// atom not aligned to any word boundary ("ong" against "Song.mp3") still
// finds a match: the Bloom prefilter must never false-negative such a
// query, and the tree walk's strings.Contains check has always supported
// arbitrary substrings.
func TestLegacySearchMatchesNonWordBoundarySubstring(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	if _, err := root.InsertFile("Song.mp3", 1234567, testHash(1), tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	results := engine.Search(LegacyQuery{Terms: []string{"ong"}})
	if len(results) != 1 {
		t.Fatalf("expected one result for non-word-boundary substring query, got %d", len(results))
	}
	if results[0].VirtualPath != "Music/Song.mp3" {
		t.Error("unexpected virtual path:", results[0].VirtualPath)
	}
}

// TestHubExclusionScenarioC mirrors §8 scenario (c): a peer on an excluded
// hub gets zero results, while a peer on an unlisted hub gets one.
func TestHubExclusionScenarioC(t *testing.T) {
	root := tree.NewRoot("/secret", "Secret")
	root.Root.ExcludedHubs["adc://secret"] = struct{}{}
	if _, err := root.InsertFile("File.bin", 10, testHash(1), tree.FileTypeAny); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	excluded := engine.Search(LegacyQuery{Terms: []string{"file"}, HubURL: "adc://secret"})
	if len(excluded) != 0 {
		t.Error("expected zero results for excluded hub")
	}

	allowed := engine.Search(LegacyQuery{Terms: []string{"file"}, HubURL: "adc://open"})
	if len(allowed) != 1 {
		t.Error("expected one result for non-excluded hub")
	}
}

// TestADCSearchByTTH verifies direct TTH resolution bypasses the tree walk.
func TestADCSearchByTTH(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	h := testHash(7)
	if _, err := root.InsertFile("Song.mp3", 10, h, tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	results := engine.SearchADC(ADCQuery{TTH: h})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].VirtualPath != "Music/Song.mp3" {
		t.Error("unexpected virtual path:", results[0].VirtualPath)
	}
}

// TestADCSearchIncludeExcludeAndExtension verifies include/exclude term
// matching and extension filtering.
func TestADCSearchIncludeExcludeAndExtension(t *testing.T) {
	root := tree.NewRoot("/media", "Media")
	if _, err := root.InsertFile("movie.mkv", 10, testHash(1), tree.FileTypeVideo); err != nil {
		t.Fatal(err)
	}
	if _, err := root.InsertFile("movie.nfo", 10, testHash(2), tree.FileTypeDocument); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, root)

	results := engine.SearchADC(ADCQuery{
		Include:            []string{"movie"},
		ExtensionWhitelist: []string{"mkv"},
	})

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].VirtualPath != "Media/movie.mkv" {
		t.Error("unexpected virtual path:", results[0].VirtualPath)
	}
}

// TestScenarioBAliasedRootsPartialListing mirrors §8 scenario (b) at the
// search-engine level: two roots aliasing the same virtual name both
// contribute results under that name.
func TestScenarioBAliasedRootsPartialListing(t *testing.T) {
	a := tree.NewRoot("/a", "Media")
	if _, err := a.InsertFile("X.avi", 1, testHash(1), tree.FileTypeVideo); err != nil {
		t.Fatal(err)
	}
	b := tree.NewRoot("/b", "Media")
	if _, err := b.InsertFile("Y.mkv", 1, testHash(2), tree.FileTypeVideo); err != nil {
		t.Fatal(err)
	}
	engine := buildEngine(t, a, b)

	results := engine.Search(LegacyQuery{})

	var paths []string
	for _, r := range results {
		paths = append(paths, r.VirtualPath)
	}
	sort.Strings(paths)

	want := []string{"Media/X.avi", "Media/Y.mkv"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("unexpected result set across aliased roots (-want +got):\n%s", diff)
	}
}
