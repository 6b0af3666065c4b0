package share

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hubshare/shareindex/internal/share/refresh"
	"github.com/hubshare/shareindex/internal/share/resolve"
	"github.com/hubshare/shareindex/internal/share/search"
	"github.com/hubshare/shareindex/internal/tth"
)

func stubHasher() refresh.Hasher {
	return refresh.HasherFunc(func(realPath string) (tth.Hash, error) {
		var h tth.Hash
		h[0] = byte(len(realPath))
		h[1] = 7
		return h, nil
	})
}

func writeTestFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestStartPerformsInitialRefreshAndSearchFindsResult verifies that
// starting a coordinator against a populated root scans it and makes its
// contents searchable.
func TestStartPerformsInitialRefreshAndSearchFindsResult(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "Song.mp3"), "audio-bytes")

	cacheDir := t.TempDir()
	c := New(Config{
		CacheDir: cacheDir,
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Music"}},
		Hasher:   stubHasher(),
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	results := c.Search(search.LegacyQuery{Terms: []string{"song"}})
	if len(results) != 1 {
		t.Fatalf("expected one search result, got %d", len(results))
	}
	if results[0].VirtualPath != "/Music/Song.mp3" {
		t.Errorf("unexpected virtual path: %s", results[0].VirtualPath)
	}
}

// TestStopPersistsCatalogForFasterRestart verifies that stopping a
// coordinator writes a catalog file a subsequent start can read back.
func TestStopPersistsCatalogForFasterRestart(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "Track.mp3"), "audio-bytes")

	cacheDir := t.TempDir()
	cfg := Config{
		CacheDir: cacheDir,
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Music"}},
		Hasher:   stubHasher(),
	}

	first := New(cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(cacheDir, catalogFileName)); err != nil {
		t.Fatalf("expected catalog file to exist after stop: %v", err)
	}

	caches, err := loadCatalog(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	cache, ok := caches[root]
	if !ok || len(cache.Entries) != 1 {
		t.Fatalf("expected one persisted cache entry for root, got %+v", caches)
	}
}

// TestStatsReportsCatalogTotals verifies Stats aggregates counts across
// the scanned roots.
func TestStatsReportsCatalogTotals(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "aa")
	writeTestFile(t, filepath.Join(root, "b.txt"), "bbbb")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Docs"}},
		Hasher:   stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	stats := c.Stats()
	if stats.Files != 2 {
		t.Errorf("expected 2 files, got %d", stats.Files)
	}
	if stats.TotalSize != 6 {
		t.Errorf("expected total size 6, got %d", stats.TotalSize)
	}
}

// TestRefreshStateReflectsExplicitRefresh verifies that a manual Refresh
// call advances the state-change index observed through
// WaitForRefreshStateChange.
func TestRefreshStateReflectsExplicitRefresh(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "aa")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Docs"}},
		Hasher:   stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if state := c.RefreshState(); state != refresh.StateIdle {
		t.Fatalf("expected idle state after startup refresh, got %v", state)
	}

	before, _, err := c.WaitForRefreshStateChange(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Refresh(context.Background(), refresh.Options{All: true, Blocking: true}); err != nil {
		t.Fatal(err)
	}

	after, state, err := c.WaitForRefreshStateChange(context.Background(), before)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Fatal("expected state-change index to advance after an explicit refresh")
	}
	if state != refresh.StateIdle {
		t.Errorf("expected idle state after refresh completes, got %v", state)
	}
}

// TestAddDirectoryScansAndMakesSearchable verifies that AddDirectory
// registers a brand new root, scans it without disturbing the
// already-configured roots, and makes its contents searchable (§3's
// addDirectory).
func TestAddDirectoryScansAndMakesSearchable(t *testing.T) {
	first := t.TempDir()
	writeTestFile(t, filepath.Join(first, "a.txt"), "aa")
	second := t.TempDir()
	writeTestFile(t, filepath.Join(second, "Song.mp3"), "audio-bytes")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: first, VirtualName: "Docs"}},
		Hasher:   stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if err := c.AddDirectory(context.Background(), refresh.RootConfig{RealPath: second, VirtualName: "Music"}); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Roots != 2 {
		t.Fatalf("expected both roots present after AddDirectory, got %d", stats.Roots)
	}

	results := c.Search(search.LegacyQuery{Terms: []string{"song"}})
	if len(results) != 1 {
		t.Fatalf("expected the newly added root's file to be searchable, got %d results", len(results))
	}

	docResults := c.Search(search.LegacyQuery{Terms: []string{"a.txt"}})
	if len(docResults) != 1 {
		t.Error("expected the original root to survive AddDirectory unchanged")
	}
}

// TestAddDirectoryRejectsDuplicateRealPath verifies that adding a root
// already configured at the same real path returns ErrDuplicateVirtualName
// instead of silently duplicating it.
func TestAddDirectoryRejectsDuplicateRealPath(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "aa")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Docs"}},
		Hasher:   stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	err := c.AddDirectory(context.Background(), refresh.RootConfig{RealPath: root, VirtualName: "AnotherAlias"})
	if err != ErrDuplicateVirtualName {
		t.Errorf("expected ErrDuplicateVirtualName, got %v", err)
	}
}

// TestRemoveDirectoryDropsRootAndErrorsForUnknownPath verifies
// RemoveDirectory takes a root out of the live catalog, and reports
// ErrPathNotFound for a path that was never configured.
func TestRemoveDirectoryDropsRootAndErrorsForUnknownPath(t *testing.T) {
	first := t.TempDir()
	writeTestFile(t, filepath.Join(first, "a.txt"), "aa")
	second := t.TempDir()
	writeTestFile(t, filepath.Join(second, "b.txt"), "bb")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots: []refresh.RootConfig{
			{RealPath: first, VirtualName: "A"},
			{RealPath: second, VirtualName: "B"},
		},
		Hasher: stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if err := c.RemoveDirectory(first); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Roots != 1 {
		t.Fatalf("expected one remaining root after RemoveDirectory, got %d", stats.Roots)
	}

	if err := c.RemoveDirectory("/no/such/path"); err != ErrPathNotFound {
		t.Errorf("expected ErrPathNotFound for an unconfigured path, got %v", err)
	}
}

// TestHiddenFilesAreNeverIndexed verifies a dotfile present in a scanned
// root is skipped entirely, neither searchable nor resolvable.
func TestHiddenFilesAreNeverIndexed(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, ".hidden"), "secret")
	writeTestFile(t, filepath.Join(root, "visible.txt"), "ok")

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Docs"}},
		Hasher:   stubHasher(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	stats := c.Stats()
	if stats.Files != 1 {
		t.Errorf("expected only the visible file to be indexed, got %d files", stats.Files)
	}

	if results := c.Search(search.LegacyQuery{Terms: []string{"hidden"}}); len(results) != 0 {
		t.Errorf("expected the hidden file to never be searchable, got %d results", len(results))
	}
}

// asyncHasher adapts a plain enqueue function to refresh.Hasher for tests
// that need Enqueue to return immediately and complete the hash later,
// from another goroutine.
type asyncHasher func(realPath string, done func(tth.Hash, error))

func (f asyncHasher) Enqueue(realPath string, done func(tth.Hash, error)) {
	f(realPath, done)
}

// TestResolveReportsHashInProgressForPendingFile verifies that a file
// whose digest hasn't arrived yet reports ErrHashInProgress from the
// resolver rather than a zero-value TTH or real path, and resolves
// normally once the async hasher completes (§4.6/§4.7).
func TestResolveReportsHashInProgressForPendingFile(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "slow.bin"), "data")

	release := make(chan struct{})
	hasher := asyncHasher(func(realPath string, done func(tth.Hash, error)) {
		go func() {
			<-release
			var h tth.Hash
			h[0] = 5
			done(h, nil)
		}()
	})

	c := New(Config{
		CacheDir: t.TempDir(),
		Roots:    []refresh.RootConfig{{RealPath: root, VirtualName: "Docs"}},
		Hasher:   hasher,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if _, err := c.Resolver().ToReal("/Docs/slow.bin", false, resolve.Peer{}, ""); err != resolve.ErrHashInProgress {
		t.Fatalf("expected ErrHashInProgress before the hash arrives, got %v", err)
	}

	baseline, _, err := c.WaitForRefreshStateChange(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	close(release)
	if _, _, err := c.WaitForRefreshStateChange(context.Background(), baseline); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Resolver().ToReal("/Docs/slow.bin", false, resolve.Peer{}, ""); err != nil {
		t.Errorf("expected the file to resolve once hashing completes, got %v", err)
	}
}
