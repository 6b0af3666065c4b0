package housekeeping

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hubshare/shareindex/internal/logging"
)

// TestHousekeepRemovesStaleListing tests that a listing cache file older
// than the maximum age is removed by a sweep.
func TestHousekeepRemovesStaleListing(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "hub-a.xml")
	if err := os.WriteFile(stale, []byte("data"), 0o600); err != nil {
		t.Fatal("unable to create test listing file:", err)
	}
	old := time.Now().Add(-2 * maximumListingCacheAge)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal("unable to backdate test listing file:", err)
	}

	keeper := &CacheFS{ListingCacheDir: dir, Logger: logging.RootLogger}
	if err := keeper.Housekeep(); err != nil {
		t.Fatal("housekeep failed:", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale listing file was not removed")
	}
}

// TestHousekeepKeepsFreshListing tests that a recently modified listing
// cache file survives a sweep.
func TestHousekeepKeepsFreshListing(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "hub-b.xml")
	if err := os.WriteFile(fresh, []byte("data"), 0o600); err != nil {
		t.Fatal("unable to create test listing file:", err)
	}

	keeper := &CacheFS{ListingCacheDir: dir, Logger: logging.RootLogger}
	if err := keeper.Housekeep(); err != nil {
		t.Fatal("housekeep failed:", err)
	}

	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh listing file was unexpectedly removed:", err)
	}
}

// TestHousekeepMissingDirectories tests that Housekeep tolerates directories
// that don't exist.
func TestHousekeepMissingDirectories(t *testing.T) {
	keeper := &CacheFS{
		ListingCacheDir: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger:          logging.RootLogger,
	}
	if err := keeper.Housekeep(); err != nil {
		t.Fatal("housekeep failed on missing directory:", err)
	}
}
