package housekeeping

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hubshare/shareindex/internal/logging"
)

const (
	// maximumListingCacheAge is the maximum age a per-hub listing cache file
	// is allowed to reach, measured from its last modification, before it is
	// considered stale and removed. A listing this old will simply be
	// regenerated the next time it's requested.
	maximumListingCacheAge = 7 * 24 * time.Hour
	// maximumOrphanedTempShareAge is the maximum age a temporary share
	// backing file is allowed to reach before it is pruned, for entries
	// whose in-memory table entry has already been dropped (e.g. after an
	// unclean shutdown).
	maximumOrphanedTempShareAge = 24 * time.Hour
)

// CacheFS performs housekeeping of the on-disk directories backing a share
// index installation. It implements Housekeeper.
type CacheFS struct {
	// ListingCacheDir is the directory holding cached per-hub FileList
	// artifacts.
	ListingCacheDir string
	// TempShareDir is the directory holding temporary share backing files
	// that are no longer referenced from the in-memory temp-share table.
	TempShareDir string
	// Logger receives non-fatal diagnostic output from the sweep.
	Logger *logging.Logger
}

// Housekeep sweeps both directories, removing files older than the relevant
// maximum age. Per-entry failures are logged and do not abort the sweep.
func (c *CacheFS) Housekeep() error {
	if c.ListingCacheDir != "" {
		sweepDirectory(c.ListingCacheDir, maximumListingCacheAge, c.Logger)
	}
	if c.TempShareDir != "" {
		sweepDirectory(c.TempShareDir, maximumOrphanedTempShareAge, c.Logger)
	}
	return nil
}

// sweepDirectory removes entries of dir whose modification time is older
// than maxAge. It does not attempt to create dir if absent, since an
// absent directory requires no housekeeping.
func sweepDirectory(dir string, maxAge time.Duration, logger *logging.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	now := time.Now()
	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.RemoveAll(fullPath); err != nil {
				logger.Warn(err)
			}
		}
	}
}
