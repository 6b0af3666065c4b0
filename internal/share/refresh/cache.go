package refresh

import (
	"time"

	"github.com/hubshare/shareindex/internal/tth"
)

// CacheEntry records enough about a previously-scanned file to decide
// whether its content digest can be reused without rehashing, grounded on
// the cache-hit fields scan.go checks (modification time, size — file ID
// is omitted since walkfs exposes no platform file-identity concept).
type CacheEntry struct {
	ModTime time.Time
	Size    uint64
	TTH     tth.Hash
}

// ScanCache holds the previous refresh's per-file cache entries for a
// single root, keyed by the file's path relative to that root.
type ScanCache struct {
	Entries map[string]CacheEntry
}

// NewScanCache creates an empty cache.
func NewScanCache() *ScanCache {
	return &ScanCache{Entries: make(map[string]CacheEntry)}
}

// reusable reports whether entry's cached digest can stand in for a fresh
// hash of a file with the observed modification time and size, mirroring
// scan.go's cacheContentMatch check (type, modification time, and size
// unchanged).
func (entry CacheEntry) reusable(modTime time.Time, size uint64) bool {
	return entry.ModTime.Equal(modTime) && entry.Size == size
}
