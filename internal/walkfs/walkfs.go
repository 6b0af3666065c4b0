// Package walkfs provides the minimal filesystem directory-entry reader the
// refresh pipeline's scanner needs: name, size, modification time, and
// directory/regular-file classification, without the broader metadata
// (file IDs, executability, symbolic-link handling) a full synchronization
// filesystem abstraction would carry.
package walkfs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Entry describes a single directory child as seen by the scanner.
type Entry struct {
	Name    string
	IsDir   bool
	Size    uint64
	ModTime time.Time
}

// ReadDir lists the immediate children of dir, skipping entries whose
// Lstat/Info call fails (broken symbolic links, permission-denied entries)
// rather than aborting the whole scan over one bad entry.
func ReadDir(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read directory")
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		mode := info.Mode()
		if !mode.IsDir() && !mode.IsRegular() {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			IsDir:   mode.IsDir(),
			Size:    uint64(info.Size()),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Join joins a real filesystem path with a child name, analogous to
// filepath.Join but named distinctly from the share tree's own pathJoin so
// the two (real-path vs. virtual-path) concerns are never confused at a
// call site.
func Join(base, name string) string {
	return filepath.Join(base, name)
}
