package refresh

import (
	"context"
	"path"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hubshare/shareindex/internal/contextutil"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
	"github.com/hubshare/shareindex/internal/walkfs"
)

// extensionCategories maps common file extensions to the coarse type mask
// aggregated up the tree for search pruning (§4.2). It is a static lookup
// table, not an algorithm, so no third-party classification library is
// warranted here.
var extensionCategories = map[string]tree.FileTypeMask{
	".mp3": tree.FileTypeAudio, ".flac": tree.FileTypeAudio, ".wav": tree.FileTypeAudio, ".ogg": tree.FileTypeAudio, ".m4a": tree.FileTypeAudio,
	".mp4": tree.FileTypeVideo, ".mkv": tree.FileTypeVideo, ".avi": tree.FileTypeVideo, ".mov": tree.FileTypeVideo, ".webm": tree.FileTypeVideo,
	".zip": tree.FileTypeCompressed, ".rar": tree.FileTypeCompressed, ".7z": tree.FileTypeCompressed, ".gz": tree.FileTypeCompressed, ".tar": tree.FileTypeCompressed,
	".pdf": tree.FileTypeDocument, ".txt": tree.FileTypeDocument, ".doc": tree.FileTypeDocument, ".docx": tree.FileTypeDocument, ".nfo": tree.FileTypeDocument,
	".exe": tree.FileTypeExecutable, ".msi": tree.FileTypeExecutable, ".sh": tree.FileTypeExecutable, ".bin": tree.FileTypeExecutable,
	".jpg": tree.FileTypeImage, ".jpeg": tree.FileTypeImage, ".png": tree.FileTypeImage, ".gif": tree.FileTypeImage, ".bmp": tree.FileTypeImage,
}

func classify(name string) tree.FileTypeMask {
	ext := strings.ToLower(path.Ext(name))
	if category, ok := extensionCategories[ext]; ok {
		return category | tree.FileTypeAny
	}
	return tree.FileTypeAny
}

// isHidden reports whether name follows the POSIX hidden-entry convention
// (a leading dot). Hidden entries are skipped entirely during a scan
// (§4.6): neither indexed nor descended into.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// scanContext carries the state threaded through a single root's recursive
// scan: the previous cache (read), the cache being rebuilt (write), the
// exclusion rules, the hasher seam for cache misses, the release-name
// matcher fed every directory name encountered, and an optional walk-rate
// limiter.
//
// A cache miss enqueues to hasher and returns without waiting, so its done
// callback may run on a different goroutine than the one driving the walk,
// possibly after ScanRoot itself has returned; mu guards newCache writes
// made from that callback.
type scanContext struct {
	ctx          context.Context
	exclude      *excluder
	hasher       Hasher
	limiter      *rate.Limiter
	releaseNames *tree.ReleaseNameMatcher
	onFileHashed func(f *tree.File, h tth.Hash)
	oldCache     *ScanCache

	mu       sync.Mutex
	newCache *ScanCache

	directories uint64
	files       uint64
}

// ScanRoot performs a full filesystem walk of cfg's real path, producing a
// provisional tree.Directory and a rebuilt ScanCache. It never mutates the
// live tree — the caller swaps the result in under the exclusive lock
// (§4.6). onFileHashed, if non-nil, is invoked once per file whose digest
// arrives asynchronously after the enclosing scan has inserted it pending;
// it may fire after ScanRoot itself has already returned.
func ScanRoot(ctx context.Context, cfg RootConfig, oldCache *ScanCache, hasher Hasher, limiter *rate.Limiter, releaseNames *tree.ReleaseNameMatcher, onFileHashed func(f *tree.File, h tth.Hash)) (*tree.Directory, *ScanCache, error) {
	exclude, err := newExcluder(cfg.ExcludePatterns)
	if err != nil {
		return nil, nil, err
	}

	sc := &scanContext{
		ctx:          ctx,
		exclude:      exclude,
		hasher:       hasher,
		limiter:      limiter,
		releaseNames: releaseNames,
		onFileHashed: onFileHashed,
		oldCache:     oldCache,
		newCache:     NewScanCache(),
	}

	root := tree.NewRoot(cfg.RealPath, cfg.VirtualName)
	for _, hub := range cfg.ExcludedHubs {
		root.Root.ExcludedHubs[hub] = struct{}{}
	}
	root.Root.Incoming = cfg.Incoming

	if err := sc.scanDirectory(root, cfg.RealPath, ""); err != nil {
		return nil, nil, err
	}

	return root, sc.newCache, nil
}

// scanDirectory recursively populates dir from the filesystem entries found
// at realPath, using relPath (relative to the root) as both the cache key
// prefix and the exclusion-matching path.
func (sc *scanContext) scanDirectory(dir *tree.Directory, realPath, relPath string) error {
	if contextutil.IsCancelled(sc.ctx) {
		return sc.ctx.Err()
	}
	if sc.limiter != nil {
		if err := sc.limiter.Wait(sc.ctx); err != nil {
			return err
		}
	}

	entries, err := walkfs.ReadDir(realPath)
	if err != nil {
		// A directory that vanished or became unreadable mid-scan is
		// treated as empty rather than aborting the whole root.
		return nil
	}

	for _, entry := range entries {
		if isHidden(entry.Name) {
			continue
		}

		childRelPath := joinRel(relPath, entry.Name)
		if sc.exclude.excluded(childRelPath, entry.IsDir) {
			continue
		}
		childRealPath := walkfs.Join(realPath, entry.Name)

		if entry.IsDir {
			sc.directories++
			sc.releaseNames.Observe(entry.Name)
			child, err := dir.InsertDirectory(entry.Name, entry.ModTime.UnixNano())
			if err != nil {
				continue
			}
			if err := sc.scanDirectory(child, childRealPath, childRelPath); err != nil {
				return err
			}
			continue
		}

		sc.files++
		if _, err := sc.insertFile(dir, entry.Name, childRelPath, childRealPath, entry); err != nil {
			continue
		}
	}

	return nil
}

// insertFile inserts entry into dir, reusing a cached digest when the
// file's modification time and size are unchanged (CacheEntry.reusable).
// On a cache miss, the file is inserted pending (zero TTH, Hashed ==
// false) and its digest is enqueued with the pipeline's hasher; the digest
// is installed later, via onFileHashed if set or directly on the returned
// *tree.File otherwise, whenever the hasher's done callback fires (§4.6).
func (sc *scanContext) insertFile(dir *tree.Directory, name, relPath, realPath string, entry walkfs.Entry) (*tree.File, error) {
	category := classify(name)

	if sc.oldCache != nil {
		if cached, ok := sc.oldCache.Entries[relPath]; ok && cached.reusable(entry.ModTime, entry.Size) {
			sc.newCache.Entries[relPath] = cached
			return dir.InsertFile(name, entry.Size, cached.TTH, category)
		}
	}

	f, err := dir.InsertFile(name, entry.Size, tth.Hash{}, category)
	if err != nil {
		return nil, err
	}

	sc.hasher.Enqueue(realPath, func(h tth.Hash, err error) {
		if err != nil {
			return
		}

		sc.mu.Lock()
		sc.newCache.Entries[relPath] = CacheEntry{ModTime: entry.ModTime, Size: entry.Size, TTH: h}
		sc.mu.Unlock()

		if sc.onFileHashed != nil {
			sc.onFileHashed(f, h)
		} else {
			f.SetHash(h)
		}
	})

	return f, nil
}

func joinRel(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
