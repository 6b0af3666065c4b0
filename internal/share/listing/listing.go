// Package listing implements ListingBuilder: per-hub cached XML file
// listings, generated lazily on read and invalidated by the refresh
// pipeline's swap step (§4.5).
package listing

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hubshare/shareindex/internal/catalogio"
	"github.com/hubshare/shareindex/internal/compression"
	"github.com/hubshare/shareindex/internal/logging"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
)

// freshnessWindow is the staleness guard described in §4.5: a dirty-but-
// recently-generated list is served from cache rather than regenerated on
// every request.
const freshnessWindow = 15 * time.Minute

const generatorName = "hubshare-shareindex"

// FileList is the cached artifact record for one hub-scoped listing (the
// empty string keys the default "All" list spanning every root).
//
// The Bz-prefixed fields retain the compressed-artifact naming the
// hub-protocol convention uses even though the on-disk codec is
// compress/flate rather than bzip2 (see the package's design notes); they
// describe the compressed sibling of the XML document, not a literal .bz2
// file.
type FileList struct {
	mu sync.Mutex

	ListN int64

	XMLLength uint64
	XMLTTH    tth.Hash

	BzXMLLength uint64
	BzXMLTTH    tth.Hash
	BzXMLFile   string

	LastXMLUpdate time.Time

	XMLDirty        bool
	ForceXMLRefresh bool
}

// snapshot returns a copy of the record's fields safe to hand to a caller
// without retaining the FileList's mutex.
func (f *FileList) snapshot() FileList {
	return FileList{
		ListN:           f.ListN,
		XMLLength:       f.XMLLength,
		XMLTTH:          f.XMLTTH,
		BzXMLLength:     f.BzXMLLength,
		BzXMLTTH:        f.BzXMLTTH,
		BzXMLFile:       f.BzXMLFile,
		LastXMLUpdate:   f.LastXMLUpdate,
		XMLDirty:        f.XMLDirty,
		ForceXMLRefresh: f.ForceXMLRefresh,
	}
}

// Builder maintains the per-hub FileList cache and serializes regeneration
// on disk. It performs no locking of the directory tree itself — callers
// hold the catalog's shared read lock for the duration of a Generate* call,
// per the scheduling model described in §7.
type Builder struct {
	cacheDir string
	logger   *logging.Logger

	mu    sync.Mutex
	lists map[string]*FileList

	generation int64
}

// New creates a listing builder that persists compressed artifacts under
// cacheDir.
func New(cacheDir string, logger *logging.Logger) *Builder {
	return &Builder{
		cacheDir: cacheDir,
		logger:   logger,
		lists:    make(map[string]*FileList),
	}
}

// listFor returns the FileList for hubURL, creating it on first use.
func (b *Builder) listFor(hubURL string) *FileList {
	b.mu.Lock()
	defer b.mu.Unlock()
	fl, ok := b.lists[hubURL]
	if !ok {
		fl = &FileList{}
		b.lists[hubURL] = fl
	}
	return fl
}

// MarkAllDirty sets ForceXMLRefresh on every known FileList and advances
// the generation counter, called by the refresh pipeline's Swap step so
// that every hub's next request regenerates regardless of the freshness
// window and any regeneration already in flight is superseded.
func (b *Builder) MarkAllDirty() {
	b.nextGeneration()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, fl := range b.lists {
		fl.mu.Lock()
		fl.ForceXMLRefresh = true
		fl.XMLDirty = true
		fl.mu.Unlock()
	}
}

func (b *Builder) nextGeneration() int64 {
	return atomic.AddInt64(&b.generation, 1)
}

func (b *Builder) currentGeneration() int64 {
	return atomic.LoadInt64(&b.generation)
}

// GenerateXMLList implements generateXmlList (§4.5): returns the cached
// FileList if it is fresh, otherwise serializes roots to XML, compresses
// the result, writes it to disk under a new filename, and updates the
// record atomically. Only one regeneration runs per FileList at a time;
// concurrent callers block on the FileList's own mutex.
func (b *Builder) GenerateXMLList(roots []*tree.Directory, hubURL string, forced bool) (FileList, error) {
	fl := b.listFor(hubURL)

	fl.mu.Lock()
	defer fl.mu.Unlock()

	if !fl.XMLDirty && !fl.ForceXMLRefresh && !forced && time.Since(fl.LastXMLUpdate) < freshnessWindow {
		return fl.snapshot(), nil
	}

	generation := b.nextGeneration()
	gw := newGenerationWriter(generation, b.currentGeneration)

	doc := buildFullListing(roots, hubURL, generatorName)
	if err := encodeListing(doc, gw); err != nil {
		return FileList{}, errors.Wrap(err, "listing generation superseded before serialization completed")
	}
	xmlBytes := gw.buf

	compressed, err := compressBytes(xmlBytes)
	if err != nil {
		return FileList{}, errors.Wrap(err, "unable to compress listing")
	}

	fileName := fmt.Sprintf("files-%s-%d.xml.flate", hubKey(hubURL), generation)
	path, err := catalogio.WriteAtomic(b.cacheDir, fileName, "files-*.flate.tmp", compressed)
	if err != nil {
		return FileList{}, errors.Wrap(err, "unable to persist compressed listing")
	}

	xmlDigest := truncatedDigest(xmlBytes)
	bzDigest := truncatedDigest(compressed)

	previous := fl.BzXMLFile
	fl.ListN = generation
	fl.XMLLength = uint64(len(xmlBytes))
	fl.XMLTTH = xmlDigest
	fl.BzXMLLength = uint64(len(compressed))
	fl.BzXMLTTH = bzDigest
	fl.BzXMLFile = path
	fl.LastXMLUpdate = time.Now()
	fl.XMLDirty = false
	fl.ForceXMLRefresh = false

	if previous != "" && previous != path {
		removeStale(previous, b.logger)
	}

	return fl.snapshot(), nil
}

// GeneratePartialList implements generatePartialList (§4.5): an on-the-fly
// XML fragment rooted at every directory reachable at the given virtual
// name, spanning aliased roots (§8 scenario b).
func (b *Builder) GeneratePartialList(dirs []*tree.Directory, virtualName string, recurse bool) ([]byte, error) {
	doc := buildFragmentListing(dirs, virtualName, recurse, generatorName)
	return marshalListing(doc)
}

// GenerateTTHList implements generateTTHList (§4.5): a newline-delimited
// TTH listing for the same subtree selection as GeneratePartialList.
func (b *Builder) GenerateTTHList(dirs []*tree.Directory, recurse bool) []byte {
	return tthListLines(dirs, recurse)
}

func compressBytes(data []byte) ([]byte, error) {
	var buf sizeTrackingBuffer
	w := compression.NewCompressingWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// sizeTrackingBuffer is the minimal io.Writer sink compression.NewCompressingWriter
// needs; it is not reused elsewhere so it is kept private to this file.
type sizeTrackingBuffer struct {
	data []byte
}

func (b *sizeTrackingBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// truncatedDigest derives a tth.Hash-shaped content fingerprint for a
// generated artifact using sha256 truncated to tth.Size bytes. This is
// deliberately not a Tiger Tree Hash: TTH computation over file content is
// supplied externally by the refresh pipeline's pluggable hasher, and no
// Tiger digest implementation exists in this module. Reusing tth.Hash here
// is only for its fixed-width, comparable representation.
func truncatedDigest(data []byte) tth.Hash {
	sum := sha256.Sum256(data)
	h, _ := tth.FromBytes(sum[:tth.Size])
	return h
}

func hubKey(hubURL string) string {
	if hubURL == "" {
		return "all"
	}
	sum := sha256.Sum256([]byte(hubURL))
	return fmt.Sprintf("%x", sum[:8])
}

func removeStale(path string, logger *logging.Logger) {
	if err := os.Remove(path); err != nil && logger != nil {
		logger.Debugf("unable to remove stale listing artifact %s: %v", path, err)
	}
}
