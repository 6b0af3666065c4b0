package share

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hubshare/shareindex/internal/housekeeping"
	"github.com/hubshare/shareindex/internal/identifier"
	"github.com/hubshare/shareindex/internal/logging"
	"github.com/hubshare/shareindex/internal/share/bloom"
	"github.com/hubshare/shareindex/internal/share/index"
	"github.com/hubshare/shareindex/internal/share/listing"
	"github.com/hubshare/shareindex/internal/share/refresh"
	"github.com/hubshare/shareindex/internal/share/resolve"
	"github.com/hubshare/shareindex/internal/share/search"
	"github.com/hubshare/shareindex/internal/share/tempshare"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/state"
	"github.com/hubshare/shareindex/internal/tth"
)

// ErrDuplicateVirtualName is returned by AddDirectory when the requested
// real path is already configured as a root. Despite the name (kept for
// parity with the hub-protocol error-kind taxonomy, §7), the check is
// keyed on RealPath rather than VirtualName: multiple roots may legally
// alias the same virtual name (§1's scenario b), but two roots backed by
// the same real path would violate the invariant that every file is
// reachable from exactly one root.
var ErrDuplicateVirtualName = errors.New("a root already exists at this real path")

// ErrPathNotFound is returned by RemoveDirectory when the given real path
// names no configured root.
var ErrPathNotFound = refresh.ErrPathNotFound

// minuteTick is the interval at which the background worker sweeps
// per-hub listings and saves the catalog (§4.9).
const minuteTick = time.Minute

// bloomBitsPerEntry is the number of Bloom filter bits allocated per
// indexed directory/file entry when the filter is resized at swap time,
// chosen to keep the false-positive rate low without resizing on every
// refresh of an unchanged tree.
const bloomBitsPerEntry = 24

// minimumBloomBits is the floor used for an empty or newly started
// catalog, so that the very first searches still have a usably sized
// filter before anything has been indexed.
const minimumBloomBits = 1 << 16

// Config describes how a Coordinator should be constructed.
type Config struct {
	// CacheDir holds the persisted catalog and per-hub listing artifacts.
	CacheDir string
	// Roots are the share roots to scan, in the order they should be
	// scanned.
	Roots []refresh.RootConfig
	// Hasher computes a file's TTH. Required.
	Hasher refresh.Hasher
	// Authorizer gates access to the whole index by peer, independent of
	// per-root hub exclusion. May be nil to allow every peer.
	Authorizer resolve.Authorizer
	// ScanRateLimit caps the number of filesystem entries walked per
	// second during a refresh. Zero disables throttling.
	ScanRateLimit int
	// ReleaseNamePattern, if non-empty, is a regular expression matched
	// against every directory name encountered during a scan; matching
	// names are tracked in a sorted case-folded list exposed via
	// IsReleaseName (§4.2).
	ReleaseNamePattern string
	// Logger receives diagnostic output. Defaults to logging.RootLogger.
	Logger *logging.Logger
}

// Coordinator is the root facade over the share index: it owns the live
// directory trees, their derived indices, and every subsystem built on
// top of them, and sequences startup, periodic housekeeping, and shutdown
// (§4.9).
type Coordinator struct {
	cacheDir string
	logger   *logging.Logger

	mu     sync.RWMutex
	roots  []*tree.Directory
	idx    *index.Set
	engine *search.Engine

	tempShares   *tempshare.Table
	resolver     *resolve.Resolver
	listings     *listing.Builder
	pipeline     *refresh.Pipeline
	tracker      *state.Tracker
	releaseNames *tree.ReleaseNameMatcher

	keeper *housekeeping.CacheFS

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New constructs a Coordinator but does not yet scan anything; call Start
// to bring the index online.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.RootLogger
	}

	idx := index.New()
	tempShares := tempshare.New()
	tracker := state.NewTracker()

	releaseNames, err := tree.NewReleaseNameMatcher(cfg.ReleaseNamePattern)
	if err != nil {
		logger.Warn(err)
		releaseNames, _ = tree.NewReleaseNameMatcher("")
	}

	c := &Coordinator{
		cacheDir:     cfg.CacheDir,
		logger:       logger,
		idx:          idx,
		engine:       search.New(bloom.New(minimumBloomBits, bloom.DefaultK), idx),
		tempShares:   tempShares,
		resolver:     resolve.New(idx, tempShares, cfg.Authorizer),
		listings:     listing.New(cfg.CacheDir, logger.Sublogger("listing")),
		tracker:      tracker,
		releaseNames: releaseNames,
		keeper: &housekeeping.CacheFS{
			ListingCacheDir: cfg.CacheDir,
			Logger:          logger.Sublogger("housekeeping"),
		},
	}

	var limiter *rate.Limiter
	if cfg.ScanRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ScanRateLimit), cfg.ScanRateLimit)
	}

	c.pipeline = refresh.New(cfg.Roots, cfg.Hasher, c.swap, c.onFileHashed, releaseNames, limiter, tracker, logger.Sublogger("refresh"))

	return c
}

// onFileHashed installs a digest that arrived asynchronously from the
// Hasher, after the scan that inserted the file pending has already
// returned, and propagates it to the TTH index and cached listings
// (§4.6's onFileHashed entry point).
func (c *Coordinator) onFileHashed(f *tree.File, h tth.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.SetHash(h)
	c.idx.IndexHashedFile(f)
	c.listings.MarkAllDirty()
	c.tracker.NotifyOfChange()
}

// IsReleaseName reports whether name matches the configured release-name
// pattern and has been observed during a scan (§4.2).
func (c *Coordinator) IsReleaseName(name string) bool {
	return c.releaseNames.Contains(name)
}

// swap is handed to the refresh pipeline as its SwapFunc: it splices the
// freshly scanned trees into the live state, rebuilds the index and Bloom
// filter, and marks every cached listing dirty (§4.6's Swap step).
func (c *Coordinator) swap(roots []*tree.Directory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roots = roots
	c.idx.Rebuild(roots)

	filter := bloom.New(bloomSize(roots), bloom.DefaultK)
	for _, root := range roots {
		tree.Walk(root, "", tree.Visitor{
			Directory: func(_ string, d *tree.Directory) { filter.AddName(d.Name) },
			File:      func(_ string, f *tree.File) { filter.AddName(f.Name) },
		})
	}

	c.engine = search.New(filter, c.idx)
	c.listings.MarkAllDirty()
}

// bloomSize picks a Bloom filter bit count proportional to the total
// number of directory and file entries across roots.
func bloomSize(roots []*tree.Directory) uint64 {
	var directories, files uint64
	for _, root := range roots {
		d, f := tree.Count(root)
		directories += d
		files += f
	}
	bits := (directories + files) * bloomBitsPerEntry
	if bits < minimumBloomBits {
		return minimumBloomBits
	}
	return bits
}

// Start loads the persisted catalog (if any), performs the startup
// refresh, starts incoming-root watchers, and launches the background
// housekeeping and minute-tick workers (§4.9).
func (c *Coordinator) Start(ctx context.Context) error {
	requestID, err := identifier.New(identifier.PrefixRequest)
	if err != nil {
		requestID = uuid.NewString()
	}
	startLogger := c.logger.Sublogger(requestID)

	caches, err := loadCatalog(c.cacheDir)
	if err != nil {
		startLogger.Warn(err)
		startLogger.Println("cached catalog is unreadable, forcing a full blocking refresh")
		caches = nil
	} else if caches == nil {
		startLogger.Println("no cached catalog found, forcing a full blocking refresh")
	} else {
		startLogger.Println("loaded cached catalog, reusing unchanged file digests")
	}
	for realPath, cache := range caches {
		c.pipeline.SeedCache(realPath, cache)
	}

	if err := c.pipeline.Refresh(ctx, refresh.Options{All: true, Blocking: true}); err != nil {
		return err
	}

	if err := c.pipeline.WatchIncoming(ctx); err != nil {
		startLogger.Warn(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		housekeeping.HousekeepRegularly(runCtx, c.logger.Sublogger("housekeeping"), c.keeper)
	}()
	go func() {
		defer c.wg.Done()
		c.backgroundWorker(runCtx)
	}()

	return nil
}

// backgroundWorker drives the minute-tick periodic listing regeneration
// and catalog save described in §4.9.
func (c *Coordinator) backgroundWorker(ctx context.Context) {
	ticker := time.NewTicker(minuteTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep regenerates the default listing (keeping its cache warm) and
// saves the catalog so a future restart can skip rehashing unchanged
// files.
func (c *Coordinator) sweep() {
	c.mu.RLock()
	_, err := c.listings.GenerateXMLList(c.roots, "", false)
	c.mu.RUnlock()
	if err != nil {
		c.logger.Warn(err)
	}

	if err := saveCatalog(c.cacheDir, c.pipelineRoots(), c.pipeline.Caches()); err != nil {
		c.logger.Warn(err)
	}
}

func (c *Coordinator) pipelineRoots() []refresh.RootConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	configs := make([]refresh.RootConfig, 0, len(c.roots))
	for _, root := range c.roots {
		configs = append(configs, refresh.RootConfig{
			RealPath:    root.Root.RealPath,
			VirtualName: root.Root.VirtualName,
		})
	}
	return configs
}

// Stop sequences shutdown: it halts the refresh thread's background
// watchers and the periodic worker, flushes a final catalog save, and
// releases the tracker (§4.9).
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	c.pipeline.StopWatching()
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := saveCatalog(c.cacheDir, c.pipelineRoots(), c.pipeline.Caches())
	c.tracker.Terminate()
	return err
}

// Refresh triggers a refresh cycle, delegating to the underlying
// RefreshPipeline.
func (c *Coordinator) Refresh(ctx context.Context, opts refresh.Options) error {
	return c.pipeline.Refresh(ctx, opts)
}

// AddDirectory registers a new share root, scans it, and swaps it into the
// live catalog alongside every existing root (§3's addDirectory). It
// returns ErrDuplicateVirtualName if realPath is already configured as a
// root.
func (c *Coordinator) AddDirectory(ctx context.Context, cfg refresh.RootConfig) error {
	if err := c.pipeline.AddRoot(ctx, cfg); err != nil {
		if errors.Is(err, refresh.ErrRootAlreadyExists) {
			return ErrDuplicateVirtualName
		}
		return err
	}
	return nil
}

// RemoveDirectory unregisters the root backed by realPath and swaps the
// remaining roots into the live catalog (§3's removeDirectory). It
// returns ErrPathNotFound if realPath names no configured root.
func (c *Coordinator) RemoveDirectory(realPath string) error {
	return c.pipeline.RemoveRoot(realPath)
}

// RenameDirectory changes the virtual name exposed for the root backed by
// realPath without rescanning it (§3's renameDirectory). It returns
// ErrPathNotFound if realPath names no configured root.
func (c *Coordinator) RenameDirectory(realPath, newVirtualName string) error {
	return c.pipeline.RenameRoot(realPath, newVirtualName)
}

// RefreshState reports the refresh pipeline's current lifecycle phase.
func (c *Coordinator) RefreshState() refresh.State {
	return c.pipeline.State()
}

// WaitForRefreshStateChange blocks until a refresh cycle has completed its
// notify phase since previousIndex, or until ctx is cancelled. Pass 0 to
// read the current phase without waiting. It returns the index observed,
// for use as previousIndex on the next call.
func (c *Coordinator) WaitForRefreshStateChange(ctx context.Context, previousIndex uint64) (uint64, refresh.State, error) {
	index, err := c.tracker.WaitForChange(ctx, previousIndex)
	return index, c.pipeline.State(), err
}

// Search executes a legacy string/type/size query against the live index.
func (c *Coordinator) Search(q search.LegacyQuery) []search.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.Search(q)
}

// SearchADC executes a structured ADC query against the live index.
func (c *Coordinator) SearchADC(q search.ADCQuery) []search.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.SearchADC(q)
}

// Resolver returns the coordinator's path/TTH resolver. Callers must not
// retain it across a refresh swap without re-fetching, since the index it
// wraps is rebuilt in place but concurrent mutation is guarded by the
// coordinator's own lock, not the resolver's.
func (c *Coordinator) Resolver() *resolve.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// TempShares returns the coordinator's temporary share table.
func (c *Coordinator) TempShares() *tempshare.Table {
	return c.tempShares
}

// FileList returns the cached (or freshly generated) full listing for the
// given hub, generating it if absent or stale.
func (c *Coordinator) FileList(hubURL string) (listing.FileList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listings.GenerateXMLList(c.roots, hubURL, false)
}

// PartialListing generates an on-the-fly XML fragment rooted at every
// aliased root registered under virtualName (§4.5's generatePartialList).
func (c *Coordinator) PartialListing(virtualName string, recurse bool) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dirs := c.idx.LookupVirtualName(virtualName)
	return c.listings.GeneratePartialList(dirs, virtualName, recurse)
}

// TTHListing generates a newline-delimited TTH listing for the same
// subtree selection as PartialListing (§4.5's generateTTHList).
func (c *Coordinator) TTHListing(virtualName string, recurse bool) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dirs := c.idx.LookupVirtualName(virtualName)
	return c.listings.GenerateTTHList(dirs, recurse)
}

// Stats summarizes the live catalog for diagnostic and CLI reporting.
type Stats struct {
	Roots       int
	Directories uint64
	Files       uint64
	TotalSize   uint64
	SearchHits  uint64
}

// Stats reports aggregate counters over the live catalog.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Roots: len(c.roots), SearchHits: c.engine.Hits()}
	for _, root := range c.roots {
		d, f := tree.Count(root)
		stats.Directories += d
		stats.Files += f
		stats.TotalSize += root.Size
	}
	return stats
}
