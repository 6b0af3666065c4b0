// Package refresh implements RefreshPipeline: the scan → swap → notify
// state machine that rebuilds the share index's directory trees from the
// filesystem (§4.6).
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hubshare/shareindex/internal/logging"
	"github.com/hubshare/shareindex/internal/parallelism"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/state"
	"github.com/hubshare/shareindex/internal/tth"
)

// State is a RefreshPipeline lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateSwap
	StateNotify
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateSwap:
		return "swap"
	case StateNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// ErrRefreshInProgress is returned by Refresh when a non-blocking request
// arrives while another refresh already holds the single in-progress slot
// (REFRESH_IN_PROGRESS, §4.6).
var ErrRefreshInProgress = errors.New("a refresh is already in progress")

// ErrPathNotFound is returned by Refresh when opts.Directory names a path
// that matches no configured root (REFRESH_PATH_NOT_FOUND, §6/§7), and by
// RemoveRoot when asked to remove an unknown root.
var ErrPathNotFound = errors.New("no configured root matches the given path")

// ErrRootAlreadyExists is returned by AddRoot when a root with the given
// real path is already configured.
var ErrRootAlreadyExists = errors.New("a root with this real path is already configured")

// Options mirrors the REFRESH_ALL/DIRECTORY/BLOCKING/UPDATE/INCOMING flag
// set described in §4.6.
type Options struct {
	// All refreshes every configured root.
	All bool
	// Directory restricts the refresh to the root whose RealPath matches,
	// ignored when All is set.
	Directory string
	// Blocking causes Refresh to wait for an in-progress refresh to finish
	// and then run anyway, instead of returning ErrRefreshInProgress.
	Blocking bool
	// Update indicates an incremental request (e.g. following a watched
	// filesystem event) rather than a user-initiated full refresh; it does
	// not currently change scan semantics but is threaded through for
	// telemetry and logging.
	Update bool
	// Incoming marks this refresh as triggered by the incoming-root
	// watcher rather than an explicit caller.
	Incoming bool
}

// RootConfig describes one configured share root.
type RootConfig struct {
	RealPath        string
	VirtualName     string
	ExcludedHubs    []string
	Incoming        bool
	ExcludePatterns []string
}

// SwapFunc receives the freshly-scanned provisional trees under the
// caller's exclusive lock and is responsible for splicing them into the
// live DirMap, rebuilding IndexSet and the Bloom filter, and marking
// listings dirty (§4.6's Swap step).
type SwapFunc func(roots []*tree.Directory)

// Pipeline orchestrates scanning every configured root in parallel,
// computing provisional trees, and handing them to a SwapFunc.
type Pipeline struct {
	logger       *logging.Logger
	hasher       Hasher
	swap         SwapFunc
	onFileHashed func(f *tree.File, h tth.Hash)
	releaseNames *tree.ReleaseNameMatcher
	limiter      *rate.Limiter
	tracker      *state.Tracker

	mu         sync.Mutex
	state      State
	inProgress bool
	roots      []RootConfig
	caches     map[string]*ScanCache
	// trees holds the last successfully scanned tree per root real path, so
	// a partial refresh (opts.Directory set, or an added/removed root) can
	// hand swap a complete root list rather than just the rescanned subset.
	trees map[string]*tree.Directory

	watchMu sync.Mutex
	watcher *watcher
}

// New creates a refresh pipeline over the given roots. limiter may be nil
// to disable walk throttling. onFileHashed and releaseNames may both be
// nil to disable their respective features.
func New(roots []RootConfig, hasher Hasher, swap SwapFunc, onFileHashed func(f *tree.File, h tth.Hash), releaseNames *tree.ReleaseNameMatcher, limiter *rate.Limiter, tracker *state.Tracker, logger *logging.Logger) *Pipeline {
	caches := make(map[string]*ScanCache, len(roots))
	for _, r := range roots {
		caches[r.RealPath] = NewScanCache()
	}
	return &Pipeline{
		logger:       logger,
		hasher:       hasher,
		swap:         swap,
		onFileHashed: onFileHashed,
		releaseNames: releaseNames,
		limiter:      limiter,
		tracker:      tracker,
		roots:        roots,
		caches:       caches,
		trees:        make(map[string]*tree.Directory, len(roots)),
	}
}

// SeedCache installs a previously persisted scan cache for realPath,
// ahead of the first Refresh call, so that an unchanged file is not
// rehashed merely because the process restarted (§4.9).
func (p *Pipeline) SeedCache(realPath string, cache *ScanCache) {
	if cache == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.caches[realPath] = cache
}

// Caches returns a shallow copy of the pipeline's current per-root scan
// caches, for catalog persistence (§4.9).
func (p *Pipeline) Caches() map[string]*ScanCache {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*ScanCache, len(p.caches))
	for k, v := range p.caches {
		out[k] = v
	}
	return out
}

// State returns the pipeline's current lifecycle phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Refresh runs the scan → swap → notify sequence for the roots selected by
// opts. Only one refresh may run at a time (REFRESH_IN_PROGRESS); a
// non-blocking call made while one is in flight returns
// ErrRefreshInProgress immediately, while a blocking call waits for the
// slot using a simple acquire-retry loop.
func (p *Pipeline) Refresh(ctx context.Context, opts Options) error {
	for {
		p.mu.Lock()
		if !p.inProgress {
			p.inProgress = true
			p.state = StateScanning
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()
		if !opts.Blocking {
			return ErrRefreshInProgress
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	defer func() {
		p.mu.Lock()
		p.inProgress = false
		p.state = StateIdle
		p.mu.Unlock()
	}()

	targets := p.selectRoots(opts)
	if len(targets) == 0 {
		if opts.Directory != "" {
			return ErrPathNotFound
		}
		return nil
	}

	provisional := make([]*tree.Directory, len(targets))
	newCaches := make([]*ScanCache, len(targets))

	work := scanWorkFunc(func(index, _ int) error {
		cfg := targets[index]
		root, cache, err := ScanRoot(ctx, cfg, p.caches[cfg.RealPath], p.hasher, p.limiter, p.releaseNames, p.onFileHashed)
		provisional[index] = root
		newCaches[index] = cache
		return err
	})

	arr := parallelism.NewWorkerArray(len(targets))
	defer arr.Terminate()
	scanErr := arr.Do(work)

	p.mu.Lock()
	for i, cfg := range targets {
		if newCaches[i] != nil {
			p.caches[cfg.RealPath] = newCaches[i]
		}
		if provisional[i] != nil {
			p.trees[cfg.RealPath] = provisional[i]
		}
	}
	p.mu.Unlock()

	if scanErr != nil {
		return errors.Wrap(scanErr, "scan failed")
	}

	p.mu.Lock()
	p.state = StateSwap
	merged := p.mergedTreesLocked()
	p.mu.Unlock()

	p.swap(merged)

	p.mu.Lock()
	p.state = StateNotify
	p.mu.Unlock()

	if p.tracker != nil {
		p.tracker.NotifyOfChange()
	}

	return nil
}

// mergedTreesLocked returns the last-scanned tree for every currently
// configured root, in configured order, omitting any root never
// successfully scanned yet. Callers must hold p.mu.
func (p *Pipeline) mergedTreesLocked() []*tree.Directory {
	merged := make([]*tree.Directory, 0, len(p.roots))
	for _, r := range p.roots {
		if t, ok := p.trees[r.RealPath]; ok {
			merged = append(merged, t)
		}
	}
	return merged
}

// AddRoot registers a new share root and scans it, swapping the merged
// result (the new root alongside every previously scanned root) into the
// live catalog. It returns ErrRootAlreadyExists if cfg.RealPath is already
// configured.
func (p *Pipeline) AddRoot(ctx context.Context, cfg RootConfig) error {
	p.mu.Lock()
	for _, r := range p.roots {
		if r.RealPath == cfg.RealPath {
			p.mu.Unlock()
			return ErrRootAlreadyExists
		}
	}
	p.roots = append(p.roots, cfg)
	p.caches[cfg.RealPath] = NewScanCache()
	p.mu.Unlock()

	if err := p.Refresh(ctx, Options{Directory: cfg.RealPath, Blocking: true}); err != nil {
		p.mu.Lock()
		p.roots = removeRootConfig(p.roots, cfg.RealPath)
		delete(p.caches, cfg.RealPath)
		p.mu.Unlock()
		return err
	}
	return nil
}

// RemoveRoot unregisters realPath and swaps the remaining roots' last
// known trees into the live catalog without rescanning them. It returns
// ErrPathNotFound if realPath isn't configured.
func (p *Pipeline) RemoveRoot(realPath string) error {
	p.mu.Lock()
	found := false
	for _, r := range p.roots {
		if r.RealPath == realPath {
			found = true
			break
		}
	}
	if !found {
		p.mu.Unlock()
		return ErrPathNotFound
	}

	p.roots = removeRootConfig(p.roots, realPath)
	delete(p.caches, realPath)
	delete(p.trees, realPath)
	merged := p.mergedTreesLocked()
	p.mu.Unlock()

	p.swap(merged)
	if p.tracker != nil {
		p.tracker.NotifyOfChange()
	}
	return nil
}

// RenameRoot updates the configured virtual name for the root backed by
// realPath and swaps the renamed tree into the live catalog, without
// rescanning (§3's renameDirectory). It returns ErrPathNotFound if
// realPath isn't configured.
func (p *Pipeline) RenameRoot(realPath, newVirtualName string) error {
	p.mu.Lock()
	index := -1
	for i, r := range p.roots {
		if r.RealPath == realPath {
			index = i
			break
		}
	}
	if index == -1 {
		p.mu.Unlock()
		return ErrPathNotFound
	}

	p.roots[index].VirtualName = newVirtualName
	if t, ok := p.trees[realPath]; ok && t.Root != nil {
		t.Root.VirtualName = newVirtualName
		t.Name = newVirtualName
	}
	merged := p.mergedTreesLocked()
	p.mu.Unlock()

	p.swap(merged)
	if p.tracker != nil {
		p.tracker.NotifyOfChange()
	}
	return nil
}

func removeRootConfig(roots []RootConfig, realPath string) []RootConfig {
	out := roots[:0]
	for _, r := range roots {
		if r.RealPath != realPath {
			out = append(out, r)
		}
	}
	return out
}

// selectRoots resolves opts against the configured root list.
func (p *Pipeline) selectRoots(opts Options) []RootConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if opts.All || opts.Directory == "" {
		return p.roots
	}
	for _, r := range p.roots {
		if r.RealPath == opts.Directory {
			return []RootConfig{r}
		}
	}
	return nil
}

// scanWorkFunc adapts a plain function to parallelism.Work.
type scanWorkFunc func(index, size int) error

func (f scanWorkFunc) Do(index, size int) error { return f(index, size) }
