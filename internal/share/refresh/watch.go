package refresh

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hubshare/shareindex/internal/state"
)

// incomingDebounceWindow is the coalescing window applied to filesystem
// notifications before they trigger a refresh, avoiding a refresh storm
// during a bulk copy into a watched root.
const incomingDebounceWindow = 2 * time.Second

// watcher bundles an fsnotify watcher with one debouncing Coalescer per
// watched root.
type watcher struct {
	fsw        *fsnotify.Watcher
	coalescers map[string]*state.Coalescer
	cancel     context.CancelFunc
}

// WatchIncoming starts an fsnotify watch on every configured root with
// Incoming set, debouncing bursts of events via a per-root Coalescer and
// triggering an incremental Refresh when the coalescing window elapses
// (§4.6's "incoming root" expedited-refresh path).
func (p *Pipeline) WatchIncoming(ctx context.Context) error {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()

	if p.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w := &watcher{fsw: fsw, coalescers: make(map[string]*state.Coalescer)}
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for _, root := range p.roots {
		if !root.Incoming {
			continue
		}
		if err := fsw.Add(root.RealPath); err != nil {
			if p.logger != nil {
				p.logger.Warn(err)
			}
			continue
		}
		coalescer := state.NewCoalescer(incomingDebounceWindow)
		w.coalescers[root.RealPath] = coalescer
		go p.watchRoot(watchCtx, root, coalescer)
	}

	p.watcher = w
	go w.drainEvents(watchCtx)

	return nil
}

// drainEvents strobes the per-root coalescer for every filesystem event
// fsnotify reports underneath a watched root.
func (w *watcher) drainEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			for rootPath, coalescer := range w.coalescers {
				if hasPrefix(event.Name, rootPath) {
					coalescer.Strobe()
					break
				}
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// watchRoot triggers an incremental refresh of root each time its
// coalescer fires.
func (p *Pipeline) watchRoot(ctx context.Context, root RootConfig, coalescer *state.Coalescer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-coalescer.Events():
			_ = p.Refresh(ctx, Options{Directory: root.RealPath, Update: true, Incoming: true})
		}
	}
}

// StopWatching terminates the incoming-root watcher, if running.
func (p *Pipeline) StopWatching() {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.watcher == nil {
		return
	}
	p.watcher.cancel()
	for _, c := range p.watcher.coalescers {
		c.Terminate()
	}
	p.watcher.fsw.Close()
	p.watcher = nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
