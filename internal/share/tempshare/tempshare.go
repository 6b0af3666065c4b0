// Package tempshare implements TempShareTable: a short-lived multimap from
// TTH to on-disk files granted to a single peer or hub outside the normal
// share roots (§4.8), such as a file offered ad hoc during a chat session.
package tempshare

import (
	"sync"

	"github.com/hubshare/shareindex/internal/tth"
)

// Entry is a single temporary grant.
type Entry struct {
	// Key identifies who the grant is scoped to: a peer CID for an
	// NMDC-style session, or a hub URL for an ADC-style ranged request.
	Key  string
	Path string
	Size uint64
}

// Table holds temporary shares, guarded by its own mutex independent of the
// main tree lock (§5) so that temp-share churn never contends with reads
// or refreshes of the main catalog.
type Table struct {
	mu      sync.Mutex
	entries map[tth.Hash][]Entry
}

// New creates an empty table.
func New() *Table {
	return &Table{entries: make(map[tth.Hash][]Entry)}
}

// Add registers a temporary share.
func (t *Table) Add(h tth.Hash, key, path string, size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[h] = append(t.entries[h], Entry{Key: key, Path: path, Size: size})
}

// Remove deletes every entry for h scoped to key. It returns the number of
// entries removed.
func (t *Table) Remove(h tth.Hash, key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.entries[h]
	if !ok {
		return 0
	}
	kept := existing[:0]
	removed := 0
	for _, e := range existing {
		if e.Key == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(t.entries, h)
	} else {
		t.entries[h] = kept
	}
	return removed
}

// Lookup returns the temp-share entry for h scoped to key, if any. Callers
// fall through to the main Resolver on a miss (§4.7).
func (t *Table) Lookup(h tth.Hash, key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries[h] {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}
