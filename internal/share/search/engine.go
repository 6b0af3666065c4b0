// Package search implements SearchEngine: legacy and ADC query execution
// against the directory tree, Bloom-prefiltered and pruned by per-directory
// type masks. Like package tree and package index, Engine itself performs
// no locking — callers hold the catalog-wide shared lock for the duration
// of Search/SearchADC.
package search

import (
	"strings"
	"sync/atomic"

	"github.com/hubshare/shareindex/internal/share/bloom"
	"github.com/hubshare/shareindex/internal/share/index"
	"github.com/hubshare/shareindex/internal/share/tree"
)

// Engine executes queries against a tree, using a shared Bloom filter as a
// fast-negative prefilter.
type Engine struct {
	bloom *bloom.Filter
	index *index.Set

	hits uint64
}

// New creates an engine bound to the given Bloom filter and index set. Both
// are expected to be rebuilt by the owning coordinator after every refresh
// swap; Engine only reads them.
func New(filter *bloom.Filter, idx *index.Set) *Engine {
	return &Engine{bloom: filter, index: idx}
}

// Hits returns the cumulative number of results ever served, for UI
// telemetry (addHits in §4.4).
func (e *Engine) Hits() uint64 {
	return atomic.LoadUint64(&e.hits)
}

func (e *Engine) addHits(n int) {
	atomic.AddUint64(&e.hits, uint64(n))
}

func categoryMatches(mask tree.FileTypeMask, category Category) bool {
	if category == 0 {
		return true
	}
	return mask&tree.FileTypeMask(category) != 0
}

func sizeInRange(size, min, max uint64) bool {
	if size < min {
		return false
	}
	if max != 0 && size > max {
		return false
	}
	return true
}

// Search executes a legacy string/type/size query (§4.4).
func (e *Engine) Search(q LegacyQuery) []Result {
	atoms := make([]string, len(q.Terms))
	for i, term := range q.Terms {
		atoms[i] = strings.ToLower(term)
	}

	for _, atom := range atoms {
		if !e.bloom.MightContainSubstring(atom) {
			return nil
		}
	}

	var results []Result
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 1<<31 - 1
	}

	for _, root := range e.index.Roots() {
		if root.Root.IsHubExcluded(q.HubURL) {
			continue
		}
		e.walkLegacy(root, root.Name, atoms, q, maxResults, &results)
		if len(results) >= maxResults {
			break
		}
	}

	e.addHits(len(results))
	return results
}

func (e *Engine) walkLegacy(d *tree.Directory, path string, atoms []string, q LegacyQuery, maxResults int, results *[]Result) {
	if len(*results) >= maxResults {
		return
	}
	if q.Category != 0 && !categoryMatches(d.FileTypes, q.Category) {
		return
	}

	for _, f := range d.Files() {
		if len(*results) >= maxResults {
			return
		}
		if !matchesAllSubstrings(strings.ToLower(f.Name), atoms) {
			continue
		}
		if !sizeInRange(f.Size, q.MinSize, q.MaxSize) {
			continue
		}
		if q.Category != 0 && f.Category&tree.FileTypeMask(q.Category) == 0 {
			continue
		}
		*results = append(*results, Result{
			VirtualPath: joinPath(path, f.Name),
			Size:        f.Size,
			TTH:         f.TTH,
			IsDirectory: false,
		})
	}

	for _, child := range d.Children() {
		e.walkLegacy(child, joinPath(path, child.Name), atoms, q, maxResults, results)
	}
}

func matchesAllSubstrings(name string, atoms []string) bool {
	for _, atom := range atoms {
		if !strings.Contains(name, atom) {
			return false
		}
	}
	return true
}

// SearchADC executes a structured ADC query (§4.4).
func (e *Engine) SearchADC(q ADCQuery) []Result {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 1<<31 - 1
	}

	if !q.TTH.IsZero() {
		var results []Result
		for _, f := range e.index.LookupTTH(q.TTH) {
			root := f.Parent().RootOf()
			if root != nil && root.IsHubExcluded(q.HubURL) {
				continue
			}
			results = append(results, Result{
				VirtualPath: realFilePath(f),
				Size:        f.Size,
				TTH:         f.TTH,
				IsDirectory: false,
			})
			if len(results) >= maxResults {
				break
			}
		}
		e.addHits(len(results))
		return results
	}

	include := lowerAll(q.Include)
	exclude := lowerAll(q.Exclude)

	var results []Result
	for _, root := range e.index.Roots() {
		if root.Root.IsHubExcluded(q.HubURL) {
			continue
		}
		e.walkADC(root, root.Name, include, exclude, q, maxResults, &results)
		if len(results) >= maxResults {
			break
		}
	}

	e.addHits(len(results))
	return results
}

func (e *Engine) walkADC(d *tree.Directory, path string, include, exclude []string, q ADCQuery, maxResults int, results *[]Result) {
	if len(*results) >= maxResults {
		return
	}

	name := strings.ToLower(d.Name)
	remainingInclude := remainingAtoms(include, name)
	if anyMatches(exclude, name) {
		return
	}

	if len(remainingInclude) == 0 {
		*results = append(*results, Result{
			VirtualPath: path,
			Size:        d.Size,
			IsDirectory: true,
		})
	}

	if !q.DirectoryOnly {
		for _, f := range d.Files() {
			if len(*results) >= maxResults {
				return
			}
			fileAtoms := remainingAtoms(remainingInclude, strings.ToLower(f.Name))
			if len(fileAtoms) != 0 {
				continue
			}
			if anyMatches(exclude, strings.ToLower(f.Name)) {
				continue
			}
			if !sizeInRange(f.Size, q.MinSize, q.MaxSize) {
				continue
			}
			if !extensionAllowed(f.Name, q.ExtensionWhitelist, q.ExtensionBlacklist) {
				continue
			}
			*results = append(*results, Result{
				VirtualPath: joinPath(path, f.Name),
				Size:        f.Size,
				TTH:         f.TTH,
				IsDirectory: false,
			})
		}
	}

	for _, child := range d.Children() {
		e.walkADC(child, joinPath(path, child.Name), remainingInclude, exclude, q, maxResults, results)
	}
}

// remainingAtoms returns the subset of atoms not already satisfied by name,
// so that a parent-directory match satisfies child files without
// re-checking (§4.4).
func remainingAtoms(atoms []string, name string) []string {
	var remaining []string
	for _, atom := range atoms {
		if !strings.Contains(name, atom) {
			remaining = append(remaining, atom)
		}
	}
	return remaining
}

func anyMatches(atoms []string, name string) bool {
	for _, atom := range atoms {
		if strings.Contains(name, atom) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = strings.ToLower(v)
	}
	return result
}

func extensionAllowed(name string, whitelist, blacklist []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(extOf(name), "."))
	for _, blocked := range blacklist {
		if ext == strings.ToLower(strings.TrimPrefix(blocked, ".")) {
			return false
		}
	}
	if len(whitelist) == 0 {
		return true
	}
	for _, allowed := range whitelist {
		if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

func extOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx != -1 {
		return name[idx:]
	}
	return ""
}

func joinPath(base, leaf string) string {
	if base == "" {
		return leaf
	}
	return base + "/" + leaf
}

func realFilePath(f *tree.File) string {
	var parts []string
	for cur := f.Parent(); cur != nil; cur = cur.Parent() {
		parts = append([]string{cur.Name}, parts...)
	}
	parts = append(parts, f.Name)
	path := ""
	for _, p := range parts {
		path = joinPath(path, p)
	}
	return path
}
