// Package index implements IndexSet: the secondary indices rebuilt from the
// directory tree after every refresh swap. Like package tree, IndexSet is
// not internally synchronized — callers are expected to hold the
// catalog-wide lock for the duration of any rebuild, update, or lookup.
package index

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
)

// foldVirtualName normalizes a hub virtual-root name the same way
// package tree folds path segment names, so an alias registered with a
// decomposed Unicode form still matches a lookup using its precomposed
// form.
func foldVirtualName(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// Set holds the indices described in §4.3: a global TTH multimap spanning
// all roots, a case-insensitive virtual-name index, and a canonical
// real-path index.
type Set struct {
	tthIndex         *tth.ReverseLookupMap[[]*tree.File]
	virtualNameIndex map[string][]*tree.Directory
	realRootIndex    map[string]*tree.Directory
}

// New creates an empty index set.
func New() *Set {
	return &Set{
		tthIndex:         tth.NewReverseLookupMap[[]*tree.File](0),
		virtualNameIndex: make(map[string][]*tree.Directory),
		realRootIndex:    make(map[string]*tree.Directory),
	}
}

// Rebuild performs a single-pass traversal of every root, discarding any
// prior index contents. It is invoked under the exclusive lock at swap
// time (§4.3).
func (s *Set) Rebuild(roots []*tree.Directory) {
	s.tthIndex = tth.NewReverseLookupMap[[]*tree.File](0)
	s.virtualNameIndex = make(map[string][]*tree.Directory)
	s.realRootIndex = make(map[string]*tree.Directory)

	for _, root := range roots {
		s.indexRoot(root)
	}
}

// indexRoot registers a root directory's name-based indices and walks its
// subtree to populate the global TTH index.
func (s *Set) indexRoot(root *tree.Directory) {
	r := root.Root
	if r == nil {
		return
	}

	key := foldVirtualName(r.VirtualName)
	s.virtualNameIndex[key] = append(s.virtualNameIndex[key], root)
	s.realRootIndex[r.RealPath] = root

	tree.Walk(root, "", tree.Visitor{
		File: func(_ string, f *tree.File) {
			if !f.Hashed {
				return
			}
			existing, _ := s.tthIndex.Lookup(f.TTH)
			s.tthIndex.Insert(f.TTH, append(existing, f))
		},
	})
}

// Update re-indexes after root's subtree has changed: root takes the place
// of any root registered under the same real path (or is added), and every
// index is rebuilt from the resulting root set, so that no stale entry
// survives a file removed during refresh (§4.3).
func (s *Set) Update(root *tree.Directory) {
	if root.Root == nil {
		return
	}
	roots := s.Roots()
	replaced := false
	for i, existing := range roots {
		if existing.Root.RealPath == root.Root.RealPath {
			roots[i], replaced = root, true
		}
	}
	if !replaced {
		roots = append(roots, root)
	}
	s.Rebuild(roots)
}

// scrubRoot removes root's name-based entries and every global TTH entry
// whose file belongs to root, ahead of a re-index.
func (s *Set) scrubRoot(root *tree.Directory) {
	r := root.Root
	if r == nil {
		return
	}

	key := foldVirtualName(r.VirtualName)
	s.virtualNameIndex[key] = removeDirectory(s.virtualNameIndex[key], root)
	if len(s.virtualNameIndex[key]) == 0 {
		delete(s.virtualNameIndex, key)
	}
	delete(s.realRootIndex, r.RealPath)

	tree.Walk(root, "", tree.Visitor{
		File: func(_ string, f *tree.File) {
			if !f.Hashed {
				return
			}
			existing, ok := s.tthIndex.Lookup(f.TTH)
			if !ok {
				return
			}
			filtered := removeFile(existing, f)
			if len(filtered) == 0 {
				s.tthIndex.Delete(f.TTH)
			} else {
				s.tthIndex.Insert(f.TTH, filtered)
			}
		},
	})
}

func removeDirectory(list []*tree.Directory, target *tree.Directory) []*tree.Directory {
	result := list[:0]
	for _, d := range list {
		if d != target {
			result = append(result, d)
		}
	}
	return result
}

func removeFile(list []*tree.File, target *tree.File) []*tree.File {
	result := list[:0]
	for _, f := range list {
		if f != target {
			result = append(result, f)
		}
	}
	return result
}

// IndexHashedFile registers a single file's digest in the global TTH index
// after an asynchronous hash completion arrives (§4.6's onFileHashed), so
// the caller doesn't need a full Rebuild to make one freshly hashed file
// resolvable by TTH. It is a no-op if f isn't hashed or is already
// indexed.
func (s *Set) IndexHashedFile(f *tree.File) {
	if !f.Hashed {
		return
	}
	existing, _ := s.tthIndex.Lookup(f.TTH)
	for _, candidate := range existing {
		if candidate == f {
			return
		}
	}
	s.tthIndex.Insert(f.TTH, append(existing, f))
}

// LookupTTH returns every indexed file sharing the given TTH, across all
// roots.
func (s *Set) LookupTTH(h tth.Hash) []*tree.File {
	files, _ := s.tthIndex.Lookup(h)
	return files
}

// LookupVirtualName returns every root directory registered under the
// given virtual name (case-insensitive).
func (s *Set) LookupVirtualName(name string) []*tree.Directory {
	return s.virtualNameIndex[foldVirtualName(name)]
}

// LookupRealPath returns the root directory registered under the given
// canonical real path, if any.
func (s *Set) LookupRealPath(realPath string) (*tree.Directory, bool) {
	root, ok := s.realRootIndex[realPath]
	return root, ok
}

// Roots returns every registered root directory, ordered by real path.
func (s *Set) Roots() []*tree.Directory {
	roots := make([]*tree.Directory, 0, len(s.realRootIndex))
	for _, root := range s.realRootIndex {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Root.RealPath < roots[j].Root.RealPath
	})
	return roots
}
