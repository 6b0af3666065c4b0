// Package tree implements the in-memory hierarchical catalog of shared
// roots, directories, and files. It provides the DirectoryTree contract:
// insertion, case-insensitive lookup, and deterministic depth-first
// traversal. Types here are not internally synchronized — callers (the
// share facade) are expected to hold the catalog-wide lock for the
// duration of any mutation or traversal, per the single non-recursive
// reader/writer discipline described in the package's design notes.
package tree

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hubshare/shareindex/internal/tth"
)

// FileTypeMask is a bitmask over broad file-type categories, aggregated
// bottom-up from files to their ancestor directories so that a search can
// prune whole subtrees that cannot contain a matching category.
type FileTypeMask uint32

// Category bits recognized by FileTypeMask. Names mirror the coarse
// categories used by hub-protocol ADC search extensions.
const (
	FileTypeAny FileTypeMask = 1 << iota
	FileTypeAudio
	FileTypeCompressed
	FileTypeDocument
	FileTypeExecutable
	FileTypeImage
	FileTypeVideo
)

// ErrDuplicateName is returned by InsertFile/InsertDirectory when a
// case-folded sibling with the requested name already exists.
var ErrDuplicateName = errors.New("duplicate name")

// File is a leaf entity in the tree: a single indexed regular file.
type File struct {
	Name     string
	Size     uint64
	TTH      tth.Hash
	Category FileTypeMask
	Hashed   bool
	parent   *Directory
}

// Parent returns the directory containing f.
func (f *File) Parent() *Directory { return f.parent }

// SetHash installs h as f's content digest and registers f in the owning
// root's RootIndex, completing an asynchronous hash started with a zero
// hash at insertion time (§4.6's onFileHashed). It is a no-op if f is
// already hashed. The caller is responsible for holding the catalog's
// exclusive lock and for propagating the change to any secondary index
// built on top of the tree.
func (f *File) SetHash(h tth.Hash) {
	if f.Hashed {
		return
	}
	f.TTH = h
	f.Hashed = !h.IsZero()
	if !f.Hashed {
		return
	}
	if root := f.parent.RootOf(); root != nil {
		root.tthIndex[h] = append(root.tthIndex[h], f)
	}
}

// Root holds the per-root fields attached to the Directory standing at the
// top of a shared subtree: the configured real path and the RootIndex used
// for TTH resolution scoped to this root alone.
type Root struct {
	// RealPath is the canonical absolute filesystem path backing this root.
	RealPath string
	// VirtualName is the label exposed to peers. Multiple roots may alias
	// the same virtual name.
	VirtualName string
	// ExcludedHubs is the set of hub URLs for which this root is hidden.
	ExcludedHubs map[string]struct{}
	// Incoming marks this root as a hot path eligible for expedited,
	// debounced refresh on filesystem notification.
	Incoming bool
	// tthIndex is the per-root TTH multimap (RootIndex.tthIndex).
	tthIndex map[tth.Hash][]*File
}

// IsHubExcluded reports whether hub is in this root's excluded set.
func (r *Root) IsHubExcluded(hub string) bool {
	if r == nil || r.ExcludedHubs == nil {
		return false
	}
	_, excluded := r.ExcludedHubs[hub]
	return excluded
}

// Files returns every file indexed under the given TTH within this root.
func (r *Root) Files(h tth.Hash) []*File {
	return r.tthIndex[h]
}

// Directory is an in-tree node: either a root directory (Root != nil) or
// an interior/leaf directory.
type Directory struct {
	Name          string
	LastWriteTime int64 // Unix nanoseconds.
	FileTypes     FileTypeMask
	Size          uint64

	children map[string]*Directory // keyed by case-folded name
	files    map[string]*File      // keyed by case-folded name

	parent *Directory
	// Root is non-nil only for the Directory standing at the root of a
	// shared subtree; interior nodes resolve it by walking Parent().
	Root *Root
}

// NewRoot constructs a new root Directory with an empty RootIndex.
func NewRoot(realPath, virtualName string) *Directory {
	return &Directory{
		Name: virtualName,
		Root: &Root{
			RealPath:     realPath,
			VirtualName:  virtualName,
			ExcludedHubs: make(map[string]struct{}),
			tthIndex:     make(map[tth.Hash][]*File),
		},
	}
}

// Parent returns the directory's parent, or nil if d is a root directory.
func (d *Directory) Parent() *Directory { return d.parent }

// RootOf walks the parent chain to find the enclosing Root. Every
// directory belongs to exactly one root, per the tree's ownership
// invariant.
func (d *Directory) RootOf() *Root {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Root != nil {
			return cur.Root
		}
	}
	return nil
}

// foldName produces the case-folded form used for sibling-uniqueness
// comparisons and map keys. Names are normalized to NFC first, so a
// decomposed form reported by one filesystem (HFS+ notably decomposes
// accented characters) folds to the same key as a precomposed form
// reported by another.
func foldName(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// FindChild performs a case-insensitive child directory lookup.
func (d *Directory) FindChild(name string) (*Directory, bool) {
	child, ok := d.children[foldName(name)]
	return child, ok
}

// FindFile performs a case-insensitive file lookup.
func (d *Directory) FindFile(name string) (*File, bool) {
	f, ok := d.files[foldName(name)]
	return f, ok
}

// InsertDirectory creates and links a new child directory. It fails with
// ErrDuplicateName if a case-folded sibling (directory or file) already
// exists.
func (d *Directory) InsertDirectory(name string, lastWriteTime int64) (*Directory, error) {
	key := foldName(name)
	if _, exists := d.children[key]; exists {
		return nil, ErrDuplicateName
	}
	if _, exists := d.files[key]; exists {
		return nil, ErrDuplicateName
	}
	if d.children == nil {
		d.children = make(map[string]*Directory)
	}
	child := &Directory{
		Name:          name,
		LastWriteTime: lastWriteTime,
		parent:        d,
	}
	d.children[key] = child
	return child, nil
}

// InsertFile creates and links a new file, updating ancestor size and
// FileTypes aggregates. It fails with ErrDuplicateName if a case-folded
// sibling (directory or file) already exists.
func (d *Directory) InsertFile(name string, size uint64, h tth.Hash, category FileTypeMask) (*File, error) {
	key := foldName(name)
	if _, exists := d.files[key]; exists {
		return nil, ErrDuplicateName
	}
	if _, exists := d.children[key]; exists {
		return nil, ErrDuplicateName
	}
	if d.files == nil {
		d.files = make(map[string]*File)
	}
	f := &File{
		Name:     name,
		Size:     size,
		TTH:      h,
		Category: category,
		Hashed:   !h.IsZero(),
		parent:   d,
	}
	d.files[key] = f

	root := d.RootOf()
	for cur := d; cur != nil; cur = cur.parent {
		cur.Size += size
		cur.FileTypes |= category
	}
	if root != nil && f.Hashed {
		root.tthIndex[h] = append(root.tthIndex[h], f)
	}
	return f, nil
}

// RemoveFile unlinks a file by name, correcting ancestor size and
// (conservatively) leaving FileTypes untouched — a stale type bit in an
// ancestor only risks an extra, harmless tree-walk descent during search,
// never a missed match, so it is corrected lazily on the next full
// refresh rather than requiring a re-scan of remaining siblings here.
func (d *Directory) RemoveFile(name string) {
	key := foldName(name)
	f, ok := d.files[key]
	if !ok {
		return
	}
	delete(d.files, key)

	if root := d.RootOf(); root != nil && f.Hashed {
		entries := root.tthIndex[f.TTH]
		for i, candidate := range entries {
			if candidate == f {
				root.tthIndex[f.TTH] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		if len(root.tthIndex[f.TTH]) == 0 {
			delete(root.tthIndex, f.TTH)
		}
	}

	for cur := d; cur != nil; cur = cur.parent {
		cur.Size -= f.Size
	}
}

// SortedChildNames returns child directory names ordered ascending by
// case-folded comparison, matching the deterministic walk order used by
// Walk.
func (d *Directory) SortedChildNames() []string {
	names := make([]string, 0, len(d.children))
	for _, child := range d.children {
		names = append(names, child.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return foldName(names[i]) < foldName(names[j])
	})
	return names
}

// SortedFileNames returns file names ordered ascending by case-folded
// comparison.
func (d *Directory) SortedFileNames() []string {
	names := make([]string, 0, len(d.files))
	for _, f := range d.files {
		names = append(names, f.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return foldName(names[i]) < foldName(names[j])
	})
	return names
}

// Children returns the sorted child directories.
func (d *Directory) Children() []*Directory {
	names := d.SortedChildNames()
	result := make([]*Directory, len(names))
	for i, name := range names {
		result[i] = d.children[foldName(name)]
	}
	return result
}

// Files returns the sorted files.
func (d *Directory) Files() []*File {
	names := d.SortedFileNames()
	result := make([]*File, len(names))
	for i, name := range names {
		result[i] = d.files[foldName(name)]
	}
	return result
}

// Visitor is invoked once per tree node during a walk, receiving the
// root-relative path of the node (empty for the root directory itself).
type Visitor struct {
	Directory func(path string, d *Directory)
	File      func(path string, f *File)
}

// Walk performs a deterministic depth-first traversal of the subtree
// rooted at d: it visits d itself, then d's files, then each child
// directory's subtree, with files and child directories each taken in
// ascending case-folded name order. Files come before child directories.
func Walk(d *Directory, path string, visitor Visitor) {
	if visitor.Directory != nil {
		visitor.Directory(path, d)
	}
	for _, f := range d.Files() {
		if visitor.File != nil {
			visitor.File(pathJoin(path, f.Name), f)
		}
	}
	for _, child := range d.Children() {
		Walk(child, pathJoin(path, child.Name), visitor)
	}
}

// Count returns the total number of directories and files in the subtree
// rooted at d, including d itself.
func Count(d *Directory) (directories, files uint64) {
	directories, files = 1, uint64(len(d.files))
	for _, child := range d.children {
		childDirs, childFiles := Count(child)
		directories += childDirs
		files += childFiles
	}
	return
}

// EnsureValid checks the structural invariants of the subtree rooted at d:
// each directory's size equals the sum of its descendant files' sizes, its
// FileTypes includes every descendant file's category bit (extra bits left
// behind by RemoveFile are accepted), and no nil entries are present.
func (d *Directory) EnsureValid() error {
	var size uint64
	var types FileTypeMask
	for key, f := range d.files {
		if f == nil {
			return errors.New("nil file entry detected")
		}
		if foldName(f.Name) != key {
			return errors.New("file indexed under mismatched case-folded key")
		}
		size += f.Size
		types |= f.Category
	}
	for key, child := range d.children {
		if child == nil {
			return errors.New("nil child directory detected")
		}
		if foldName(child.Name) != key {
			return errors.New("directory indexed under mismatched case-folded key")
		}
		if err := child.EnsureValid(); err != nil {
			return err
		}
		size += child.Size
		types |= child.FileTypes
	}
	if size != d.Size {
		return errors.New("directory size does not match sum of subtree file sizes")
	}
	if types&^d.FileTypes != 0 {
		return errors.New("directory FileTypes is missing a descendant file's category")
	}
	return nil
}
