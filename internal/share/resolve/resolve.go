// Package resolve implements the Resolver: virtual-path, TTH, and
// real-path resolution subject to per-peer hub exclusion and temp-share
// precedence (§4.7).
package resolve

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/hubshare/shareindex/internal/share/index"
	"github.com/hubshare/shareindex/internal/share/tempshare"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
)

// Errors returned by resolution, named to match the contract in §4.7.
var (
	ErrNoAccess      = errors.New("peer is not a member of any sharing group")
	ErrFileNotFound  = errors.New("file not found")
	ErrExcludedByHub = errors.New("root is excluded for this peer's hub")
	// ErrHashInProgress is returned in place of a file's TTH or real path
	// when the file has been scanned but its digest hasn't arrived yet
	// (tree.File.Hashed == false, §4.6's pending state).
	ErrHashInProgress = errors.New("file hash is still being computed")
)

// Peer identifies the requester for access-control and temp-share lookup
// purposes: a CID for an NMDC-style session and/or a hub URL for ADC-style
// requests.
type Peer struct {
	SessionID string
	HubURL    string
}

// Authorizer decides whether a peer belongs to any sharing group at all,
// independent of per-root hub exclusion. A nil Authorizer authorizes every
// peer, which is appropriate for a single-hub deployment with no group
// concept.
type Authorizer interface {
	Authorized(peer Peer) bool
}

// Resolver implements the virtual ⇄ real ⇄ TTH lookups described in §4.7.
// Like package search, it performs no locking of its own — callers hold
// the catalog's shared read lock for the duration of a call.
type Resolver struct {
	index      *index.Set
	tempShares *tempshare.Table
	authorizer Authorizer
}

// New creates a resolver bound to the given index and temp-share table.
// authorizer may be nil to allow every peer.
func New(idx *index.Set, tempShares *tempshare.Table, authorizer Authorizer) *Resolver {
	return &Resolver{index: idx, tempShares: tempShares, authorizer: authorizer}
}

func (r *Resolver) authorized(peer Peer) bool {
	return r.authorizer == nil || r.authorizer.Authorized(peer)
}

// ToVirtual finds any file with the given TTH not excluded for peer's hub,
// returning its virtualName-rooted ADC path.
func (r *Resolver) ToVirtual(h tth.Hash, peer Peer) (string, error) {
	if !r.authorized(peer) {
		return "", ErrNoAccess
	}
	for _, f := range r.index.LookupTTH(h) {
		root := f.Parent().RootOf()
		if root != nil && root.IsHubExcluded(peer.HubURL) {
			continue
		}
		return virtualPathOf(f), nil
	}
	return "", ErrFileNotFound
}

// ToReal resolves a peer-supplied path to a real filesystem path. It
// accepts ADC-style paths ("/virtualName/sub/.../file") and bare TTH
// shorthand ("TTH/<base32>"). For TTH shorthand, temp shares are consulted
// first, keyed by sessionId for CID-scoped grants or hubURL for hub-scoped
// ones; ADC-style paths resolve through the main index only.
func (r *Resolver) ToReal(virtualFile string, inSharingHub bool, peer Peer, sessionID string) (string, error) {
	path, _, err := r.ToRealWithSize(virtualFile, inSharingHub, peer, sessionID)
	return path, err
}

// ToRealWithSize is ToReal but also returns the resolved file's size from
// the same index probe, avoiding a second lookup.
func (r *Resolver) ToRealWithSize(virtualFile string, inSharingHub bool, peer Peer, sessionID string) (string, uint64, error) {
	if !r.authorized(peer) {
		return "", 0, ErrNoAccess
	}

	if h, ok := parseTTHShorthand(virtualFile); ok {
		if entry, ok := r.tempShareLookup(h, sessionID, peer.HubURL); ok {
			return entry.Path, entry.Size, nil
		}
		for _, f := range r.index.LookupTTH(h) {
			root := f.Parent().RootOf()
			if root != nil && inSharingHub && root.IsHubExcluded(peer.HubURL) {
				return "", 0, ErrExcludedByHub
			}
			return realPathOf(f), f.Size, nil
		}
		return "", 0, ErrFileNotFound
	}

	f, d, err := r.resolveADCPath(virtualFile)
	if err != nil {
		return "", 0, err
	}
	if d != nil {
		root := d.RootOf()
		if inSharingHub && root.IsHubExcluded(peer.HubURL) {
			return "", 0, ErrExcludedByHub
		}
		return realPathOfDir(d), d.Size, nil
	}

	if !f.Hashed {
		return "", 0, ErrHashInProgress
	}

	root := f.Parent().RootOf()
	if inSharingHub && root.IsHubExcluded(peer.HubURL) {
		return "", 0, ErrExcludedByHub
	}
	return realPathOf(f), f.Size, nil
}

func (r *Resolver) tempShareLookup(h tth.Hash, sessionID, hubURL string) (tempshare.Entry, bool) {
	if r.tempShares == nil {
		return tempshare.Entry{}, false
	}
	if sessionID != "" {
		if entry, ok := r.tempShares.Lookup(h, sessionID); ok {
			return entry, true
		}
	}
	if hubURL != "" {
		if entry, ok := r.tempShares.Lookup(h, hubURL); ok {
			return entry, true
		}
	}
	return tempshare.Entry{}, false
}

// GetTTH resolves a virtual path to its TTH (files only).
func (r *Resolver) GetTTH(virtualFile string, peer Peer) (tth.Hash, error) {
	if !r.authorized(peer) {
		return tth.Hash{}, ErrNoAccess
	}
	f, d, err := r.resolveADCPath(virtualFile)
	if err != nil {
		return tth.Hash{}, err
	}
	if d != nil {
		return tth.Hash{}, ErrFileNotFound
	}
	if !f.Hashed {
		return tth.Hash{}, ErrHashInProgress
	}
	return f.TTH, nil
}

// GetRealPath resolves a TTH to a single real path, per §4.7.
func (r *Resolver) GetRealPath(h tth.Hash, peer Peer) (string, error) {
	if !r.authorized(peer) {
		return "", ErrNoAccess
	}
	for _, f := range r.index.LookupTTH(h) {
		root := f.Parent().RootOf()
		if root != nil && root.IsHubExcluded(peer.HubURL) {
			continue
		}
		return realPathOf(f), nil
	}
	return "", ErrFileNotFound
}

// GetRealPaths resolves an ADC virtual path (file or directory) to every
// real path it corresponds to, spanning aliased roots.
func (r *Resolver) GetRealPaths(virtualPath string, peer Peer) ([]string, error) {
	if !r.authorized(peer) {
		return nil, ErrNoAccess
	}

	segments := splitVirtualPath(virtualPath)
	if len(segments) == 0 {
		return nil, ErrFileNotFound
	}

	var results []string
	for _, root := range r.index.LookupVirtualName(segments[0]) {
		if root.RootOf().IsHubExcluded(peer.HubURL) {
			continue
		}
		d, f, ok := descend(root, segments[1:])
		if !ok {
			continue
		}
		if f != nil {
			results = append(results, realPathOf(f))
		} else {
			results = append(results, realPathOfDir(d))
		}
	}
	if len(results) == 0 {
		return nil, ErrFileNotFound
	}
	return results, nil
}

// resolveADCPath resolves a single ADC-style virtual path to exactly one
// file or directory (the first aliased root that matches), returning
// whichever of f/d is non-nil.
func (r *Resolver) resolveADCPath(virtualFile string) (f *tree.File, d *tree.Directory, err error) {
	segments := splitVirtualPath(virtualFile)
	if len(segments) == 0 {
		return nil, nil, ErrFileNotFound
	}
	for _, root := range r.index.LookupVirtualName(segments[0]) {
		if d, f, ok := descend(root, segments[1:]); ok {
			return f, d, nil
		}
	}
	return nil, nil, ErrFileNotFound
}

// descend walks segments under root, returning the matched directory or
// file. Exactly one of the two returns is non-nil on success.
func descend(root *tree.Directory, segments []string) (*tree.Directory, *tree.File, bool) {
	cur := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			if f, ok := cur.FindFile(seg); ok {
				return nil, f, true
			}
		}
		child, ok := cur.FindChild(seg)
		if !ok {
			return nil, nil, false
		}
		cur = child
	}
	return cur, nil, true
}

func splitVirtualPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseTTHShorthand(path string) (tth.Hash, bool) {
	trimmed := strings.Trim(path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "TTH") {
		return tth.Hash{}, false
	}
	h, err := tth.Parse(parts[1])
	if err != nil {
		return tth.Hash{}, false
	}
	return h, true
}

func virtualPathOf(f *tree.File) string {
	var parts []string
	for cur := f.Parent(); cur != nil; cur = cur.Parent() {
		parts = append([]string{cur.Name}, parts...)
	}
	parts = append(parts, f.Name)
	return "/" + strings.Join(parts, "/")
}

func realPathOf(f *tree.File) string {
	root := f.Parent().RootOf()
	var parts []string
	for cur := f.Parent(); cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		parts = append([]string{cur.Name}, parts...)
	}
	parts = append(parts, f.Name)
	if root == nil {
		return strings.Join(parts, "/")
	}
	return root.RealPath + "/" + strings.Join(parts, "/")
}

func realPathOfDir(d *tree.Directory) string {
	root := d.RootOf()
	var parts []string
	for cur := d; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		parts = append([]string{cur.Name}, parts...)
	}
	if root == nil {
		return strings.Join(parts, "/")
	}
	if len(parts) == 0 {
		return root.RealPath
	}
	return root.RealPath + "/" + strings.Join(parts, "/")
}
