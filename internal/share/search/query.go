package search

import "github.com/hubshare/shareindex/internal/tth"

// LegacyQuery is the NMDC-style string/type/size search described in §4.4.
type LegacyQuery struct {
	// Terms are matched as substrings of a file's name (case-insensitive);
	// all terms must match.
	Terms []string
	// Category restricts matches to files (and the directories that can
	// reach them) carrying this type bit. Zero means unrestricted.
	Category Category
	// MinSize and MaxSize bound the matched file size, inclusive. A zero
	// MaxSize means unbounded.
	MinSize, MaxSize uint64
	// HubURL is the requesting peer's hub, used to filter out excluded
	// roots.
	HubURL string
	// MaxResults bounds the number of results returned.
	MaxResults int
}

// ADCQuery is the structured ADC-style search described in §4.4.
type ADCQuery struct {
	// Include terms must all match (as substrings of accumulated path
	// atoms); Exclude terms must all fail to match.
	Include, Exclude []string
	// ExtensionWhitelist and ExtensionBlacklist restrict matched file
	// extensions (lowercase, without the leading dot). An empty whitelist
	// means unrestricted.
	ExtensionWhitelist, ExtensionBlacklist []string
	// MinSize and MaxSize bound the matched file size, inclusive. A zero
	// MaxSize means unbounded.
	MinSize, MaxSize uint64
	// TTH, if non-zero, causes resolution directly via the TTH index,
	// skipping the tree walk entirely.
	TTH tth.Hash
	// DirectoryOnly restricts matches to directories.
	DirectoryOnly bool
	// HubURL is the requesting peer's hub, used to filter out excluded
	// roots.
	HubURL string
	// MaxResults bounds the number of results returned.
	MaxResults int
}

// Category is a coarse file-type bitmask matching tree.FileTypeMask's bit
// layout exactly, duplicated here (rather than imported) so that query
// construction doesn't require callers to depend on package tree directly.
type Category uint32

// Category bits, matching tree.FileTypeMask exactly.
const (
	CategoryAny Category = 1 << iota
	CategoryAudio
	CategoryCompressed
	CategoryDocument
	CategoryExecutable
	CategoryImage
	CategoryVideo
)

// Result is a single search hit, carrying the fields the core is
// responsible for (§6); free/total slot counts and hub identity are
// supplied by the caller.
type Result struct {
	VirtualPath string
	Size        uint64
	TTH         tth.Hash
	IsDirectory bool
}
