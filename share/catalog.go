// Package share wires the tree, index, bloom, search, listing, refresh,
// resolve, and tempshare packages into a single Coordinator: the facade a
// hub-protocol client hosts the share index through (§4.9).
package share

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/hubshare/shareindex/internal/catalogio"
	"github.com/hubshare/shareindex/internal/share/refresh"
	"github.com/hubshare/shareindex/internal/tth"
)

const catalogFileName = "catalog.xml"

// catalogDocument is the on-disk form of the previously active root
// configuration and per-root scan caches, persisted so that a restart can
// skip rehashing files that haven't changed since the last save (§4.9's
// "load cached catalog from disk").
type catalogDocument struct {
	XMLName xml.Name      `xml:"Catalog"`
	SavedAt time.Time     `xml:"SavedAt,attr"`
	Roots   []catalogRoot `xml:"Root"`
}

type catalogRoot struct {
	RealPath    string         `xml:"RealPath,attr"`
	VirtualName string         `xml:"VirtualName,attr"`
	Entries     []catalogEntry `xml:"Entry"`
}

type catalogEntry struct {
	Path    string    `xml:"Path,attr"`
	ModTime time.Time `xml:"ModTime,attr"`
	Size    uint64    `xml:"Size,attr"`
	TTH     string    `xml:"TTH,attr"`
}

// saveCatalog persists the configured roots and their current scan caches
// to cacheDir/catalog.xml, atomically.
func saveCatalog(cacheDir string, roots []refresh.RootConfig, caches map[string]*refresh.ScanCache) error {
	doc := catalogDocument{SavedAt: time.Now()}
	for _, r := range roots {
		cr := catalogRoot{RealPath: r.RealPath, VirtualName: r.VirtualName}
		if cache := caches[r.RealPath]; cache != nil {
			for path, entry := range cache.Entries {
				cr.Entries = append(cr.Entries, catalogEntry{
					Path:    path,
					ModTime: entry.ModTime,
					Size:    entry.Size,
					TTH:     entry.TTH.String(),
				})
			}
		}
		doc.Roots = append(doc.Roots, cr)
	}

	data, err := xml.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal catalog")
	}
	data = append([]byte(xml.Header), data...)

	_, err = catalogio.WriteAtomic(cacheDir, catalogFileName, ".catalog-*", data)
	return errors.Wrap(err, "unable to write catalog")
}

// loadCatalog reads a previously saved catalog, returning per-root scan
// caches keyed by real path. A missing file is not an error (empty result,
// forcing a full rehash); a corrupt file is reported so the caller can
// fall back to a full blocking refresh (§4.9).
func loadCatalog(cacheDir string) (map[string]*refresh.ScanCache, error) {
	data, err := os.ReadFile(filepath.Join(cacheDir, catalogFileName))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "unable to read catalog")
	}

	var doc catalogDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "catalog is corrupt")
	}

	caches := make(map[string]*refresh.ScanCache, len(doc.Roots))
	for _, cr := range doc.Roots {
		cache := refresh.NewScanCache()
		for _, e := range cr.Entries {
			h, err := tth.Parse(e.TTH)
			if err != nil {
				continue
			}
			cache.Entries[e.Path] = refresh.CacheEntry{ModTime: e.ModTime, Size: e.Size, TTH: h}
		}
		caches[cr.RealPath] = cache
	}
	return caches, nil
}

