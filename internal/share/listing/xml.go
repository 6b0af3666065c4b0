package listing

import (
	"encoding/xml"
	"io"

	"github.com/hubshare/shareindex/internal/share/tree"
)

// xmlFileListing is the root element of a generated file listing, modeled
// on the hub-protocol FileListing DTD: a Base path, a CID-less Generator
// tag (no client identity is embedded), and a nested Directory tree.
type xmlFileListing struct {
	XMLName    xml.Name       `xml:"FileListing"`
	Version    string         `xml:"Version,attr"`
	CID        string         `xml:"CID,attr,omitempty"`
	Base       string         `xml:"Base,attr"`
	Generator  string         `xml:"Generator,attr"`
	Directories []xmlDirectory `xml:"Directory"`
}

type xmlDirectory struct {
	Name        string         `xml:"Name,attr"`
	Incomplete  bool           `xml:"Incomplete,attr,omitempty"`
	Directories []xmlDirectory `xml:"Directory,omitempty"`
	Files       []xmlFile      `xml:"File,omitempty"`
}

type xmlFile struct {
	Name string `xml:"Name,attr"`
	Size uint64 `xml:"Size,attr"`
	TTH  string `xml:"TTH,attr"`
}

// buildXMLDirectory converts a subtree into its XML representation. When
// recurse is false, child directories are emitted with Incomplete="true"
// and no further descendants, matching a browse-one-level request.
func buildXMLDirectory(d *tree.Directory, recurse bool) xmlDirectory {
	out := xmlDirectory{Name: d.Name}

	for _, f := range d.Files() {
		out.Files = append(out.Files, xmlFile{
			Name: f.Name,
			Size: f.Size,
			TTH:  f.TTH.String(),
		})
	}

	for _, child := range d.Children() {
		if recurse {
			out.Directories = append(out.Directories, buildXMLDirectory(child, true))
		} else {
			out.Directories = append(out.Directories, xmlDirectory{Name: child.Name, Incomplete: true})
		}
	}

	return out
}

// buildFullListing serializes every root not excluded for hubURL into a
// single FileListing document, used by generateXmlList. An empty hubURL
// names the default "All" list, which is never hub-scoped and so includes
// every root regardless of exclusion (§4.5, §8 scenario c).
func buildFullListing(roots []*tree.Directory, hubURL, generator string) *xmlFileListing {
	listing := &xmlFileListing{
		Version:   "1",
		Base:      "/",
		Generator: generator,
	}
	for _, root := range roots {
		if hubURL != "" && root.Root.IsHubExcluded(hubURL) {
			continue
		}
		listing.Directories = append(listing.Directories, buildXMLDirectory(root, true))
	}
	return listing
}

// buildFragmentListing serializes the matching subtrees reachable at
// virtualPath across every aliased root under one combined Directory
// element, used by generatePartialList (§8 scenario b).
func buildFragmentListing(dirs []*tree.Directory, name string, recurse bool, generator string) *xmlFileListing {
	combined := xmlDirectory{Name: name}
	for _, d := range dirs {
		frag := buildXMLDirectory(d, recurse)
		combined.Files = append(combined.Files, frag.Files...)
		combined.Directories = append(combined.Directories, frag.Directories...)
	}
	return &xmlFileListing{
		Version:     "1",
		Base:        "/" + name + "/",
		Generator:   generator,
		Directories: []xmlDirectory{combined},
	}
}

// marshalListing renders a listing document as indented XML with the
// customary header line prepended.
func marshalListing(listing *xmlFileListing) ([]byte, error) {
	body, err := xml.MarshalIndent(listing, "", "  ")
	if err != nil {
		return nil, err
	}
	header := []byte(xml.Header)
	return append(header, body...), nil
}

// encodeListing renders a listing document as indented XML directly to w,
// via xml.Encoder's buffered Write calls, rather than fully marshaling to
// an in-memory byte slice first. This is what lets a generationWriter
// underneath w actually observe and act on its periodic supersession
// check (§4.5): xml.MarshalIndent would otherwise produce the entire
// document before a single Write ever reaches w, so checkEvery could
// never be reached for a listing generated in one shot.
func encodeListing(listing *xmlFileListing, w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(listing); err != nil {
		return err
	}
	return enc.Flush()
}

// tthListLines renders a newline-delimited TTH listing for generateTTHList,
// one base32 digest per line in tree walk order.
func tthListLines(dirs []*tree.Directory, recurse bool) []byte {
	var out []byte
	var walk func(d *tree.Directory)
	walk = func(d *tree.Directory) {
		for _, f := range d.Files() {
			out = append(out, []byte(f.TTH.String())...)
			out = append(out, '\n')
		}
		if recurse {
			for _, child := range d.Children() {
				walk(child)
			}
		}
	}
	for _, d := range dirs {
		walk(d)
	}
	return out
}
