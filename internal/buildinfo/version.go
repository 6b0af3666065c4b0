package buildinfo

import "fmt"

const (
	// VersionMajor represents the current major version of the share index.
	VersionMajor = 0
	// VersionMinor represents the current minor version of the share index.
	VersionMinor = 1
	// VersionPatch represents the current patch version of the share index.
	VersionPatch = 0
)

// Version is the formatted version string, computed once at package init.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// DebugEnabled controls whether Logger.Debug* methods produce output. It is
// a variable rather than a build tag, so it can be changed at runtime; no
// command-line flag of shareindexd sets it.
var DebugEnabled = false
