// Package catalogio provides the atomic write-then-rename primitive used to
// persist the on-disk catalog and listing cache artifacts without ever
// exposing a reader to a partially-written file.
package catalogio

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteAtomic writes data to a new file inside dir named by pattern (as
// accepted by os.CreateTemp) and renames it into place at finalName,
// returning the final path. The rename is atomic on any POSIX filesystem,
// so concurrent readers never observe a truncated or partial file.
func WriteAtomic(dir, finalName, pattern string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "unable to create cache directory")
	}

	temp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", errors.Wrap(err, "unable to create temporary file")
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return "", errors.Wrap(err, "unable to write temporary file")
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return "", errors.Wrap(err, "unable to close temporary file")
	}

	finalPath := filepath.Join(dir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", errors.Wrap(err, "unable to rename temporary file into place")
	}

	return finalPath, nil
}
