package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/hubshare/shareindex/internal/share/refresh"
	"github.com/hubshare/shareindex/internal/tth"
	"github.com/hubshare/shareindex/share"
)

// cmdPrintf writes formatted CLI output to standard output.
func cmdPrintf(format string, v ...interface{}) {
	fmt.Printf(format, v...)
}

// parseRoots converts the "realPath=virtualName" flag values into
// RootConfigs, defaulting the virtual name to the directory's base name
// when omitted.
func parseRoots(specs []string) ([]refresh.RootConfig, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one --root is required")
	}

	configs := make([]refresh.RootConfig, 0, len(specs))
	for _, spec := range specs {
		realPath, virtualName := spec, ""
		if idx := strings.IndexByte(spec, '='); idx >= 0 {
			realPath, virtualName = spec[:idx], spec[idx+1:]
		}
		if virtualName == "" {
			virtualName = baseName(realPath)
		}
		configs = append(configs, refresh.RootConfig{RealPath: realPath, VirtualName: virtualName})
	}
	return configs, nil
}

func baseName(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// contentHasher computes a stand-in content fingerprint for demonstration
// purposes: this module has no Tiger Tree Hash implementation of its own
// (real deployments supply one externally via refresh.Hasher), so the CLI
// falls back to a truncated SHA-256 digest, identical in spirit to the
// non-TTH fingerprint package listing already uses for its XMLTTH/BzXMLTTH
// artifact-verification fields.
func contentHasher() refresh.Hasher {
	return refresh.HasherFunc(func(realPath string) (tth.Hash, error) {
		data, err := os.ReadFile(realPath)
		if err != nil {
			return tth.Hash{}, errors.Wrap(err, "unable to read file contents")
		}
		digest := sha256.Sum256(data)
		return tth.FromBytes(digest[:tth.Size])
	})
}

// openCoordinator builds and starts a Coordinator from the root command's
// persistent flags, performing the initial blocking refresh.
func openCoordinator(ctx context.Context) (*share.Coordinator, error) {
	roots, err := parseRoots(rootConfiguration.roots)
	if err != nil {
		return nil, err
	}

	coordinator := share.New(share.Config{
		CacheDir:      rootConfiguration.cacheDir,
		Roots:         roots,
		Hasher:        contentHasher(),
		ScanRateLimit: rootConfiguration.scanRate,
		Logger:        resolveLogger(),
	})

	if err := coordinator.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "unable to start share index")
	}
	return coordinator, nil
}
