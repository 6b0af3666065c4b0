package refresh

import "github.com/hubshare/shareindex/internal/tth"

// Hasher submits a cache-miss file for content-digest computation. The
// hashing service that actually computes a Tiger Tree Hash is an external
// collaborator (no Tiger digest implementation exists in this module, see
// DESIGN.md); Enqueue is the seam the scanner hands work to.
//
// Enqueue must not block the scanner waiting for a digest: it returns
// immediately, and done is invoked exactly once, from any goroutine, once
// the digest is ready or hashing has failed permanently. Until done fires,
// the scanned file sits in the tree with Hashed == false (§4.6's
// "pending" state); scan.go wires done to the pipeline's onFileHashed
// callback, which installs the digest under the catalog's exclusive lock
// once it arrives.
type Hasher interface {
	Enqueue(realPath string, done func(tth.Hash, error))
}

// HasherFunc adapts a synchronous hash function to the asynchronous Hasher
// interface by invoking done immediately, inline, with its result. Every
// hasher wired in by this module's own tests and CLI default is already a
// fast local computation with nothing to queue, so HasherFunc lets them
// satisfy Hasher without any callback bookkeeping of their own.
type HasherFunc func(realPath string) (tth.Hash, error)

// Enqueue implements Hasher.
func (f HasherFunc) Enqueue(realPath string, done func(tth.Hash, error)) {
	done(f(realPath))
}
