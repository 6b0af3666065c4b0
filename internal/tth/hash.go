// Package tth defines the Tiger Tree Hash content identifier used to key
// files in the share index. TTH values themselves are computed externally
// (by the hasher that backs RefreshPipeline); this package only concerns
// itself with the value type, its text encoding, and lookup structures keyed
// by it.
package tth

import (
	"encoding/base32"
	"errors"
)

// Size is the length, in bytes, of a TTH value (192 bits).
const Size = 24

// encoding is the base32 alphabet used for TTH text representations. It
// matches the fixed wire alphabet used by ADC/NMDC hub protocols, which is
// why encoding/base32 is used directly rather than a configurable-alphabet
// encoder: the alphabet here is a protocol constant, not a free choice.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Hash is a 192-bit Tiger Tree Hash root. It is comparable and usable
// directly as a map key.
type Hash [Size]byte

// String returns the canonical base32 text representation of h.
func (h Hash) String() string {
	return encoding.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value (no hash set).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Parse decodes the canonical base32 text representation of a TTH value.
func Parse(s string) (Hash, error) {
	var h Hash
	decoded, err := encoding.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(decoded) != Size {
		return h, errors.New("decoded TTH has incorrect length")
	}
	copy(h[:], decoded)
	return h, nil
}

// FromBytes copies a raw digest into a Hash, returning an error if the
// digest is not the correct size.
func FromBytes(digest []byte) (Hash, error) {
	var h Hash
	if len(digest) != Size {
		return h, errors.New("digest has incorrect length for TTH")
	}
	copy(h[:], digest)
	return h, nil
}
