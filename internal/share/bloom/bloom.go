// Package bloom implements a counting-less Bloom filter over hashed,
// lowercased name tokens, used by the search engine as a fast-negative
// prefilter before any tree walk is attempted.
package bloom

import (
	"encoding/binary"
	"strings"

	"github.com/dchest/siphash"
)

// DefaultK is the default number of hash functions, per §4.1.
const DefaultK = 5

// ngramSize is the trigram width used by MightContainSubstring. Every
// substring of a name is itself composed of the name's trigrams in order,
// so indexing all of a name's trigrams lets an arbitrary (non-word-aligned)
// substring query be prefiltered without false negatives — unlike
// MightContain, which only ever tested whole tokenize atoms and so missed
// queries that don't land on a word boundary (e.g. "ong" against
// "Song.mp3").
const ngramSize = 3

// hashKeys are the fixed 128-bit SipHash keys used to derive each of the
// filter's k hash functions. Using k independently-keyed hashes rather than
// one hash salted k times avoids correlated bit patterns when m isn't a
// multiple of a single hash's output width.
var hashKeys = [...][2]uint64{
	{0x0123456789abcdef, 0xfedcba9876543210},
	{0x1111111122222222, 0x3333333344444444},
	{0x5555555566666666, 0x7777777788888888},
	{0x99999999aaaaaaaa, 0xbbbbbbbbcccccccc},
	{0xdddddddeeeeeeeee, 0xf0f0f0f0f0f0f0f0},
}

// Filter is a fixed-size Bloom filter over m bits using k independent
// keyed hash functions. It is rebuilt in full after every refresh swap and
// is never mutated incrementally, so that removed entries can never leave
// stale bits behind (§4.1).
type Filter struct {
	bits []uint64
	m    uint64
	k    int
}

// New creates an empty filter with m bits and k hash functions. If k is
// zero or negative, DefaultK is used. k is capped at len(hashKeys).
func New(m uint64, k int) *Filter {
	if m == 0 {
		m = 1
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > len(hashKeys) {
		k = len(hashKeys)
	}
	return &Filter{
		bits: make([]uint64, (m+63)/64),
		m:    m,
		k:    k,
	}
}

// K returns the number of hash functions the filter uses.
func (f *Filter) K() int { return f.k }

// M returns the number of bits in the filter.
func (f *Filter) M() uint64 { return f.m }

// positions computes the k bit positions for a token.
func (f *Filter) positions(token string) []uint64 {
	data := []byte(token)
	positions := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		h := siphash.Hash(hashKeys[i][0], hashKeys[i][1], data)
		positions[i] = h % f.m
	}
	return positions
}

// Add ingests a token into the filter, setting each of its k bit positions.
func (f *Filter) Add(token string) {
	for _, pos := range f.positions(token) {
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// AddName ingests every tokenization atom of name, matching the exact
// tokenization the search engine queries against (see Tokenize), plus
// every trigram of the full lowercased name so that MightContainSubstring
// can later prefilter arbitrary substring queries.
func (f *Filter) AddName(name string) {
	for _, token := range Tokenize(name) {
		f.Add(token)
	}
	for _, gram := range ngrams(strings.ToLower(name), ngramSize) {
		f.Add(gram)
	}
}

// ngrams returns every contiguous substring of s of length n, in order.
// Strings shorter than n yield no n-grams.
func ngrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// MightContain reports whether token may be present. It never returns
// false for a token that was actually added (no false negatives); it may
// return true for a token that was never added (false positive).
func (f *Filter) MightContain(token string) bool {
	for _, pos := range f.positions(token) {
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// MightContainSubstring reports whether name may contain atom as a
// substring, regardless of word boundaries. Atoms shorter than the
// indexed trigram width bypass the check entirely (treated as "might
// contain", since no trigram exists to test). For longer atoms, every
// trigram of atom is itself a trigram of any string actually containing
// atom, so requiring all of them present never produces a false negative.
func (f *Filter) MightContainSubstring(atom string) bool {
	grams := ngrams(strings.ToLower(atom), ngramSize)
	if len(grams) == 0 {
		return true
	}
	for _, gram := range grams {
		if !f.MightContain(gram) {
			return false
		}
	}
	return true
}

// Serialize exports the filter's raw bit vector alongside its parameters,
// for negotiation with remote peers at the agreed (k, m, h) parameters.
func (f *Filter) Serialize() (k int, m uint64, data []byte) {
	data = make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(data[i*8:], word)
	}
	return f.k, f.m, data
}
