// Package xsum wraps github.com/cespare/xxhash/v2 for BCSV's checksum
// discipline: one-shot and streaming 64-bit hashes for footer and packet
// checksums, plus a 32-bit derivative for the cheap per-row/per-header
// checksums.
//
// The corpus this library draws on only exposes 64-bit xxHash; there is no
// true XXH32 implementation available. Sum32 therefore truncates a seed-0
// Sum64 to its low 32 bits. This changes the exact bit pattern relative to a
// canonical XXH32 implementation but preserves the property callers actually
// rely on: a cheap, well-distributed integrity check that changes whenever
// its input does. Cross-implementation wire compatibility with the original
// C++ codec is explicitly out of scope.
package xsum

import "github.com/cespare/xxhash/v2"

// Sum64 returns the xxHash64 of data, seed 0.
func Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Sum32 returns a 32-bit checksum of data derived by truncating Sum64 to its
// low 32 bits.
func Sum32(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

// Streaming wraps an xxhash.Digest to provide incremental hashing for packet
// and footer checksums. It is not safe for concurrent use; create one per
// writer/reader goroutine.
type Streaming struct {
	d *xxhash.Digest
}

// NewStreaming creates a Streaming hasher with seed 0.
func NewStreaming() *Streaming {
	return &Streaming{d: xxhash.New()}
}

// Update feeds more bytes into the running hash.
func (s *Streaming) Update(data []byte) {
	_, _ = s.d.Write(data)
}

// Finalize returns the running xxHash64 value. It does not reset the hasher.
func (s *Streaming) Finalize() uint64 {
	return s.d.Sum64()
}

// Reset clears the running hash back to its initial (seed 0) state.
func (s *Streaming) Reset() {
	s.d.Reset()
}
