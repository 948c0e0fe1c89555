// Package rowcodec implements BCSV's two row wire codecs: Flat001, which
// serializes a full row every call, and ZoH001 (Zero-Order-Hold), which
// serializes only the columns that changed since the previous row in the
// current packet. Both operate directly on a row.Row's packed byte sections
// so that unchanged scalar columns can be compared and copied without a
// type switch.
package rowcodec

import "github.com/bcsv-io/bcsv/row"

// Codec is the common interface both row wire formats implement. A Codec is
// bound to one Layout for its lifetime (via its constructor) and is not
// concurrency-safe: each writer/reader goroutine needs its own instance.
type Codec interface {
	// Serialize appends r's wire representation to buf (growing it from its
	// current length) and returns the number of bytes appended. A return of
	// (0, nil) means "no change from the previous row" — valid only for
	// ZoH001, where the caller must then emit a zero-length ZoH-repeat
	// marker instead of a packet payload entry.
	Serialize(r *row.Row, buf ScratchBuffer) (int, error)

	// Deserialize decodes data (exactly one row's wire bytes, no framing)
	// into r, overwriting only the columns the wire format actually
	// carries for this call.
	Deserialize(data []byte, r *row.Row) error

	// Reset clears any cross-row state (ZoH's previous-row snapshot),
	// starting a fresh "first row in packet" cycle.
	Reset()
}

// ScratchBuffer is the minimal growable-append surface Serialize needs. It
// is satisfied by *internal/pool.ByteBuffer; declared here as an interface
// so rowcodec does not import the pool package's concrete type into its
// public signature.
type ScratchBuffer interface {
	Len() int
	ExtendOrGrow(n int)
	Bytes() []byte
}
