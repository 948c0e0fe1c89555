// Package filecodec implements BCSV's file-level codecs: the framing,
// compression, and checksum strategies layered under the row codecs in
// package rowcodec. Each codec turns a stream of serialized row payloads
// (produced by a rowcodec.Codec) into a wire-format byte stream, and back.
//
// Grounded on original_source/include/bcsv/file_codec_concept.h's
// FileCodecConcept interface, adapted from the reference's compile-time
// template dispatch (and its manual-type-erasure FileCodecDispatch) into a
// plain Go interface satisfied by five concrete implementations plus a
// runtime constructor, New, that picks among them.
package filecodec

import (
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/wire"
)

// RowStatus reports what ReadRow decoded. The reference implementation
// distinguishes these cases with two reserved zero-length spans compared by
// pointer identity (ZOH_REPEAT_SENTINEL, EOF_SENTINEL); Go has no pointer
// identity to spare on a byte slice, so ReadRow returns this explicit status
// alongside the row bytes instead.
type RowStatus int

const (
	// RowOK means ReadRow returned a fully-decoded row payload.
	RowOK RowStatus = iota
	// RowZoHRepeat means the row codec should repeat its previously
	// deserialized row unchanged — no payload was written for this row.
	RowZoHRepeat
	// RowEOF means there is no more row data to read.
	RowEOF
)

// Codec is the file-level framing/compression contract every concrete file
// codec satisfies. A codec is stateful: SetupWrite or SetupRead must be
// called before any other method, and a single Codec value is only ever
// driven from one side (write xor read).
type Codec interface {
	// SetupWrite prepares the codec to write rows following header,
	// starting at byteOffset in the underlying stream (the size of the
	// already-written FileHeader).
	SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error

	// SetupRead prepares the codec to read rows following header.
	SetupRead(r io.Reader, header *wire.FileHeader) error

	// BeginWrite is called before every WriteRow. It closes a full packet
	// and opens the next one as needed, reporting whether a packet
	// boundary was crossed so the caller resets its row codec.
	BeginWrite(w io.Writer, rowCount uint64) (bool, error)

	// WriteRow writes one serialized row payload. An empty rowData means
	// a ZoH-repeat: the row codec produced no changes for this row.
	WriteRow(w io.Writer, rowData []byte) error

	// Finalize closes any open packet and writes the trailing file
	// footer (if the codec builds one).
	Finalize(w io.Writer, totalRows uint64) error

	// ReadRow reads and returns the next row's payload. The returned
	// slice is only valid until the next call to ReadRow.
	ReadRow(r io.Reader) (RowStatus, []byte, error)

	// PacketBoundaryCrossed reports whether the most recent ReadRow
	// crossed into a new packet, so the caller can reset its row codec.
	PacketBoundaryCrossed() bool

	// Reset clears per-packet state (streaming checksums, LZ4 context)
	// for a new packet. Stream-mode codecs treat this as a no-op.
	Reset()

	// PacketIndex returns the packet index accumulated so far, for
	// Finalize's caller to hand to wire.FileFooter. Codecs with no
	// index (NoFileIndex) always return nil.
	PacketIndex() []wire.PacketIndexEntry

	// Close releases any resources SetupRead/SetupWrite started beyond the
	// underlying io.Reader/io.Writer — in practice, the batch codec's
	// background compression goroutine. Safe to call more than once and
	// on a codec that never started any background work.
	Close() error
}

// New constructs the concrete Codec matching id.
func New(id ID) (Codec, error) {
	switch id {
	case Stream001:
		return newStream001(), nil
	case StreamLZ4001:
		return newStreamLZ4001(), nil
	case Packet001:
		return newPacket001(), nil
	case PacketLZ4001:
		return newPacketLZ4001(), nil
	case PacketLZ4Batch001:
		return newPacketLZ4Batch001(), nil
	default:
		return nil, fmt.Errorf("filecodec: unknown codec id %d", id)
	}
}
