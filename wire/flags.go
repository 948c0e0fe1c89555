// Package wire implements BCSV's file-level binary structures: the file
// header (magic, version, flags, schema), the per-packet header, and the
// trailing footer/packet-index. All multi-byte fields are little-endian.
package wire

// Flags is the 16-bit bitfield recorded in FileHeader. Flags are set once
// at file creation and are immutable for the life of the file.
type Flags uint16

const (
	// FlagZeroOrderHold selects the ZoH001 row codec instead of Flat001.
	FlagZeroOrderHold Flags = 1 << 0
	// FlagNoFileIndex suppresses the trailing FileFooter (no random access).
	FlagNoFileIndex Flags = 1 << 1
	// FlagStreamMode selects a non-packetized file codec (Stream001 /
	// StreamLZ4001): rows are framed individually with no packet headers.
	FlagStreamMode Flags = 1 << 2
	// FlagBatchCompress selects the asynchronous batch-LZ4 packet codec
	// (PacketLZ4Batch001) instead of per-row streaming LZ4.
	FlagBatchCompress Flags = 1 << 3
	// FlagDeltaEncoding is reserved for a future row codec; no file codec
	// in this module interprets it.
	FlagDeltaEncoding Flags = 1 << 4
)

// Has reports whether every bit in f is also set in flags.
func (flags Flags) Has(f Flags) bool { return flags&f == f }

// With returns flags with f set.
func (flags Flags) With(f Flags) Flags { return flags | f }

// Without returns flags with f cleared.
func (flags Flags) Without(f Flags) Flags { return flags &^ f }

// ZeroOrderHold reports whether the ZoH001 row codec is selected.
func (flags Flags) ZeroOrderHold() bool { return flags.Has(FlagZeroOrderHold) }

// NoFileIndex reports whether the file carries no footer.
func (flags Flags) NoFileIndex() bool { return flags.Has(FlagNoFileIndex) }

// StreamMode reports whether the file uses a non-packetized file codec.
func (flags Flags) StreamMode() bool { return flags.Has(FlagStreamMode) }

// BatchCompress reports whether the file uses the asynchronous batch-LZ4
// packet codec.
func (flags Flags) BatchCompress() bool { return flags.Has(FlagBatchCompress) }
