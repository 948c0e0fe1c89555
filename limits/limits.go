// Package limits centralises the wire-format size limits shared across
// BCSV's layout, codec, and file packages, matching the numbers fixed by
// SPEC_FULL.md §6.
package limits

const (
	// MaxColumnCount is the largest number of columns a Layout may hold.
	MaxColumnCount = 65535

	// MaxStringLength is the largest number of bytes a STRING column's
	// value (or column name) may occupy.
	MaxStringLength = 65535

	// MaxRowLength is the largest serialized size, in bytes, of a single
	// row (≈16MiB - 2, matching the VLE/packet framing headroom).
	MaxRowLength = 16*1024*1024 - 2

	// MaxPacketSize is the largest configurable packet_size target.
	MaxPacketSize = 1 << 30 // 1GiB

	// MinPacketSize is the smallest configurable packet_size target.
	MinPacketSize = 64 * 1024 // 64KiB

	// DefaultPacketSize is used when no packet size option is supplied.
	DefaultPacketSize = 8 * 1024 * 1024 // 8MiB

	// PacketTerminator is the reserved VLE-encoded row-length value marking
	// the end of a packet's data section.
	PacketTerminator = 0x3FFF_FFFF

	// MaxScalarWidth is the widest fixed scalar wire field, in bytes.
	MaxScalarWidth = 8
)
