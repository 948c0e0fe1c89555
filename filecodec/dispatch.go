package filecodec

import "github.com/bcsv-io/bcsv/wire"

// ID names a concrete file codec. It is never stored in the file itself —
// Resolve derives it from the FileHeader's compression level and flags, so
// the same file reopened by the same rules always resolves to the same
// codec. Grounded on original_source/include/bcsv/definitions.h's
// FileCodecId enum and resolveFileCodecId.
type ID uint8

const (
	// Stream001 is stream-raw: no packets, no compression, per-row XXH32.
	Stream001 ID = iota
	// StreamLZ4001 is stream-LZ4: no packets, per-row LZ4, per-row XXH32.
	StreamLZ4001
	// Packet001 is packet-raw: packet framing and checksums, no compression.
	Packet001
	// PacketLZ4001 is packet-LZ4: packet framing with per-row LZ4.
	PacketLZ4001
	// PacketLZ4Batch001 is packet framing with whole-packet LZ4 compressed
	// and decompressed on a background goroutine.
	PacketLZ4Batch001
)

// String names id for logging.
func (id ID) String() string {
	switch id {
	case Stream001:
		return "Stream001"
	case StreamLZ4001:
		return "StreamLZ4001"
	case Packet001:
		return "Packet001"
	case PacketLZ4001:
		return "PacketLZ4001"
	case PacketLZ4Batch001:
		return "PacketLZ4Batch001"
	default:
		return "Unknown"
	}
}

// Resolve derives the file codec ID from a file's compression level and
// flags: stream mode picks between Stream001/StreamLZ4001, batch-compress
// (with compression enabled) selects PacketLZ4Batch001, and otherwise
// packet mode picks between Packet001/PacketLZ4001.
func Resolve(compressionLevel uint8, flags wire.Flags) ID {
	compressed := compressionLevel > 0

	if flags.StreamMode() {
		if compressed {
			return StreamLZ4001
		}
		return Stream001
	}

	if flags.BatchCompress() && compressed {
		return PacketLZ4Batch001
	}

	if compressed {
		return PacketLZ4001
	}
	return Packet001
}
