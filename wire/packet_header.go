package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/xsum"
)

// PacketMagic identifies a packet start: the ASCII bytes "PKCT" (reversed
// to match the reference implementation's little-endian u32 constant)
// read as a little-endian u32.
const PacketMagic uint32 = 0x54434B50

// PacketHeaderSize is the packed size of a PacketHeader on the wire:
// magic(4) + firstRowIndex(8) + checksum(4).
const PacketHeaderSize = 16

// PacketHeader marks the start of a packet: a magic number, the index of
// the first row the packet carries, and an xxHash32 checksum of the
// preceding 12 bytes (self-describing, so a footer rebuild scan can
// validate a candidate packet start without reading the whole packet).
type PacketHeader struct {
	FirstRowIndex uint64
}

// Bytes serializes the header, computing its self-checksum.
func (h *PacketHeader) Bytes() []byte {
	buf := make([]byte, PacketHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], PacketMagic)
	binary.LittleEndian.PutUint64(buf[4:12], h.FirstRowIndex)
	checksum := xsum.Sum32(buf[0:12])
	binary.LittleEndian.PutUint32(buf[12:16], checksum)
	return buf
}

// ParsePacketHeader decodes and validates a 16-byte packet header. Returns
// errs.ErrInvalidMagic on a magic mismatch and errs.ErrChecksumMismatch on
// a self-checksum mismatch.
func ParsePacketHeader(data []byte) (*PacketHeader, error) {
	if len(data) < PacketHeaderSize {
		return nil, fmt.Errorf("%w: packet header needs %d bytes, got %d", errs.ErrBufferTooShort, PacketHeaderSize, len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != PacketMagic {
		return nil, fmt.Errorf("%w: packet header magic %#x", errs.ErrInvalidMagic, magic)
	}

	checksum := binary.LittleEndian.Uint32(data[12:16])
	want := xsum.Sum32(data[0:12])
	if checksum != want {
		return nil, fmt.Errorf("%w: packet header checksum", errs.ErrChecksumMismatch)
	}

	return &PacketHeader{FirstRowIndex: binary.LittleEndian.Uint64(data[4:12])}, nil
}

// ReadPacketHeader reads and validates a packet header from r.
func ReadPacketHeader(r io.Reader) (*PacketHeader, error) {
	buf := make([]byte, PacketHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading packet header: %v", errs.ErrIO, err)
	}
	return ParsePacketHeader(buf)
}
