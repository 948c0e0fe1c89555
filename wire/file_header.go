package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/limits"
)

// FileMagic identifies a BCSV file: the ASCII bytes "BCSV" read as a
// little-endian u32.
const FileMagic uint32 = 0x56534342

// Library version this module writes and the newest minor version it
// accepts on read (same major, minor ≤ this).
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 3
	VersionPatch uint8 = 0
)

// headerFixedSize is FileHeader's fixed-width prefix: magic(4) + major(1) +
// minor(1) + patch(1) + compressionLevel(1) + flags(2) + packetSize(4) +
// columnCount(2) = 16 bytes.
const headerFixedSize = 16

// FileHeader is BCSV's file-start metadata: format version, compression
// level, feature flags, target packet size, and the full column schema.
type FileHeader struct {
	VersionMajor     uint8
	VersionMinor     uint8
	VersionPatch     uint8
	CompressionLevel uint8
	Flags            Flags
	PacketSize       uint32
	Layout           *layout.Layout
}

// NewFileHeader builds a FileHeader stamped with this module's current
// version, for l, to be written at file creation.
func NewFileHeader(l *layout.Layout, compressionLevel uint8, flags Flags, packetSize uint32) *FileHeader {
	return &FileHeader{
		VersionMajor:     VersionMajor,
		VersionMinor:     VersionMinor,
		VersionPatch:     VersionPatch,
		CompressionLevel: compressionLevel,
		Flags:            flags,
		PacketSize:       packetSize,
		Layout:           l,
	}
}

// Bytes serializes the header (fixed prefix + schema) for writing at the
// start of a file.
func (h *FileHeader) Bytes() ([]byte, error) {
	count := h.Layout.Len()
	if count > limits.MaxColumnCount {
		return nil, fmt.Errorf("%w: %d columns exceeds maximum of %d", errs.ErrSchema, count, limits.MaxColumnCount)
	}

	nameBytes := 0
	for _, col := range h.Layout.Columns() {
		if len(col.Name) > limits.MaxStringLength {
			return nil, fmt.Errorf("%w: column name %q exceeds maximum length", errs.ErrSchema, col.Name)
		}
		nameBytes += len(col.Name)
	}

	total := headerFixedSize + count*1 + count*2 + nameBytes
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], FileMagic)
	buf[4] = h.VersionMajor
	buf[5] = h.VersionMinor
	buf[6] = h.VersionPatch
	buf[7] = h.CompressionLevel
	binary.LittleEndian.PutUint16(buf[8:10], uint16(h.Flags))
	binary.LittleEndian.PutUint32(buf[10:14], h.PacketSize)
	binary.LittleEndian.PutUint16(buf[14:16], uint16(count))

	typeOff := headerFixedSize
	lenOff := typeOff + count
	nameOff := lenOff + count*2
	for _, col := range h.Layout.Columns() {
		buf[typeOff] = byte(col.Type)
		typeOff++
		binary.LittleEndian.PutUint16(buf[lenOff:lenOff+2], uint16(len(col.Name)))
		lenOff += 2
		copy(buf[nameOff:nameOff+len(col.Name)], col.Name)
		nameOff += len(col.Name)
	}

	return buf, nil
}

// ParseFileHeader reads and validates a FileHeader from r, returning the
// reconstructed Layout alongside the header fields. Returns
// errs.ErrInvalidMagic if the magic number doesn't match, or
// errs.ErrUnsupportedVersion if the file's major version differs or its
// minor version is newer than this module supports.
func ParseFileHeader(r io.Reader) (*FileHeader, error) {
	prefix := make([]byte, headerFixedSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: reading file header: %v", errs.ErrIO, err)
	}

	magic := binary.LittleEndian.Uint32(prefix[0:4])
	if magic != FileMagic {
		return nil, fmt.Errorf("%w: file header magic %#x", errs.ErrInvalidMagic, magic)
	}

	h := &FileHeader{
		VersionMajor:     prefix[4],
		VersionMinor:     prefix[5],
		VersionPatch:     prefix[6],
		CompressionLevel: prefix[7],
		Flags:            Flags(binary.LittleEndian.Uint16(prefix[8:10])),
		PacketSize:       binary.LittleEndian.Uint32(prefix[10:14]),
	}
	if h.VersionMajor != VersionMajor || h.VersionMinor > VersionMinor {
		return nil, fmt.Errorf("%w: file version %d.%d.%d, this library supports %d.%d.x through %d.%d.x",
			errs.ErrUnsupportedVersion, h.VersionMajor, h.VersionMinor, h.VersionPatch,
			VersionMajor, 0, VersionMajor, VersionMinor)
	}

	count := int(binary.LittleEndian.Uint16(prefix[14:16]))

	types := make([]byte, count)
	if count > 0 {
		if _, err := io.ReadFull(r, types); err != nil {
			return nil, fmt.Errorf("%w: reading column types: %v", errs.ErrIO, err)
		}
	}

	nameLens := make([]uint16, count)
	if count > 0 {
		raw := make([]byte, count*2)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("%w: reading column name lengths: %v", errs.ErrIO, err)
		}
		for i := range nameLens {
			nameLens[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
		}
	}

	defs := make([]layout.ColumnDefinition, count)
	for i := 0; i < count; i++ {
		nameBuf := make([]byte, nameLens[i])
		if nameLens[i] > 0 {
			if _, err := io.ReadFull(r, nameBuf); err != nil {
				return nil, fmt.Errorf("%w: reading column name: %v", errs.ErrIO, err)
			}
		}
		defs[i] = layout.ColumnDefinition{Name: string(nameBuf), Type: layout.ColumnType(types[i])}
	}

	l, err := layout.NewLayout(defs)
	if err != nil {
		return nil, err
	}
	h.Layout = l

	return h, nil
}
