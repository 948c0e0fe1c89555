package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/xsum"
)

// footerConstSize is the fixed trailer following the packet index:
// "EIDX"(4) + startOffset(4) + rowCount(8) + checksum(8) = 24 bytes.
const footerConstSize = 24

// PacketIndexEntry records one packet's starting byte offset and the row
// index of its first row, letting ReaderDirectAccess binary-search for the
// packet containing a given row.
type PacketIndexEntry struct {
	ByteOffset uint64
	FirstRow   uint64
}

// FileFooter is BCSV's trailing index: the full packet index plus the
// file's total row count, self-checksummed so a reader can detect
// truncation or corruption without re-scanning the whole file.
type FileFooter struct {
	Entries  []PacketIndexEntry
	RowCount uint64
}

// Bytes serializes the footer: "BIDX", the packet index, "EIDX", the
// distance back to "BIDX", the row count, and an xxHash64 checksum over
// everything preceding the checksum field itself.
func (f *FileFooter) Bytes() []byte {
	entryBytes := len(f.Entries) * 16
	footerSize := 4 + entryBytes + footerConstSize
	buf := make([]byte, footerSize)

	copy(buf[0:4], "BIDX")
	off := 4
	for _, e := range f.Entries {
		binary.LittleEndian.PutUint64(buf[off:off+8], e.ByteOffset)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], e.FirstRow)
		off += 16
	}

	copy(buf[off:off+4], "EIDX")
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(footerSize))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], f.RowCount)
	off += 8

	checksum := xsum.Sum64(buf[:off])
	binary.LittleEndian.PutUint64(buf[off:off+8], checksum)

	return buf
}

// ReadFileFooter reads and validates the footer at the end of a file of
// fileSize bytes, accessed through ra. Returns errs.ErrInvalidMagic if
// either magic marker doesn't match and errs.ErrChecksumMismatch if the
// trailing checksum doesn't match the recomputed one.
func ReadFileFooter(ra io.ReaderAt, fileSize int64) (*FileFooter, error) {
	if fileSize < footerConstSize {
		return nil, fmt.Errorf("%w: file too small to hold a footer", errs.ErrCorruptedFile)
	}

	tail := make([]byte, footerConstSize)
	if _, err := ra.ReadAt(tail, fileSize-footerConstSize); err != nil {
		return nil, fmt.Errorf("%w: reading footer trailer: %v", errs.ErrIO, err)
	}

	if string(tail[0:4]) != "EIDX" {
		return nil, fmt.Errorf("%w: footer trailer magic", errs.ErrInvalidMagic)
	}

	startOffset := binary.LittleEndian.Uint32(tail[4:8])
	rowCount := binary.LittleEndian.Uint64(tail[8:16])
	wantChecksum := binary.LittleEndian.Uint64(tail[16:24])

	if int64(startOffset) > fileSize || startOffset < footerConstSize {
		return nil, fmt.Errorf("%w: footer start offset %d out of range", errs.ErrCorruptedFile, startOffset)
	}

	full := make([]byte, startOffset)
	if _, err := ra.ReadAt(full, fileSize-int64(startOffset)); err != nil {
		return nil, fmt.Errorf("%w: reading footer body: %v", errs.ErrIO, err)
	}

	if string(full[0:4]) != "BIDX" {
		return nil, fmt.Errorf("%w: footer index magic", errs.ErrInvalidMagic)
	}

	gotChecksum := xsum.Sum64(full[:len(full)-8])
	if gotChecksum != wantChecksum {
		return nil, fmt.Errorf("%w: footer checksum", errs.ErrChecksumMismatch)
	}

	entryBytes := len(full) - 4 - footerConstSize
	if entryBytes < 0 || entryBytes%16 != 0 {
		return nil, fmt.Errorf("%w: footer packet index has misaligned length %d", errs.ErrCorruptedFile, entryBytes)
	}

	count := entryBytes / 16
	entries := make([]PacketIndexEntry, count)
	off := 4
	for i := 0; i < count; i++ {
		entries[i] = PacketIndexEntry{
			ByteOffset: binary.LittleEndian.Uint64(full[off : off+8]),
			FirstRow:   binary.LittleEndian.Uint64(full[off+8 : off+16]),
		}
		off += 16
	}

	return &FileFooter{Entries: entries, RowCount: rowCount}, nil
}
