package filecodec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/vle"
	"github.com/bcsv-io/bcsv/internal/xsum"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/wire"
)

// stream001 is the simplest file codec: BLE-prefixed uncompressed rows
// written directly to the stream with no packet structure, no footer, and
// no random access. Per-row XXH32 checksums provide integrity.
//
// Wire format:
//
//	BLE(row_len) | row_bytes | uint32(XXH32)   — repeated, row_len > 0
//	BLE(0)                                     — ZoH repeat, no payload
//
// Grounded on original_source/include/bcsv/file_codec_stream001.h.
type stream001 struct {
	readBuf []byte
}

func newStream001() *stream001 {
	return &stream001{}
}

func (c *stream001) SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error {
	return nil
}

func (c *stream001) SetupRead(r io.Reader, header *wire.FileHeader) error {
	return nil
}

func (c *stream001) BeginWrite(w io.Writer, rowCount uint64) (bool, error) {
	return false, nil
}

func (c *stream001) WriteRow(w io.Writer, rowData []byte) error {
	if len(rowData) == 0 {
		return writeRowLength(w, 0)
	}

	if err := writeRowLength(w, uint64(len(rowData))); err != nil {
		return err
	}
	if _, err := w.Write(rowData); err != nil {
		return fmt.Errorf("%w: writing row payload: %v", errs.ErrIO, err)
	}

	var hashBuf [4]byte
	binary.LittleEndian.PutUint32(hashBuf[:], xsum.Sum32(rowData))
	if _, err := w.Write(hashBuf[:]); err != nil {
		return fmt.Errorf("%w: writing row checksum: %v", errs.ErrIO, err)
	}
	return nil
}

func (c *stream001) Finalize(w io.Writer, totalRows uint64) error {
	return nil
}

func (c *stream001) ReadRow(r io.Reader) (RowStatus, []byte, error) {
	rowLen, err := vle.DecodeTruncatedReader(r)
	if err != nil {
		return RowEOF, nil, nil
	}

	if rowLen == 0 {
		return RowZoHRepeat, nil, nil
	}

	if rowLen > limits.MaxRowLength {
		return RowEOF, nil, fmt.Errorf("%w: row length %d exceeds maximum %d", errs.ErrCorruptedFile, rowLen, limits.MaxRowLength)
	}

	if cap(c.readBuf) < int(rowLen) {
		c.readBuf = make([]byte, rowLen)
	} else {
		c.readBuf = c.readBuf[:rowLen]
	}
	if _, err := io.ReadFull(r, c.readBuf); err != nil {
		return RowEOF, nil, nil
	}

	var hashBuf [4]byte
	if _, err := io.ReadFull(r, hashBuf[:]); err != nil {
		return RowEOF, nil, fmt.Errorf("%w: reading row checksum: %v", errs.ErrIO, err)
	}
	want := binary.LittleEndian.Uint32(hashBuf[:])
	if got := xsum.Sum32(c.readBuf); got != want {
		return RowEOF, nil, fmt.Errorf("%w: row checksum", errs.ErrChecksumMismatch)
	}

	return RowOK, c.readBuf, nil
}

func (c *stream001) PacketBoundaryCrossed() bool { return false }

func (c *stream001) Reset() {}

func (c *stream001) PacketIndex() []wire.PacketIndexEntry { return nil }

func (c *stream001) Close() error { return nil }

// writeRowLength writes length as a truncated-mode VLE row-length prefix.
// Shared with streamLZ4001, whose rows also carry no packet framing.
func writeRowLength(w io.Writer, length uint64) error {
	if _, err := vle.EncodeTruncated(w, length); err != nil {
		return fmt.Errorf("%w: writing row length: %v", errs.ErrIO, err)
	}
	return nil
}
