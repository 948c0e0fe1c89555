package filecodec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/lz4x"
	"github.com/bcsv-io/bcsv/internal/vle"
	"github.com/bcsv-io/bcsv/internal/xsum"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/wire"
)

// streamLZ4001 compresses each row independently with LZ4 and writes it
// with the same BLE-length/XXH32 framing as stream001, with no packet
// structure, footer, or random access.
//
// The reference codec keeps one streaming LZ4 context with a persistent
// dictionary across the whole file; pierrec/lz4/v4's public block API has
// no cross-call dictionary hook (see internal/lz4x), so every row is
// compressed as an independent LZ4 block here instead. This changes the
// compression ratio on highly repetitive adjacent rows but not the codec's
// observable framing or correctness.
//
// Grounded on
// original_source/include/bcsv/codec_file/file_codec_stream_lz4_001.h.
type streamLZ4001 struct {
	readBuf          []byte
	compressionLevel int
}

func newStreamLZ4001() *streamLZ4001 {
	return &streamLZ4001{}
}

func (c *streamLZ4001) SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error {
	c.compressionLevel = int(header.CompressionLevel)
	return nil
}

func (c *streamLZ4001) SetupRead(r io.Reader, header *wire.FileHeader) error {
	return nil
}

func (c *streamLZ4001) BeginWrite(w io.Writer, rowCount uint64) (bool, error) {
	return false, nil
}

func (c *streamLZ4001) WriteRow(w io.Writer, rowData []byte) error {
	if len(rowData) == 0 {
		return writeRowLength(w, 0)
	}

	encoded, err := lz4x.EncodeBlock(rowData, c.compressionLevel)
	if err != nil {
		return fmt.Errorf("%w: lz4 compressing row: %v", errs.ErrIO, err)
	}

	if err := writeRowLength(w, uint64(len(encoded))); err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("%w: writing row payload: %v", errs.ErrIO, err)
	}

	var hashBuf [4]byte
	binary.LittleEndian.PutUint32(hashBuf[:], xsum.Sum32(encoded))
	if _, err := w.Write(hashBuf[:]); err != nil {
		return fmt.Errorf("%w: writing row checksum: %v", errs.ErrIO, err)
	}
	return nil
}

func (c *streamLZ4001) Finalize(w io.Writer, totalRows uint64) error {
	return nil
}

func (c *streamLZ4001) ReadRow(r io.Reader) (RowStatus, []byte, error) {
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

	decompressed, err := lz4x.DecodeBlockAdaptive(c.readBuf)
	if err != nil {
		return RowEOF, nil, fmt.Errorf("%w: lz4 decompressing row: %v", errs.ErrIO, err)
	}

	return RowOK, decompressed, nil
}

func (c *streamLZ4001) PacketBoundaryCrossed() bool { return false }

func (c *streamLZ4001) Reset() {}

func (c *streamLZ4001) PacketIndex() []wire.PacketIndexEntry { return nil }

func (c *streamLZ4001) Close() error { return nil }
