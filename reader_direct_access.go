package bcsv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/filecodec"
	"github.com/bcsv-io/bcsv/internal/lz4x"
	"github.com/bcsv-io/bcsv/internal/options"
	"github.com/bcsv-io/bcsv/internal/pool"
	"github.com/bcsv-io/bcsv/internal/vle"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/row"
	"github.com/bcsv-io/bcsv/rowcodec"
	"github.com/bcsv-io/bcsv/wire"
)

// ReaderDirectAccess extends Reader with footer-backed random access:
// ReadAt seeks directly to the packet containing a given row index,
// instead of reading sequentially from the start, and caches that packet's
// materialized rows for O(1) repeated access within it.
type ReaderDirectAccess struct {
	*Reader

	footer  *wire.FileFooter
	dataEnd int64 // byte offset where the packet index's footer begins

	cachedPacket int // index into footer.Entries of the cached packet, or -1
	cachedStart  uint64
	cachedRows   [][]byte

	flatCodec *rowcodec.Flat001 // flattens a decoded row into a canonical snapshot
}

// NewReaderDirectAccess opens path like NewReader, additionally reading the
// trailing FileFooter (byte offset + first row index per packet, plus the
// total row count). If the footer is missing or corrupt, NewReaderDirectAccess fails with
// the error from wire.ReadFileFooter unless WithRebuildFooter(true) is
// supplied, in which case the footer is reconstructed by scanning forward
// through packet headers. Fails with errs.ErrCorruptedFile if the file was
// written in stream mode or with NO_FILE_INDEX, since neither carries a
// packet index to seek with.
func NewReaderDirectAccess(path string, opts ...ReaderOption) (*ReaderDirectAccess, error) {
	cfg := NewReaderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	ra, err := newReaderDirectAccess(r, cfg)
	if err != nil {
		r.Close()
		return nil, err
	}
	return ra, nil
}

func newReaderDirectAccess(r *Reader, cfg *ReaderConfig) (*ReaderDirectAccess, error) {
	if r.header.Flags.StreamMode() || r.header.Flags.NoFileIndex() {
		return nil, fmt.Errorf("%w: file has no packet index (stream mode or NO_FILE_INDEX)", errs.ErrCorruptedFile)
	}

	info, err := r.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %v", errs.ErrIO, err)
	}
	fileSize := info.Size()

	footer, err := wire.ReadFileFooter(r.file, fileSize)
	if err == nil {
		return &ReaderDirectAccess{
			Reader:       r,
			footer:       footer,
			dataEnd:      fileSize - int64(len(footer.Bytes())),
			cachedPacket: -1,
			flatCodec:    rowcodec.NewFlat001(r.header.Layout),
		}, nil
	}
	if !cfg.rebuildFooter {
		return nil, err
	}

	footer, dataEnd, err := rebuildFooter(r.file, fileSize, r.header, r.fileCodecID, cfg.maxFooterScanBytes)
	if err != nil {
		return nil, err
	}

	return &ReaderDirectAccess{
		Reader:       r,
		footer:       footer,
		dataEnd:      dataEnd,
		cachedPacket: -1,
		flatCodec:    rowcodec.NewFlat001(r.header.Layout),
	}, nil
}

// RowCount returns the file's total row count, as recorded in the footer.
func (ra *ReaderDirectAccess) RowCount() uint64 {
	return ra.footer.RowCount
}

// ReadAt decodes the row at the given 0-based index into ra.Row(), binary
// searching the packet index for the packet containing it and decoding
// that packet's rows from its start (required for ZoH001, whose rows are
// relative to the previous row in the packet). Seeking into a different
// packet than the one currently cached invalidates the cache.
func (ra *ReaderDirectAccess) ReadAt(index uint64) error {
	if index >= ra.footer.RowCount {
		return fmt.Errorf("%w: row index %d out of range (%d rows)", errs.ErrCorruptedFile, index, ra.footer.RowCount)
	}

	packetIdx := sort.Search(len(ra.footer.Entries), func(i int) bool {
		return ra.footer.Entries[i].FirstRow > index
	}) - 1
	if packetIdx < 0 {
		return fmt.Errorf("%w: no packet covers row index %d", errs.ErrCorruptedFile, index)
	}

	if packetIdx != ra.cachedPacket {
		if err := ra.loadPacket(packetIdx); err != nil {
			return err
		}
	}

	offset := index - ra.cachedStart
	if int(offset) >= len(ra.cachedRows) {
		return fmt.Errorf("%w: row index %d not found in its packet", errs.ErrCorruptedFile, index)
	}

	return ra.flatCodec.Deserialize(ra.cachedRows[offset], ra.row)
}

// loadPacket decodes every row of footer.Entries[packetIdx] into a
// canonical flattened snapshot (via a dedicated Flat001 codec, independent
// of the file's own row format), discarding the prior cache.
func (ra *ReaderDirectAccess) loadPacket(packetIdx int) error {
	entry := ra.footer.Entries[packetIdx]

	end := ra.dataEnd
	if packetIdx+1 < len(ra.footer.Entries) {
		end = int64(ra.footer.Entries[packetIdx+1].ByteOffset)
	}

	section := io.NewSectionReader(ra.file, int64(entry.ByteOffset), end-int64(entry.ByteOffset))
	buffered := bufio.NewReader(section)

	fc, err := filecodec.New(ra.fileCodecID)
	if err != nil {
		return err
	}
	defer fc.Close()
	if err := fc.SetupRead(buffered, ra.header); err != nil {
		return err
	}

	rc, err := rowcodec.New(ra.rowFormat, ra.header.Layout)
	if err != nil {
		return err
	}

	tmpRow := row.New(ra.header.Layout)
	scratch := pool.NewByteBuffer(pool.RowBufferDefaultSize)

	var rows [][]byte
	for {
		status, data, err := fc.ReadRow(buffered)
		if err != nil {
			return err
		}
		if status == filecodec.RowEOF {
			break
		}
		if fc.PacketBoundaryCrossed() {
			break
		}
		if status == filecodec.RowOK {
			if err := rc.Deserialize(data, tmpRow); err != nil {
				return err
			}
		}
		// RowZoHRepeat: tmpRow already holds the previous row's values.

		scratch.Reset()
		if _, err := ra.flatCodec.Serialize(tmpRow, scratch); err != nil {
			return err
		}
		snapshot := make([]byte, scratch.Len())
		copy(snapshot, scratch.Bytes())
		rows = append(rows, snapshot)
	}

	ra.cachedPacket = packetIdx
	ra.cachedStart = entry.FirstRow
	ra.cachedRows = rows
	return nil
}

// rebuildFooter reconstructs a FileFooter by scanning forward through
// packet headers starting just after the file header, validating each
// header's self-checksum and counting rows per packet by VLE-stepping
// through its body. Scanning stops at the first offset that is not a valid
// packet header (the file's footer remnant, or simply EOF).
//
// Grounded on original_source/include/bcsv/packet_header.h's readNext
// sliding-window scan, adapted here to scan by absolute offset via
// io.ReaderAt rather than a stream's get/unget.
func rebuildFooter(ra io.ReaderAt, fileSize int64, header *wire.FileHeader, fcID filecodec.ID, maxScanBytes int64) (*wire.FileFooter, int64, error) {
	headerBytes, err := header.Bytes()
	if err != nil {
		return nil, 0, err
	}
	pos := int64(len(headerBytes))

	limit := fileSize
	if maxScanBytes > 0 && pos+maxScanBytes < limit {
		limit = pos + maxScanBytes
	}

	var entries []wire.PacketIndexEntry
	var rowCount uint64

	for pos+wire.PacketHeaderSize <= limit {
		hdrBuf := make([]byte, wire.PacketHeaderSize)
		if _, err := ra.ReadAt(hdrBuf, pos); err != nil {
			break
		}
		ph, err := wire.ParsePacketHeader(hdrBuf)
		if err != nil {
			break
		}

		entries = append(entries, wire.PacketIndexEntry{ByteOffset: uint64(pos), FirstRow: ph.FirstRowIndex})

		bodyPos := pos + wire.PacketHeaderSize
		var rows uint64
		var bodyLen int64
		if fcID == filecodec.PacketLZ4Batch001 {
			rows, bodyLen, err = scanBatchPacketBody(ra, bodyPos, limit)
		} else {
			rows, bodyLen, err = scanFramedPacketBody(ra, bodyPos, limit)
		}
		if err != nil {
			return nil, 0, err
		}

		rowCount = ph.FirstRowIndex + rows
		pos = bodyPos + bodyLen
	}

	if len(entries) == 0 {
		return nil, 0, fmt.Errorf("%w: no valid packets found while rebuilding footer", errs.ErrCorruptedFile)
	}

	return &wire.FileFooter{Entries: entries, RowCount: rowCount}, pos, nil
}

// scanFramedPacketBody steps through a Packet001/PacketLZ4001-framed
// packet body (BLE row-length prefixes, rows opaque to this scan) until it
// finds limits.PacketTerminator, returning the row count and the total
// body length including the terminator and its trailing checksum.
func scanFramedPacketBody(ra io.ReaderAt, bodyPos, limit int64) (rows uint64, bodyLen int64, err error) {
	buf := make([]byte, limit-bodyPos)
	n, readErr := ra.ReadAt(buf, bodyPos)
	if readErr != nil && readErr != io.EOF {
		return 0, 0, fmt.Errorf("%w: reading packet body: %v", errs.ErrIO, readErr)
	}
	buf = buf[:n]

	off := 0
	for {
		if off >= len(buf) {
			return 0, 0, fmt.Errorf("%w: packet terminator not found before scan limit", errs.ErrCorruptedFile)
		}
		length, consumed, derr := vle.DecodeTruncatedBytes(buf[off:])
		if derr != nil {
			return 0, 0, fmt.Errorf("%w: decoding row length while rebuilding footer: %v", errs.ErrCorruptedFile, derr)
		}
		off += consumed

		if length == limits.PacketTerminator {
			return rows, int64(off + 8), nil
		}
		rows++
		off += int(length)
	}
}

// scanBatchPacketBody decodes a PacketLZ4Batch001 packet body (uint32
// uncompressed size, uint32 compressed size, LZ4 block, uint64 checksum),
// decompresses it, and VLE-steps the decompressed payload the same way
// scanFramedPacketBody does to count rows.
func scanBatchPacketBody(ra io.ReaderAt, bodyPos, limit int64) (rows uint64, bodyLen int64, err error) {
	sizes := make([]byte, 8)
	if _, err := ra.ReadAt(sizes, bodyPos); err != nil {
		return 0, 0, fmt.Errorf("%w: reading batch packet sizes: %v", errs.ErrIO, err)
	}
	uncompressedSize := binary.LittleEndian.Uint32(sizes[0:4])
	compressedSize := binary.LittleEndian.Uint32(sizes[4:8])

	blockStart := bodyPos + 8
	if blockStart+int64(compressedSize)+8 > limit {
		return 0, 0, fmt.Errorf("%w: batch packet extends past scan limit", errs.ErrCorruptedFile)
	}

	block := make([]byte, compressedSize)
	if _, err := ra.ReadAt(block, blockStart); err != nil {
		return 0, 0, fmt.Errorf("%w: reading batch packet block: %v", errs.ErrIO, err)
	}

	payload, err := lz4x.DecodeBlock(block, int(uncompressedSize))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lz4 decompressing batch packet: %v", errs.ErrIO, err)
	}

	off := 0
	for {
		if off >= len(payload) {
			return 0, 0, fmt.Errorf("%w: batch packet terminator not found", errs.ErrCorruptedFile)
		}
		length, consumed, derr := vle.DecodeTruncatedBytes(payload[off:])
		if derr != nil {
			return 0, 0, fmt.Errorf("%w: decoding row length while rebuilding batch footer: %v", errs.ErrCorruptedFile, derr)
		}
		off += consumed
		if length == limits.PacketTerminator {
			break
		}
		rows++
		off += int(length)
	}

	return rows, 8 + int64(compressedSize) + 8, nil
}
