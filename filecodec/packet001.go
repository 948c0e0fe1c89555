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

// packet001 is the packet-structured, uncompressed file codec: every packet
// opens with a PacketHeader and closes with a terminator and an xxHash64
// checksum over the packet's VLE lengths and row payloads. Packet framing
// gives crash recovery (read up to the last fully-written packet) and
// random access (via the packet index / FileFooter), without the CPU cost
// of compression.
//
// Wire format per packet:
//
//	PacketHeader (16 bytes)
//	BLE(row_len) | row_bytes    — repeated
//	BLE(PacketTerminator)
//	uint64(payload checksum)    — xxHash64 of all VLE lengths + row payloads
//
// ReadRow requires its io.Reader argument to also implement io.ByteReader
// (e.g. *bufio.Reader) — every row length is decoded one byte at a time so
// it can be fed into the running packet checksum as it's read.
//
// Grounded on original_source/include/bcsv/file_codec_packet001.h.
type packet001 struct {
	readBuf []byte

	packetHash            *xsum.Streaming
	packetOpen            bool
	packetBoundaryCrossed bool
	packetSize            uint64
	packetSizeLimit       uint64
	buildIndex            bool
	packetIndex           []wire.PacketIndexEntry
	offset                int64
}

func newPacket001() *packet001 {
	return &packet001{packetHash: xsum.NewStreaming()}
}

func (c *packet001) SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error {
	c.packetSizeLimit = uint64(header.PacketSize)
	c.buildIndex = !header.Flags.NoFileIndex()
	c.packetIndex = nil
	c.offset = byteOffset
	return nil
}

func (c *packet001) SetupRead(r io.Reader, header *wire.FileHeader) error {
	c.packetSizeLimit = uint64(header.PacketSize)
	open, err := c.openPacketRead(r)
	if err != nil {
		return err
	}
	c.packetOpen = open
	return nil
}

func (c *packet001) BeginWrite(w io.Writer, rowCount uint64) (bool, error) {
	if c.packetOpen && c.packetSize >= c.packetSizeLimit {
		if err := c.closePacket(w); err != nil {
			return false, err
		}
	}

	if !c.packetOpen {
		if err := c.openPacket(w, rowCount); err != nil {
			return false, err
		}
		return rowCount > 0, nil
	}

	return false, nil
}

func (c *packet001) WriteRow(w io.Writer, rowData []byte) error {
	if len(rowData) == 0 {
		return c.writeRowLengthChecksummed(w, 0)
	}

	if err := c.writeRowLengthChecksummed(w, uint64(len(rowData))); err != nil {
		return err
	}
	n, err := w.Write(rowData)
	if err != nil {
		return fmt.Errorf("%w: writing row payload: %v", errs.ErrIO, err)
	}
	c.offset += int64(n)
	c.packetHash.Update(rowData)
	c.packetSize += uint64(len(rowData))
	return nil
}

func (c *packet001) Finalize(w io.Writer, totalRows uint64) error {
	if c.packetOpen {
		if err := c.closePacket(w); err != nil {
			return err
		}
	}

	if !c.buildIndex {
		return nil
	}
	footer := &wire.FileFooter{Entries: c.packetIndex, RowCount: totalRows}
	if _, err := w.Write(footer.Bytes()); err != nil {
		return fmt.Errorf("%w: writing file footer: %v", errs.ErrIO, err)
	}
	return nil
}

func (c *packet001) ReadRow(r io.Reader) (RowStatus, []byte, error) {
	c.packetBoundaryCrossed = false

	if !c.packetOpen {
		return RowEOF, nil, nil
	}

	br, ok := r.(io.ByteReader)
	if !ok {
		return RowEOF, nil, fmt.Errorf("%w: packet001.ReadRow requires an io.ByteReader", errs.ErrIO)
	}

	rowLen, err := c.decodeLengthChecksummed(br)
	if err != nil {
		return RowEOF, nil, nil
	}

	for rowLen == limits.PacketTerminator {
		if err := c.closePacketRead(r); err != nil {
			return RowEOF, nil, err
		}
		open, err := c.openPacketRead(r)
		if err != nil {
			return RowEOF, nil, err
		}
		c.packetOpen = open
		if !c.packetOpen {
			return RowEOF, nil, nil
		}
		c.packetBoundaryCrossed = true

		rowLen, err = c.decodeLengthChecksummed(br)
		if err != nil {
			return RowEOF, nil, nil
		}
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
		return RowEOF, nil, fmt.Errorf("%w: reading row payload: %v", errs.ErrIO, err)
	}
	c.packetHash.Update(c.readBuf)

	return RowOK, c.readBuf, nil
}

func (c *packet001) PacketBoundaryCrossed() bool { return c.packetBoundaryCrossed }

func (c *packet001) Reset() {
	c.packetHash.Reset()
	c.packetSize = 0
}

func (c *packet001) PacketIndex() []wire.PacketIndexEntry { return c.packetIndex }

func (c *packet001) Close() error { return nil }

// openPacket writes a new PacketHeader and resets per-packet write state.
func (c *packet001) openPacket(w io.Writer, firstRowIndex uint64) error {
	if c.buildIndex {
		c.packetIndex = append(c.packetIndex, wire.PacketIndexEntry{
			ByteOffset: uint64(c.offset),
			FirstRow:   firstRowIndex,
		})
	}

	ph := &wire.PacketHeader{FirstRowIndex: firstRowIndex}
	data := ph.Bytes()
	n, err := w.Write(data)
	if err != nil {
		return fmt.Errorf("%w: writing packet header: %v", errs.ErrIO, err)
	}
	c.offset += int64(n)

	c.packetSize = 0
	c.packetHash.Reset()
	c.packetOpen = true
	return nil
}

// closePacket writes the packet terminator and payload checksum.
func (c *packet001) closePacket(w io.Writer) error {
	if !c.packetOpen {
		return nil
	}

	if err := c.writeRowLengthChecksummed(w, limits.PacketTerminator); err != nil {
		return err
	}

	hash := c.packetHash.Finalize()
	var hashBuf [8]byte
	binary.LittleEndian.PutUint64(hashBuf[:], hash)
	n, err := w.Write(hashBuf[:])
	if err != nil {
		return fmt.Errorf("%w: writing packet checksum: %v", errs.ErrIO, err)
	}
	c.offset += int64(n)

	c.packetOpen = false
	return nil
}

// writeRowLengthChecksummed writes a truncated-mode VLE length and folds
// its raw bytes into the running packet checksum.
func (c *packet001) writeRowLengthChecksummed(w io.Writer, length uint64) error {
	var buf [10]byte
	encoded := vle.AppendTruncated(buf[:0], length)
	n, err := w.Write(encoded)
	if err != nil {
		return fmt.Errorf("%w: writing row length: %v", errs.ErrIO, err)
	}
	c.offset += int64(n)
	c.packetHash.Update(encoded)
	c.packetSize += uint64(len(encoded))
	return nil
}

// decodeLengthChecksummed reads a truncated-mode VLE length one byte at a
// time, folding each consumed byte into the running packet checksum.
func (c *packet001) decodeLengthChecksummed(br io.ByteReader) (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		c.packetHash.Update([]byte{b})
		if shift >= 63 {
			return 0, errs.ErrInvalidEncoding
		}
		value |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
}

// openPacketRead reads the next PacketHeader from r. It returns false (no
// error) when the bytes at the current position are the file footer's
// "BIDX" marker instead of a packet header, and treats a clean io.EOF the
// same way — both mean there is nothing left to read.
func (c *packet001) openPacketRead(r io.Reader) (bool, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		c.packetHash.Reset()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, fmt.Errorf("%w: reading packet header: %v", errs.ErrIO, err)
	}

	if string(magicBuf[:]) == "BIDX" {
		c.packetHash.Reset()
		return false, nil
	}

	if binary.LittleEndian.Uint32(magicBuf[:]) != wire.PacketMagic {
		return false, fmt.Errorf("%w: unexpected packet header magic", errs.ErrInvalidMagic)
	}

	rest := make([]byte, wire.PacketHeaderSize-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return false, fmt.Errorf("%w: reading packet header: %v", errs.ErrIO, err)
	}

	full := append(append([]byte{}, magicBuf[:]...), rest...)
	if _, err := wire.ParsePacketHeader(full); err != nil {
		return false, err
	}

	c.packetHash.Reset()
	return true, nil
}

// closePacketRead reads and validates the trailing packet checksum.
func (c *packet001) closePacketRead(r io.Reader) error {
	var hashBuf [8]byte
	if _, err := io.ReadFull(r, hashBuf[:]); err != nil {
		return fmt.Errorf("%w: reading packet checksum: %v", errs.ErrIO, err)
	}

	want := binary.LittleEndian.Uint64(hashBuf[:])
	got := c.packetHash.Finalize()
	if got != want {
		return fmt.Errorf("%w: packet checksum", errs.ErrChecksumMismatch)
	}
	return nil
}
