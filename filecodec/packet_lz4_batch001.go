package filecodec

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/lz4x"
	"github.com/bcsv-io/bcsv/internal/pool"
	"github.com/bcsv-io/bcsv/internal/vle"
	"github.com/bcsv-io/bcsv/internal/xsum"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/wire"
)

// bgTask names the work item handed to packetLZ4Batch001's background
// goroutine. The zero value, bgIdle, is also the "nothing to do, safe to
// hand off a new buffer" rest state the main goroutine waits for.
type bgTask int

const (
	bgIdle bgTask = iota
	bgCompressWrite
	bgReadDecompress
	bgShutdown
)

// packetLZ4Batch001 compresses and writes (or reads and decompresses) one
// entire packet's raw payload as a single LZ4 block on a dedicated
// background goroutine, double-buffered against the main goroutine's
// writeRow()/readRow() calls so those stay O(memcpy) / O(VLE-decode).
//
// Wire format per packet:
//
//	PacketHeader (16 bytes)
//	uint32(uncompressed_size)
//	uint32(compressed_size)
//	LZ4 block (compressed_size bytes)
//	uint64(payload checksum)    — xxHash64 of the uncompressed payload
//
// Uncompressed payload: BLE(row_len) | row_bytes, repeated, terminated by
// BLE(PacketTerminator).
//
// Synchronization protocol: the main goroutine and the background goroutine
// communicate solely through mu/cond guarding bgTask. Fields the main
// goroutine writes before handing off a task (bgFirstRow, bgReadTargetIdx,
// the raw/read buffer pointers being swapped) are written before the
// bgTask store that wakes the background goroutine; fields the background
// goroutine writes (bgHasNextPacket, bgErr, packetIndex) are written before
// it stores bgTask=bgIdle and signals back. Every other field is touched by
// exactly one goroutine. This mirrors
// original_source/include/bcsv/file_codec_packet_lz4_batch001.h's
// mutex+condition_variable handoff, with Go's channel-free sync.Cond taking
// the place of its std::condition_variable.
//
// Grounded on
// original_source/include/bcsv/file_codec_packet_lz4_batch001.h.
type packetLZ4Batch001 struct {
	w                io.Writer
	r                io.Reader
	compressionLevel int

	packetSizeLimit       uint64
	buildIndex            bool
	packetIndex           []wire.PacketIndexEntry
	offset                int64
	currentPacketFirstRow uint64
	packetOpen            bool
	packetBoundaryCrossed bool

	// Double-buffered raw payload, write side. Main owns rawActive;
	// background owns rawBG between handoffs.
	rawA, rawB *pool.ByteBuffer
	rawActive  *pool.ByteBuffer
	rawBG      *pool.ByteBuffer

	// Double-buffered decompressed payload, read side. Main owns
	// readBufs[readCurrentIdx]; background decompresses into the other.
	readBufs       [2][]byte
	readCurrentIdx int
	readCursor     int

	bgFirstRow        uint64
	bgReadTargetIdx   int
	bgHasNextPacket   bool
	compressedReadBuf []byte

	mu        sync.Mutex
	cond      *sync.Cond
	wg        sync.WaitGroup
	bgTask    bgTask
	bgErr     error
	bgRunning bool
}

func newPacketLZ4Batch001() *packetLZ4Batch001 {
	c := &packetLZ4Batch001{
		rawA: pool.NewByteBuffer(pool.PacketBufferDefaultSize),
		rawB: pool.NewByteBuffer(pool.PacketBufferDefaultSize),
	}
	c.cond = sync.NewCond(&c.mu)
	c.rawActive, c.rawBG = c.rawA, c.rawB
	return c
}

// ── Setup ────────────────────────────────────────────────────────────────

func (c *packetLZ4Batch001) SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error {
	c.shutdownBgThread()

	c.w = w
	c.packetSizeLimit = uint64(header.PacketSize)
	c.buildIndex = !header.Flags.NoFileIndex()
	c.packetIndex = nil
	c.compressionLevel = int(header.CompressionLevel)
	c.offset = byteOffset
	c.currentPacketFirstRow = 0

	c.rawA.Reset()
	c.rawB.Reset()
	c.rawActive, c.rawBG = c.rawA, c.rawB

	c.startBgThread()
	return nil
}

func (c *packetLZ4Batch001) SetupRead(r io.Reader, header *wire.FileHeader) error {
	c.shutdownBgThread()

	c.r = r
	c.readBufs[0] = nil
	c.readBufs[1] = nil
	c.readCurrentIdx = 0
	c.readCursor = 0

	ok, err := c.readAndDecompressPacket(r, 0)
	if err != nil {
		return err
	}
	c.packetOpen = ok

	if c.packetOpen {
		c.startBgThread()
		c.startTask(bgReadDecompress, func() { c.bgReadTargetIdx = 1 })
	}
	return nil
}

// ── Write lifecycle ───────────────────────────────────────────────────────

func (c *packetLZ4Batch001) BeginWrite(w io.Writer, rowCount uint64) (bool, error) {
	if err := c.rethrowBgErr(); err != nil {
		return false, err
	}

	if uint64(c.rawActive.Len()) >= c.packetSizeLimit {
		c.appendTerminator()

		c.waitForBgIdle()
		if err := c.rethrowBgErr(); err != nil {
			return false, err
		}

		firstRow := c.currentPacketFirstRow
		c.rawActive, c.rawBG = c.rawBG, c.rawActive
		c.startTask(bgCompressWrite, func() { c.bgFirstRow = firstRow })

		c.currentPacketFirstRow = rowCount
		return true, nil
	}

	return false, nil
}

func (c *packetLZ4Batch001) WriteRow(w io.Writer, rowData []byte) error {
	var lenBuf [10]byte
	if len(rowData) == 0 {
		c.rawActive.MustWrite(vle.AppendTruncated(lenBuf[:0], 0))
		return nil
	}

	c.rawActive.MustWrite(vle.AppendTruncated(lenBuf[:0], uint64(len(rowData))))
	c.rawActive.MustWrite(rowData)
	return nil
}

func (c *packetLZ4Batch001) Finalize(w io.Writer, totalRows uint64) error {
	defer c.shutdownBgThread()

	if c.rawActive.Len() > 0 {
		c.appendTerminator()

		c.waitForBgIdle()
		if err := c.rethrowBgErr(); err != nil {
			return err
		}

		firstRow := c.currentPacketFirstRow
		c.rawActive, c.rawBG = c.rawBG, c.rawActive
		c.startTask(bgCompressWrite, func() { c.bgFirstRow = firstRow })

		c.waitForBgIdle()
		if err := c.rethrowBgErr(); err != nil {
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

func (c *packetLZ4Batch001) appendTerminator() {
	var buf [10]byte
	c.rawActive.MustWrite(vle.AppendTruncated(buf[:0], limits.PacketTerminator))
}

// ── Read lifecycle ────────────────────────────────────────────────────────

func (c *packetLZ4Batch001) ReadRow(r io.Reader) (RowStatus, []byte, error) {
	if err := c.rethrowBgErr(); err != nil {
		return RowEOF, nil, err
	}
	c.packetBoundaryCrossed = false

	if !c.packetOpen {
		return RowEOF, nil, nil
	}

	for {
		cur := c.readBufs[c.readCurrentIdx]
		remaining := len(cur) - c.readCursor
		if remaining == 0 {
			c.packetOpen = false
			return RowEOF, nil, nil
		}

		rowLen, consumed, err := vle.DecodeTruncatedBytes(cur[c.readCursor:])
		if err != nil {
			return RowEOF, nil, fmt.Errorf("%w: decoding row length: %v", errs.ErrCorruptedFile, err)
		}
		c.readCursor += consumed

		if rowLen != limits.PacketTerminator {
			if rowLen == 0 {
				return RowZoHRepeat, nil, nil
			}
			if rowLen > limits.MaxRowLength {
				return RowEOF, nil, fmt.Errorf("%w: row length %d exceeds maximum %d", errs.ErrCorruptedFile, rowLen, limits.MaxRowLength)
			}

			remaining = len(cur) - c.readCursor
			if rowLen > uint64(remaining) {
				return RowEOF, nil, fmt.Errorf("%w: row data truncated in decompressed packet", errs.ErrCorruptedFile)
			}

			data := cur[c.readCursor : c.readCursor+int(rowLen)]
			c.readCursor += int(rowLen)
			return RowOK, data, nil
		}

		// Packet terminator: the background goroutine should already be
		// pre-reading the next packet into the other buffer.
		c.waitForBgIdle()
		if err := c.rethrowBgErr(); err != nil {
			return RowEOF, nil, err
		}

		if !c.bgHasNextPacket {
			c.packetOpen = false
			return RowEOF, nil, nil
		}

		c.readCurrentIdx = 1 - c.readCurrentIdx
		c.readCursor = 0
		c.packetBoundaryCrossed = true

		nextIdx := 1 - c.readCurrentIdx
		c.startTask(bgReadDecompress, func() { c.bgReadTargetIdx = nextIdx })
	}
}

func (c *packetLZ4Batch001) PacketBoundaryCrossed() bool { return c.packetBoundaryCrossed }

func (c *packetLZ4Batch001) Reset() {
	// Block-mode LZ4 carries no cross-call dictionary to reset; each
	// packet's checksum is self-contained and computed fresh by the
	// background goroutine.
}

func (c *packetLZ4Batch001) PacketIndex() []wire.PacketIndexEntry { return c.packetIndex }

// Close stops the background compression/decompression goroutine started by
// SetupWrite or SetupRead. Finalize already shuts it down on the normal
// write-completion path; Close makes that explicit for callers (and for the
// read path, which has no other shutdown hook) and is a harmless no-op if
// the goroutine is already stopped.
func (c *packetLZ4Batch001) Close() error {
	c.shutdownBgThread()
	return nil
}

// ── Background goroutine ──────────────────────────────────────────────────

func (c *packetLZ4Batch001) startBgThread() {
	if c.bgRunning {
		return
	}
	c.bgTask = bgIdle
	c.bgErr = nil
	c.bgRunning = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.bgLoop()
	}()
}

func (c *packetLZ4Batch001) shutdownBgThread() {
	if !c.bgRunning {
		return
	}
	c.mu.Lock()
	c.bgTask = bgShutdown
	c.mu.Unlock()
	c.cond.Broadcast()
	c.wg.Wait()
	c.bgRunning = false
}

func (c *packetLZ4Batch001) startTask(task bgTask, prep func()) {
	c.mu.Lock()
	if prep != nil {
		prep()
	}
	c.bgTask = task
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *packetLZ4Batch001) waitForBgIdle() {
	c.mu.Lock()
	for c.bgTask != bgIdle {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

func (c *packetLZ4Batch001) rethrowBgErr() error {
	c.mu.Lock()
	err := c.bgErr
	c.bgErr = nil
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrBackgroundTask, err)
	}
	return nil
}

func (c *packetLZ4Batch001) bgLoop() {
	for {
		c.mu.Lock()
		for c.bgTask == bgIdle {
			c.cond.Wait()
		}
		task := c.bgTask
		c.mu.Unlock()

		if task == bgShutdown {
			return
		}

		var err error
		switch task {
		case bgCompressWrite:
			err = c.bgCompressAndWrite()
		case bgReadDecompress:
			err = c.bgReadAndDecompress()
		}

		c.mu.Lock()
		if err != nil && c.bgErr == nil {
			c.bgErr = err
		}
		c.bgTask = bgIdle
		c.mu.Unlock()
		c.cond.Broadcast()
	}
}

func (c *packetLZ4Batch001) bgCompressAndWrite() error {
	if c.buildIndex {
		c.packetIndex = append(c.packetIndex, wire.PacketIndexEntry{
			ByteOffset: uint64(c.offset),
			FirstRow:   c.bgFirstRow,
		})
	}

	ph := &wire.PacketHeader{FirstRowIndex: c.bgFirstRow}
	if n, err := c.w.Write(ph.Bytes()); err != nil {
		return fmt.Errorf("%w: writing packet header: %v", errs.ErrIO, err)
	} else {
		c.offset += int64(n)
	}

	payload := c.rawBG.Bytes()
	checksum := xsum.Sum64(payload)

	encoded, err := lz4x.EncodeBlock(payload, c.compressionLevel)
	if err != nil {
		return fmt.Errorf("%w: lz4 compressing packet: %v", errs.ErrIO, err)
	}

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(sizes[4:8], uint32(len(encoded)))
	if n, err := c.w.Write(sizes[:]); err != nil {
		return fmt.Errorf("%w: writing packet sizes: %v", errs.ErrIO, err)
	} else {
		c.offset += int64(n)
	}

	if n, err := c.w.Write(encoded); err != nil {
		return fmt.Errorf("%w: writing compressed packet: %v", errs.ErrIO, err)
	} else {
		c.offset += int64(n)
	}

	var chkBuf [8]byte
	binary.LittleEndian.PutUint64(chkBuf[:], checksum)
	if n, err := c.w.Write(chkBuf[:]); err != nil {
		return fmt.Errorf("%w: writing packet checksum: %v", errs.ErrIO, err)
	} else {
		c.offset += int64(n)
	}

	c.rawBG.Reset()
	return nil
}

func (c *packetLZ4Batch001) bgReadAndDecompress() error {
	ok, err := c.readAndDecompressPacket(c.r, c.bgReadTargetIdx)
	c.bgHasNextPacket = ok
	return err
}

// readAndDecompressPacket reads one batch-compressed packet from r and
// decompresses it into c.readBufs[idx]. It returns false (no error) when
// the next bytes are the file footer's "BIDX" marker or a clean io.EOF.
func (c *packetLZ4Batch001) readAndDecompressPacket(r io.Reader, idx int) (bool, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, fmt.Errorf("%w: reading packet header: %v", errs.ErrIO, err)
	}

	if string(magicBuf[:]) == "BIDX" {
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

	var sizes [8]byte
	if _, err := io.ReadFull(r, sizes[:]); err != nil {
		return false, fmt.Errorf("%w: reading packet sizes: %v", errs.ErrIO, err)
	}
	uncompressedSize := binary.LittleEndian.Uint32(sizes[0:4])
	compressedSize := binary.LittleEndian.Uint32(sizes[4:8])
	if uint64(uncompressedSize) > limits.MaxPacketSize || uint64(compressedSize) > limits.MaxPacketSize {
		return false, fmt.Errorf("%w: packet size exceeds maximum", errs.ErrCorruptedFile)
	}

	if cap(c.compressedReadBuf) < int(compressedSize) {
		c.compressedReadBuf = make([]byte, compressedSize)
	} else {
		c.compressedReadBuf = c.compressedReadBuf[:compressedSize]
	}
	if _, err := io.ReadFull(r, c.compressedReadBuf); err != nil {
		return false, fmt.Errorf("%w: reading compressed packet: %v", errs.ErrIO, err)
	}

	var chkBuf [8]byte
	if _, err := io.ReadFull(r, chkBuf[:]); err != nil {
		return false, fmt.Errorf("%w: reading packet checksum: %v", errs.ErrIO, err)
	}
	expectedChecksum := binary.LittleEndian.Uint64(chkBuf[:])

	decompressed, err := lz4x.DecodeBlock(c.compressedReadBuf, int(uncompressedSize))
	if err != nil {
		return false, fmt.Errorf("%w: lz4 decompressing packet: %v", errs.ErrIO, err)
	}

	actualChecksum := xsum.Sum64(decompressed)
	if actualChecksum != expectedChecksum {
		return false, fmt.Errorf("%w: packet checksum", errs.ErrChecksumMismatch)
	}

	c.readBufs[idx] = decompressed
	return true, nil
}
