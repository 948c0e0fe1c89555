package bcsv

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/filecodec"
	"github.com/bcsv-io/bcsv/internal/options"
	"github.com/bcsv-io/bcsv/internal/pool"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/row"
	"github.com/bcsv-io/bcsv/rowcodec"
	"github.com/bcsv-io/bcsv/wire"
)

// Writer serializes rows of a fixed Layout to a BCSV file. A Writer owns a
// single reusable *row.Row, a pooled scratch buffer for row serialization,
// and one row codec plus one file codec selected by NewWriter. A Writer is
// not safe for concurrent use: WriteRow, Flush, and Close must all be
// called from the same goroutine.
type Writer struct {
	file     *os.File
	out      *countingWriter
	buffered *bufio.Writer

	layout  *layout.Layout
	row     *row.Row
	scratch *pool.ByteBuffer

	rowCodec    rowcodec.Codec
	rowFormat   rowcodec.Format
	fileCodec   filecodec.Codec
	fileCodecID filecodec.ID

	rowCount uint64
	stats    Stats
	closed   bool
}

// NewWriter opens path for writing rows of layout l. It fails with
// errs.ErrFileExists if the file already exists and WithOverwrite was not
// supplied. On success it has already written the FileHeader (including the
// full schema) and initialized the selected row and file codecs for
// writing.
func NewWriter(path string, l *layout.Layout, opts ...WriterOption) (*Writer, error) {
	cfg := NewWriterConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !cfg.overwrite {
		flag |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		switch {
		case os.IsExist(err):
			return nil, fmt.Errorf("%w: %s", errs.ErrFileExists, path)
		case os.IsPermission(err):
			return nil, fmt.Errorf("%w: %s", errs.ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrIO, path, err)
		}
	}

	w, err := newWriter(file, l, cfg)
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(file *os.File, l *layout.Layout, cfg *WriterConfig) (*Writer, error) {
	rowFormat := rowcodec.FormatFlat
	if cfg.flags.ZeroOrderHold() {
		rowFormat = rowcodec.FormatZoH
	}
	rc, err := rowcodec.New(rowFormat, l)
	if err != nil {
		return nil, err
	}

	fcID := filecodec.Resolve(cfg.compressionLevel, cfg.flags)
	fc, err := filecodec.New(fcID)
	if err != nil {
		return nil, err
	}

	header := wire.NewFileHeader(l, cfg.compressionLevel, cfg.flags, cfg.packetSize)
	headerBytes, err := header.Bytes()
	if err != nil {
		return nil, err
	}

	out := &countingWriter{w: file}
	buffered := bufio.NewWriter(out)
	if _, err := buffered.Write(headerBytes); err != nil {
		return nil, fmt.Errorf("%w: writing file header: %v", errs.ErrIO, err)
	}

	if err := fc.SetupWrite(buffered, header, int64(len(headerBytes))); err != nil {
		return nil, err
	}

	return &Writer{
		file:        file,
		out:         out,
		buffered:    buffered,
		layout:      l,
		row:         row.New(l),
		scratch:     pool.NewByteBuffer(pool.RowBufferDefaultSize),
		rowCodec:    rc,
		rowFormat:   rowFormat,
		fileCodec:   fc,
		fileCodecID: fcID,
	}, nil
}

// Row returns the Writer's owned row for the caller to mutate before
// calling WriteRow. The same *row.Row is returned every call; WriteRow
// serializes its current contents without resetting it afterward, so
// columns left unchanged between calls carry over (needed for ZoH001's
// change tracking, harmless for Flat001).
func (w *Writer) Row() *row.Row {
	return w.row
}

// Layout returns the schema rows written through this Writer must conform
// to.
func (w *Writer) Layout() *layout.Layout {
	return w.layout
}

// WriteRow serializes the Writer's current row and appends it to the file.
// Returns errs.ErrClosed if the Writer has already been closed, and
// errs.ErrRowTooLarge if serialization exceeds limits.MaxRowLength.
func (w *Writer) WriteRow() error {
	if w.closed {
		return errs.ErrClosed
	}

	crossed, err := w.fileCodec.BeginWrite(w.buffered, w.rowCount)
	if err != nil {
		return err
	}
	if crossed {
		w.rowCodec.Reset()
	}

	w.scratch.Reset()
	n, err := w.rowCodec.Serialize(w.row, w.scratch)
	if err != nil {
		return err
	}
	if n > limits.MaxRowLength {
		return fmt.Errorf("%w: row is %d bytes", errs.ErrRowTooLarge, n)
	}

	if err := w.fileCodec.WriteRow(w.buffered, w.scratch.Bytes()); err != nil {
		return err
	}

	w.stats.UncompressedBytes += int64(n)
	w.rowCount++
	return nil
}

// Flush writes any buffered bytes to the underlying file without closing
// it.
func (w *Writer) Flush() error {
	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("%w: flushing: %v", errs.ErrIO, err)
	}
	return nil
}

// Close finalizes the file codec (writing the trailing footer for packet
// codecs unless NO_FILE_INDEX is set), flushes, and closes the underlying file. Close is idempotent:
// calling it again after a successful close returns nil and does nothing.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.fileCodec.Close()

	if err := w.fileCodec.Finalize(w.buffered, w.rowCount); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buffered.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("%w: flushing: %v", errs.ErrIO, err)
	}

	w.stats.RowCount = w.rowCount
	w.stats.PacketCount = len(w.fileCodec.PacketIndex())
	w.stats.WrittenBytes = w.out.n

	return w.file.Close()
}

// Stats reports row, packet, and byte counts accumulated so far. Call it
// after Close for final totals; PacketCount is only meaningful for file
// codecs that build a packet index (stream-mode and NO_FILE_INDEX files
// always report 0).
func (w *Writer) Stats() Stats {
	return w.stats
}

// countingWriter wraps an io.Writer, tracking total bytes written for
// Stats.WrittenBytes.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
