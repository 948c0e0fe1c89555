package bcsv

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/filecodec"
	"github.com/bcsv-io/bcsv/internal/options"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/row"
	"github.com/bcsv-io/bcsv/rowcodec"
	"github.com/bcsv-io/bcsv/wire"
)

// Reader reads rows sequentially from a BCSV file. A Reader owns a single
// *row.Row holding the most recently deserialized row, plus one row codec
// and one file codec selected from the file header by NewReader. A Reader is
// not safe for concurrent use.
type Reader struct {
	file     *os.File
	buffered *bufio.Reader
	path     string

	header *wire.FileHeader
	row    *row.Row

	rowCodec    rowcodec.Codec
	rowFormat   rowcodec.Format
	fileCodec   filecodec.Codec
	fileCodecID filecodec.ID

	rowPos uint64
	closed bool
}

// NewReader opens path for sequential reading. It reads and validates the
// FileHeader (magic and version compatibility), selects the row and file
// codecs the header's flags and compression level name, and initializes
// the file codec for read (which for packet codecs opens the first
// packet).
func NewReader(path string, opts ...ReaderOption) (*Reader, error) {
	cfg := NewReaderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		case os.IsPermission(err):
			return nil, fmt.Errorf("%w: %s", errs.ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrIO, path, err)
		}
	}

	r, err := newReader(file, path)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func newReader(file *os.File, path string) (*Reader, error) {
	buffered := bufio.NewReader(file)

	header, err := wire.ParseFileHeader(buffered)
	if err != nil {
		return nil, err
	}

	rowFormat := rowcodec.FormatFlat
	if header.Flags.ZeroOrderHold() {
		rowFormat = rowcodec.FormatZoH
	}
	rc, err := rowcodec.New(rowFormat, header.Layout)
	if err != nil {
		return nil, err
	}

	fcID := filecodec.Resolve(header.CompressionLevel, header.Flags)
	fc, err := filecodec.New(fcID)
	if err != nil {
		return nil, err
	}
	if err := fc.SetupRead(buffered, header); err != nil {
		return nil, err
	}

	return &Reader{
		file:        file,
		buffered:    buffered,
		path:        path,
		header:      header,
		row:         row.New(header.Layout),
		rowCodec:    rc,
		rowFormat:   rowFormat,
		fileCodec:   fc,
		fileCodecID: fcID,
	}, nil
}

// ReadNext advances to the next row, returning (true, nil) on success and
// (false, nil) at end of file. A ZoH-repeat row leaves the Reader's row
// unchanged from the previous call (still counted in RowPos); it is an
// error (errs.ErrCorruptedFile) if the file's ZERO_ORDER_HOLD flag is not
// set, or if the repeat is the first row of a non-empty schema.
func (r *Reader) ReadNext() (bool, error) {
	if r.closed {
		return false, errs.ErrClosed
	}

	status, data, err := r.fileCodec.ReadRow(r.buffered)
	if err != nil {
		return false, err
	}
	if r.fileCodec.PacketBoundaryCrossed() {
		r.rowCodec.Reset()
	}

	switch status {
	case filecodec.RowEOF:
		return false, nil

	case filecodec.RowZoHRepeat:
		if !r.header.Flags.ZeroOrderHold() {
			return false, fmt.Errorf("%w: zero-order-hold repeat seen but ZERO_ORDER_HOLD flag is not set", errs.ErrCorruptedFile)
		}
		if r.rowPos == 0 && r.header.Layout.Len() > 0 {
			return false, fmt.Errorf("%w: zero-order-hold repeat as first row", errs.ErrCorruptedFile)
		}
		r.rowPos++
		return true, nil

	default: // filecodec.RowOK
		if err := r.rowCodec.Deserialize(data, r.row); err != nil {
			return false, err
		}
		r.rowPos++
		return true, nil
	}
}

// Row returns the Reader's owned row, holding the most recently
// deserialized values. The same *row.Row is returned every call.
func (r *Reader) Row() *row.Row {
	return r.row
}

// RowPos returns the number of rows successfully read so far (the position
// the next ReadNext call will land on).
func (r *Reader) RowPos() uint64 {
	return r.rowPos
}

// Layout returns the schema read from the file's header.
func (r *Reader) Layout() *layout.Layout {
	return r.header.Layout
}

// FilePath returns the path the Reader was opened with.
func (r *Reader) FilePath() string {
	return r.path
}

// Close releases the file codec's resources (e.g. the batch codec's
// background goroutine) and closes the underlying file. Close is
// idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	codecErr := r.fileCodec.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return codecErr
}
