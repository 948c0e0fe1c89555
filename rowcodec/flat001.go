package rowcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/row"
)

// Flat001 serializes a row's complete wire representation every call:
// [bits][scalars][string lengths][string payload]. It carries no state
// between rows — every Deserialize overwrites every column.
type Flat001 struct {
	layout *layout.Layout
}

// NewFlat001 builds a Flat001 codec bound to l.
func NewFlat001(l *layout.Layout) *Flat001 {
	return &Flat001{layout: l}
}

// Reset is a no-op: Flat001 holds no cross-row state.
func (c *Flat001) Reset() {}

// Serialize writes r's full wire representation to buf and returns the
// number of bytes appended. Flat001 never returns (0, nil).
func (c *Flat001) Serialize(r *row.Row, buf ScratchBuffer) (int, error) {
	l := c.layout
	bitsSz := l.BitsSectionSize()
	scalarSz := l.ScalarSectionSize()
	fixedSz := l.WireFixedSize()
	stringCount := l.StringCount()

	strs := r.Strings()
	payload := 0
	for i := 0; i < stringCount; i++ {
		n := len(strs[i])
		if n > limits.MaxStringLength {
			n = limits.MaxStringLength
		}
		payload += n
	}

	total := fixedSz + payload
	off := buf.Len()
	buf.ExtendOrGrow(total)
	data := buf.Bytes()[off : off+total]

	if bitsSz > 0 {
		copy(data[:bitsSz], r.BoolBits().Bytes())
	}

	wireOff := bitsSz
	lenOff := bitsSz + scalarSz
	payOff := fixedSz

	for i, col := range l.Columns() {
		switch {
		case col.Type.IsBool():
			// handled via the bulk bits-section copy above
		case col.Type.IsString():
			ord := l.StringOrdinal(i)
			s := strs[ord]
			n := len(s)
			if n > limits.MaxStringLength {
				n = limits.MaxStringLength
			}
			binary.LittleEndian.PutUint16(data[lenOff:], uint16(n))
			lenOff += 2
			if n > 0 {
				copy(data[payOff:payOff+n], s[:n])
				payOff += n
			}
		default:
			sz := col.Type.FixedSize()
			copy(data[wireOff:wireOff+sz], r.ScalarBytes(i))
			wireOff += sz
		}
	}

	return total, nil
}

// Deserialize decodes data as one Flat001-encoded row into r. Every column
// is overwritten and marked changed: the flat format always carries a
// complete row.
func (c *Flat001) Deserialize(data []byte, r *row.Row) error {
	l := c.layout
	bitsSz := l.BitsSectionSize()
	scalarSz := l.ScalarSectionSize()
	fixedSz := l.WireFixedSize()

	if len(data) < fixedSz {
		return fmt.Errorf("%w: flat row needs %d bytes, got %d", errs.ErrBufferTooShort, fixedSz, len(data))
	}

	if bitsSz > 0 {
		copy(r.BoolBits().Bytes(), data[:bitsSz])
	}

	wireOff := bitsSz
	lenOff := bitsSz + scalarSz
	payOff := fixedSz

	for i, col := range l.Columns() {
		switch {
		case col.Type.IsBool():
			// already applied via the bulk bits-section copy above
		case col.Type.IsString():
			if lenOff+2 > len(data) {
				return fmt.Errorf("%w: flat row truncated at string length", errs.ErrBufferTooShort)
			}
			n := int(binary.LittleEndian.Uint16(data[lenOff:]))
			lenOff += 2
			if payOff+n > len(data) {
				return fmt.Errorf("%w: flat row truncated at string payload", errs.ErrBufferTooShort)
			}
			if n > 0 {
				if err := r.SetString(i, string(data[payOff:payOff+n])); err != nil {
					return err
				}
				payOff += n
			} else {
				if err := r.SetString(i, ""); err != nil {
					return err
				}
			}
		default:
			sz := col.Type.FixedSize()
			if wireOff+sz > len(data) {
				return fmt.Errorf("%w: flat row truncated at scalar section", errs.ErrBufferTooShort)
			}
			copy(r.ScalarBytes(i), data[wireOff:wireOff+sz])
			wireOff += sz
		}
		r.Changes().Set(i)
	}

	return nil
}
