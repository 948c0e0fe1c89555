package rowcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/bitset"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/row"
)

// ZoH001 implements Zero-Order-Hold delta encoding: a row's wire
// representation is a change-header bitset followed by the columns that
// changed since the previous row in the current packet. The first row of
// each packet (since the last Reset) always carries every column.
//
// Wire layout per row: [head][changed column values, type-grouped order]
//
// head is columnCount bits wide:
//   - bits [0, boolCount): the BOOL columns' current values (not a change
//     flag — bools are cheap enough to carry as values every row)
//   - bits [boolCount, columnCount): change flags for the remaining columns,
//     grouped by layout.ScalarTypeOrder() and, within a type, by column
//     order
//
// head doubles as ZoH001's previous-row storage for bools: each Serialize
// call compares the incoming bool value against head's existing bit before
// overwriting it.
type ZoH001 struct {
	layout *layout.Layout

	changeOrder  []int // non-bool column indices, type-grouped order
	headBitIndex []int // per-column index into the head bitset

	head             *bitset.Bitset
	prevScalars      []byte
	prevStrings      []string
	firstRowInPacket bool
}

// NewZoH001 builds a ZoH001 codec bound to l.
func NewZoH001(l *layout.Layout) *ZoH001 {
	count := l.Len()
	c := &ZoH001{
		layout:           l,
		headBitIndex:     make([]int, count),
		head:             bitset.New(count),
		prevScalars:      make([]byte, l.ScalarSectionSize()),
		prevStrings:      make([]string, l.StringCount()),
		firstRowInPacket: true,
	}

	for _, t := range layout.ScalarTypeOrder() {
		for i, col := range l.Columns() {
			if col.Type == t {
				c.changeOrder = append(c.changeOrder, i)
			}
		}
	}

	boolCount := l.BoolCount()
	for i, col := range l.Columns() {
		if col.Type.IsBool() {
			c.headBitIndex[i] = l.BoolOrdinal(i)
		}
	}
	for pos, i := range c.changeOrder {
		c.headBitIndex[i] = boolCount + pos
	}

	return c
}

// Reset starts a fresh delta cycle: the next Serialize/Deserialize call is
// treated as the first row of a new packet and carries every column.
func (c *ZoH001) Reset() {
	c.firstRowInPacket = true
}

// Serialize appends r's ZoH-encoded delta to buf. It returns (0, nil) when
// no column differs from the previous row — the caller must then emit a
// zero-length ZoH-repeat marker rather than a payload entry.
func (c *ZoH001) Serialize(r *row.Row, buf ScratchBuffer) (int, error) {
	l := c.layout
	headLen := bitset.ByteLen(l.Len())

	if c.firstRowInPacket {
		c.firstRowInPacket = false
		c.head.ClearAll()
		for i, col := range l.Columns() {
			if col.Type.IsBool() {
				v, _ := r.Bool(i)
				c.head.SetTo(c.headBitIndex[i], v)
			} else {
				c.head.Set(c.headBitIndex[i])
			}
		}
		copy(c.prevScalars, r.ScalarSection())
		copy(c.prevStrings, r.Strings())

		payload := c.payloadSize(r, nil)
		total := headLen + payload
		off := buf.Len()
		buf.ExtendOrGrow(total)
		data := buf.Bytes()[off : off+total]
		copy(data[:headLen], c.head.Bytes())
		c.writeChanged(r, data[headLen:], nil)
		return total, nil
	}

	anyChange := false
	for i, col := range l.Columns() {
		if !col.Type.IsBool() {
			continue
		}
		cur, _ := r.Bool(i)
		prev := c.head.Test(c.headBitIndex[i])
		c.head.SetTo(c.headBitIndex[i], cur)
		if cur != prev {
			anyChange = true
		}
	}

	for _, i := range c.changeOrder {
		col := l.Column(i)
		bit := c.headBitIndex[i]
		changed := false
		if col.Type.IsString() {
			ord := l.StringOrdinal(i)
			cur := r.Strings()[ord]
			if cur != c.prevStrings[ord] {
				changed = true
				c.prevStrings[ord] = cur
			}
		} else {
			off := l.ScalarOffset(i)
			sz := col.Type.FixedSize()
			cur := r.ScalarBytes(i)
			if !bytes.Equal(cur, c.prevScalars[off:off+sz]) {
				changed = true
				copy(c.prevScalars[off:off+sz], cur)
			}
		}
		c.head.SetTo(bit, changed)
		if changed {
			anyChange = true
		}
	}

	if !anyChange {
		return 0, nil
	}

	payload := c.payloadSize(r, c.head)
	total := headLen + payload
	off := buf.Len()
	buf.ExtendOrGrow(total)
	data := buf.Bytes()[off : off+total]
	copy(data[:headLen], c.head.Bytes())
	c.writeChanged(r, data[headLen:], c.head)
	return total, nil
}

// payloadSize sums the wire size of columns in changeOrder. When mask is
// nil every column counts (first-row-in-packet path); otherwise only
// columns whose head bit is set count.
func (c *ZoH001) payloadSize(r *row.Row, mask *bitset.Bitset) int {
	total := 0
	for _, i := range c.changeOrder {
		if mask != nil && !mask.Test(c.headBitIndex[i]) {
			continue
		}
		col := c.layout.Column(i)
		if col.Type.IsString() {
			ord := c.layout.StringOrdinal(i)
			n := len(r.Strings()[ord])
			if n > limits.MaxStringLength {
				n = limits.MaxStringLength
			}
			total += 2 + n
		} else {
			total += col.Type.FixedSize()
		}
	}
	return total
}

// writeChanged writes the value of every column in changeOrder (when mask
// is nil) or only those with a set head bit (when mask is non-nil) into
// dst, in order.
func (c *ZoH001) writeChanged(r *row.Row, dst []byte, mask *bitset.Bitset) {
	off := 0
	for _, i := range c.changeOrder {
		if mask != nil && !mask.Test(c.headBitIndex[i]) {
			continue
		}
		col := c.layout.Column(i)
		if col.Type.IsString() {
			ord := c.layout.StringOrdinal(i)
			s := r.Strings()[ord]
			n := len(s)
			if n > limits.MaxStringLength {
				n = limits.MaxStringLength
			}
			binary.LittleEndian.PutUint16(dst[off:], uint16(n))
			off += 2
			if n > 0 {
				copy(dst[off:off+n], s[:n])
				off += n
			}
		} else {
			sz := col.Type.FixedSize()
			copy(dst[off:off+sz], r.ScalarBytes(i))
			off += sz
		}
	}
}

// Deserialize decodes data as one ZoH001-encoded row into r, overwriting
// only the columns the head bitset marks as present in this call.
func (c *ZoH001) Deserialize(data []byte, r *row.Row) error {
	l := c.layout
	headLen := bitset.ByteLen(l.Len())
	if len(data) < headLen {
		return fmt.Errorf("%w: zoh row needs %d head bytes, got %d", errs.ErrBufferTooShort, headLen, len(data))
	}
	c.head.CopyFromBytes(data[:headLen])
	r.Changes().ClearAll()

	for i, col := range l.Columns() {
		if col.Type.IsBool() {
			if err := r.SetBool(i, c.head.Test(c.headBitIndex[i])); err != nil {
				return err
			}
			r.Changes().Set(i)
		}
	}

	off := headLen
	for _, i := range c.changeOrder {
		if !c.head.Test(c.headBitIndex[i]) {
			continue
		}
		col := l.Column(i)
		if col.Type.IsString() {
			if off+2 > len(data) {
				return fmt.Errorf("%w: zoh row truncated at string length", errs.ErrBufferTooShort)
			}
			n := int(binary.LittleEndian.Uint16(data[off:]))
			off += 2
			if off+n > len(data) {
				return fmt.Errorf("%w: zoh row truncated at string payload", errs.ErrBufferTooShort)
			}
			if err := r.SetString(i, string(data[off:off+n])); err != nil {
				return err
			}
			off += n
		} else {
			sz := col.Type.FixedSize()
			if off+sz > len(data) {
				return fmt.Errorf("%w: zoh row truncated at scalar section", errs.ErrBufferTooShort)
			}
			copy(r.ScalarBytes(i), data[off:off+sz])
			off += sz
		}
		r.Changes().Set(i)
	}

	return nil
}
