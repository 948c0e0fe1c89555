// Package row implements BCSV's typed row: a collection of cells indexed by
// column position, validated against a Layout, plus an optional
// change-tracking bitset that row codecs use to mark which columns were
// populated by the most recent Deserialize call.
package row

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/bitset"
	"github.com/bcsv-io/bcsv/layout"
)

// Row holds one record's worth of typed cells for a fixed Layout. Scalar
// values are stored in a single packed byte buffer at the layout's
// precomputed offsets (matching the Flat codec's wire layout directly, so
// codecs can memcpy rather than convert), bools in a bitset, and strings in
// a slice. A Row holds a stable reference to its Layout and must not outlive
// it.
type Row struct {
	layout  *layout.Layout
	scalars []byte
	bools   *bitset.Bitset
	strings []string
	changes *bitset.Bitset
}

// New creates a zero-valued Row for l.
func New(l *layout.Layout) *Row {
	return &Row{
		layout:  l,
		scalars: make([]byte, l.ScalarSectionSize()),
		bools:   bitset.New(l.BoolCount()),
		strings: make([]string, l.StringCount()),
		changes: bitset.New(l.Len()),
	}
}

// Layout returns the row's schema.
func (r *Row) Layout() *layout.Layout { return r.layout }

// Changes returns the row's change-tracking bitset (one bit per column),
// updated by row codecs during Deserialize.
func (r *Row) Changes() *bitset.Bitset { return r.changes }

// Reset clears all cell values and change flags to zero.
func (r *Row) Reset() {
	for i := range r.scalars {
		r.scalars[i] = 0
	}
	r.bools.ClearAll()
	for i := range r.strings {
		r.strings[i] = ""
	}
	r.changes.ClearAll()
}

func (r *Row) checkType(col int, want layout.ColumnType) error {
	if col < 0 || col >= r.layout.Len() {
		return fmt.Errorf("%w: column index %d", errs.ErrUnknownColumn, col)
	}
	got := r.layout.Column(col).Type
	if got != want {
		return fmt.Errorf("%w: column %d is %v, not %v", errs.ErrColumnType, col, got, want)
	}
	return nil
}

// SetBool sets the BOOL value of column col.
func (r *Row) SetBool(col int, v bool) error {
	if err := r.checkType(col, layout.TypeBool); err != nil {
		return err
	}
	r.bools.SetTo(r.layout.BoolOrdinal(col), v)
	return nil
}

// Bool returns the BOOL value of column col.
func (r *Row) Bool(col int) (bool, error) {
	if err := r.checkType(col, layout.TypeBool); err != nil {
		return false, err
	}
	return r.bools.Test(r.layout.BoolOrdinal(col)), nil
}

// SetString sets the STRING value of column col.
func (r *Row) SetString(col int, v string) error {
	if err := r.checkType(col, layout.TypeString); err != nil {
		return err
	}
	r.strings[r.layout.StringOrdinal(col)] = v
	return nil
}

// String returns the STRING value of column col.
func (r *Row) String(col int) (string, error) {
	if err := r.checkType(col, layout.TypeString); err != nil {
		return "", err
	}
	return r.strings[r.layout.StringOrdinal(col)], nil
}

func (r *Row) scalarAt(col int, want layout.ColumnType) (int, error) {
	if err := r.checkType(col, want); err != nil {
		return 0, err
	}
	return r.layout.ScalarOffset(col), nil
}

// SetInt8 sets an INT8 column's value.
func (r *Row) SetInt8(col int, v int8) error {
	off, err := r.scalarAt(col, layout.TypeInt8)
	if err != nil {
		return err
	}
	r.scalars[off] = byte(v)
	return nil
}

// Int8 returns an INT8 column's value.
func (r *Row) Int8(col int) (int8, error) {
	off, err := r.scalarAt(col, layout.TypeInt8)
	if err != nil {
		return 0, err
	}
	return int8(r.scalars[off]), nil
}

// SetUint8 sets a UINT8 column's value.
func (r *Row) SetUint8(col int, v uint8) error {
	off, err := r.scalarAt(col, layout.TypeUint8)
	if err != nil {
		return err
	}
	r.scalars[off] = v
	return nil
}

// Uint8 returns a UINT8 column's value.
func (r *Row) Uint8(col int) (uint8, error) {
	off, err := r.scalarAt(col, layout.TypeUint8)
	if err != nil {
		return 0, err
	}
	return r.scalars[off], nil
}

// SetInt16 sets an INT16 column's value.
func (r *Row) SetInt16(col int, v int16) error {
	off, err := r.scalarAt(col, layout.TypeInt16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(r.scalars[off:], uint16(v))
	return nil
}

// Int16 returns an INT16 column's value.
func (r *Row) Int16(col int) (int16, error) {
	off, err := r.scalarAt(col, layout.TypeInt16)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(r.scalars[off:])), nil
}

// SetUint16 sets a UINT16 column's value.
func (r *Row) SetUint16(col int, v uint16) error {
	off, err := r.scalarAt(col, layout.TypeUint16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(r.scalars[off:], v)
	return nil
}

// Uint16 returns a UINT16 column's value.
func (r *Row) Uint16(col int) (uint16, error) {
	off, err := r.scalarAt(col, layout.TypeUint16)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.scalars[off:]), nil
}

// SetInt32 sets an INT32 column's value.
func (r *Row) SetInt32(col int, v int32) error {
	off, err := r.scalarAt(col, layout.TypeInt32)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(r.scalars[off:], uint32(v))
	return nil
}

// Int32 returns an INT32 column's value.
func (r *Row) Int32(col int) (int32, error) {
	off, err := r.scalarAt(col, layout.TypeInt32)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(r.scalars[off:])), nil
}

// SetUint32 sets a UINT32 column's value.
func (r *Row) SetUint32(col int, v uint32) error {
	off, err := r.scalarAt(col, layout.TypeUint32)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(r.scalars[off:], v)
	return nil
}

// Uint32 returns a UINT32 column's value.
func (r *Row) Uint32(col int) (uint32, error) {
	off, err := r.scalarAt(col, layout.TypeUint32)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.scalars[off:]), nil
}

// SetInt64 sets an INT64 column's value.
func (r *Row) SetInt64(col int, v int64) error {
	off, err := r.scalarAt(col, layout.TypeInt64)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(r.scalars[off:], uint64(v))
	return nil
}

// Int64 returns an INT64 column's value.
func (r *Row) Int64(col int) (int64, error) {
	off, err := r.scalarAt(col, layout.TypeInt64)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(r.scalars[off:])), nil
}

// SetUint64 sets a UINT64 column's value.
func (r *Row) SetUint64(col int, v uint64) error {
	off, err := r.scalarAt(col, layout.TypeUint64)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(r.scalars[off:], v)
	return nil
}

// Uint64 returns a UINT64 column's value.
func (r *Row) Uint64(col int) (uint64, error) {
	off, err := r.scalarAt(col, layout.TypeUint64)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.scalars[off:]), nil
}

// SetFloat32 sets a FLOAT column's value.
func (r *Row) SetFloat32(col int, v float32) error {
	off, err := r.scalarAt(col, layout.TypeFloat)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(r.scalars[off:], math.Float32bits(v))
	return nil
}

// Float32 returns a FLOAT column's value.
func (r *Row) Float32(col int) (float32, error) {
	off, err := r.scalarAt(col, layout.TypeFloat)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.scalars[off:])), nil
}

// SetFloat64 sets a DOUBLE column's value.
func (r *Row) SetFloat64(col int, v float64) error {
	off, err := r.scalarAt(col, layout.TypeDouble)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(r.scalars[off:], math.Float64bits(v))
	return nil
}

// Float64 returns a DOUBLE column's value.
func (r *Row) Float64(col int) (float64, error) {
	off, err := r.scalarAt(col, layout.TypeDouble)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.scalars[off:])), nil
}

// scalarBytes returns the raw little-endian bytes backing a scalar column,
// for use by row codecs doing byte-level compare/copy rather than typed
// access.
func (r *Row) scalarBytes(col int) []byte {
	off := r.layout.ScalarOffset(col)
	size := r.layout.Column(col).Type.FixedSize()
	return r.scalars[off : off+size]
}

// ScalarBytes exposes scalarBytes to the rowcodec package.
func (r *Row) ScalarBytes(col int) []byte { return r.scalarBytes(col) }

// ScalarSection returns the row's entire packed scalar-section buffer, for
// bulk snapshot copies.
func (r *Row) ScalarSection() []byte { return r.scalars }

// BoolBits exposes the row's bool-value bitset to row codecs.
func (r *Row) BoolBits() *bitset.Bitset { return r.bools }

// Strings exposes the row's string slice to row codecs.
func (r *Row) Strings() []string { return r.strings }
