// Package layout defines BCSV's column schema: an ordered sequence of typed,
// named columns with a name → position index, computed per-section wire
// offsets, and the normalization rules (trimming, empty-name defaults,
// duplicate suffixing) that keep a Layout's names unique and well-formed.
package layout

import (
	"fmt"
	"strings"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/limits"
)

// ColumnDefinition pairs a column name with its type. Names are normalized
// by NewLayout; construct ColumnDefinition values directly and pass them to
// NewLayout rather than mutating a Layout's columns after construction.
type ColumnDefinition struct {
	Name string
	Type ColumnType
}

// Layout is an immutable-after-construction column schema: ordered column
// definitions, a name→position index, and precomputed per-section wire
// offsets for the Flat row codec. A Layout is cheap to copy (it owns small
// slices and a map) and safe for concurrent reads.
type Layout struct {
	columns []ColumnDefinition
	nameIdx map[string]int

	// boolCount is the number of BOOL columns, i.e. the bit count of the
	// bits section.
	boolCount int

	// boolOrdinal[i] is the 0-based ordinal (bit index within the bits
	// section) of column i if it is BOOL; -1 otherwise.
	boolOrdinal []int

	// scalarOffset[i] is the byte offset (within the scalar section) of
	// column i if it is a fixed-width scalar type; -1 otherwise.
	scalarOffset []int
	scalarSize   int

	// stringOrdinal[i] is the 0-based ordinal (within the string-lengths /
	// string-payload sections) of column i if it is STRING; -1 otherwise.
	stringOrdinal []int
	stringCount   int

	wireFixedSize int // bits + scalar + string-length sections combined
}

// NewLayout builds a Layout from the given column definitions, normalizing
// names (trim whitespace, substitute Excel-style defaults for empty names,
// suffix duplicates with ".N") and computing per-section wire offsets.
//
// Returns errs.ErrSchema if there are more than limits.MaxColumnCount
// columns, any column has an invalid ColumnType, or the sum of fixed-size
// wire lengths exceeds limits.MaxRowLength.
func NewLayout(defs []ColumnDefinition) (*Layout, error) {
	if len(defs) > limits.MaxColumnCount {
		return nil, fmt.Errorf("%w: %d columns exceeds maximum of %d", errs.ErrSchema, len(defs), limits.MaxColumnCount)
	}

	names := normalizeNames(defs)

	l := &Layout{
		columns:       make([]ColumnDefinition, len(defs)),
		nameIdx:       make(map[string]int, len(defs)),
		boolOrdinal:   make([]int, len(defs)),
		scalarOffset:  make([]int, len(defs)),
		stringOrdinal: make([]int, len(defs)),
	}

	for i, def := range defs {
		if !def.Type.Valid() {
			return nil, fmt.Errorf("%w: column %q has invalid type %v", errs.ErrSchema, names[i], def.Type)
		}
		l.columns[i] = ColumnDefinition{Name: names[i], Type: def.Type}
		l.nameIdx[names[i]] = i
		l.boolOrdinal[i] = -1
		l.scalarOffset[i] = -1
		l.stringOrdinal[i] = -1

		switch {
		case def.Type.IsBool():
			l.boolOrdinal[i] = l.boolCount
			l.boolCount++
		case def.Type.IsString():
			l.stringOrdinal[i] = l.stringCount
			l.stringCount++
		case def.Type.IsScalar():
			l.scalarOffset[i] = l.scalarSize
			l.scalarSize += def.Type.FixedSize()
		}
	}

	bitsSize := (l.boolCount + 7) / 8
	l.wireFixedSize = bitsSize + l.scalarSize + l.stringCount*2

	if l.wireFixedSize > limits.MaxRowLength {
		return nil, fmt.Errorf("%w: row width %d exceeds maximum of %d", errs.ErrSchema, l.wireFixedSize, limits.MaxRowLength)
	}

	return l, nil
}

// normalizeNames trims whitespace, substitutes Excel-style column letters
// (A, B, ..., Z, AA, AB, ...) for empty names, and suffixes duplicates with
// ".N" (N starting at 1) in first-to-last column order.
func normalizeNames(defs []ColumnDefinition) []string {
	trimmed := make([]string, len(defs))
	for i, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			name = excelColumnName(i)
		}
		trimmed[i] = name
	}

	seen := make(map[string]int, len(defs))
	out := make([]string, len(defs))
	for i, name := range trimmed {
		count := seen[name]
		seen[name] = count + 1
		if count == 0 {
			out[i] = name
			continue
		}
		candidate := fmt.Sprintf("%s.%d", name, count)
		for {
			if _, exists := seen[candidate]; !exists {
				break
			}
			count++
			candidate = fmt.Sprintf("%s.%d", name, count)
		}
		seen[candidate] = 1
		out[i] = candidate
	}
	return out
}

// excelColumnName returns the 0-based index rendered as a spreadsheet-style
// column letter: 0 -> "A", 25 -> "Z", 26 -> "AA", 27 -> "AB", ...
func excelColumnName(index int) string {
	n := index + 1
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// Len returns the number of columns in the layout.
func (l *Layout) Len() int { return len(l.columns) }

// Column returns the i-th column definition.
func (l *Layout) Column(i int) ColumnDefinition { return l.columns[i] }

// Columns returns all column definitions, in order.
func (l *Layout) Columns() []ColumnDefinition { return l.columns }

// IndexOf returns the column position for name, or (-1, false) if absent.
func (l *Layout) IndexOf(name string) (int, bool) {
	idx, ok := l.nameIdx[name]
	return idx, ok
}

// BoolCount returns the number of BOOL columns.
func (l *Layout) BoolCount() int { return l.boolCount }

// StringCount returns the number of STRING columns.
func (l *Layout) StringCount() int { return l.stringCount }

// ScalarSectionSize returns the byte size of the Flat codec's scalar
// section (all fixed-width non-bool, non-string columns, concatenated).
func (l *Layout) ScalarSectionSize() int { return l.scalarSize }

// BitsSectionSize returns the byte size of the Flat codec's bits section.
func (l *Layout) BitsSectionSize() int { return (l.boolCount + 7) / 8 }

// WireFixedSize returns the combined size of the bits, scalar, and
// string-lengths sections — the minimum number of bytes a Flat-encoded row
// must contain before any string payload bytes.
func (l *Layout) WireFixedSize() int { return l.wireFixedSize }

// BoolOrdinal returns the bit index within the bits section for column i, or
// -1 if column i is not BOOL.
func (l *Layout) BoolOrdinal(i int) int { return l.boolOrdinal[i] }

// ScalarOffset returns the byte offset within the scalar section for column
// i, or -1 if column i is not a fixed-width scalar type.
func (l *Layout) ScalarOffset(i int) int { return l.scalarOffset[i] }

// StringOrdinal returns the 0-based ordinal within the string sections for
// column i, or -1 if column i is not STRING.
func (l *Layout) StringOrdinal(i int) int { return l.stringOrdinal[i] }
