package layout

import (
	"testing"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout_Basic(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "id", Type: TypeInt32},
		{Name: "name", Type: TypeString},
		{Name: "score", Type: TypeFloat},
		{Name: "active", Type: TypeBool},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 1, l.BoolCount())
	assert.Equal(t, 1, l.StringCount())
	assert.Equal(t, 4+4, l.ScalarSectionSize()) // int32 + float
	assert.Equal(t, 1, l.BitsSectionSize())      // 1 bool -> 1 byte

	idx, ok := l.IndexOf("name")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestNewLayout_OffsetsMonotonic(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "a", Type: TypeUint8},
		{Name: "b", Type: TypeUint16},
		{Name: "c", Type: TypeUint32},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, l.ScalarOffset(0))
	assert.Equal(t, 1, l.ScalarOffset(1))
	assert.Equal(t, 3, l.ScalarOffset(2))
}

func TestNewLayout_EmptyNamesGetExcelDefaults(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "", Type: TypeInt32},
		{Name: "", Type: TypeInt32},
		{Name: "explicit", Type: TypeInt32},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", l.Column(0).Name)
	assert.Equal(t, "B", l.Column(1).Name)
	assert.Equal(t, "explicit", l.Column(2).Name)
}

func TestNewLayout_DuplicateNamesGetSuffixed(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "x", Type: TypeInt32},
		{Name: "x", Type: TypeInt32},
		{Name: "x", Type: TypeInt32},
	})
	require.NoError(t, err)
	assert.Equal(t, "x", l.Column(0).Name)
	assert.Equal(t, "x.1", l.Column(1).Name)
	assert.Equal(t, "x.2", l.Column(2).Name)
}

func TestNewLayout_NamesAreTrimmed(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "  padded  ", Type: TypeInt32},
	})
	require.NoError(t, err)
	assert.Equal(t, "padded", l.Column(0).Name)
}

func TestNewLayout_TooManyColumns(t *testing.T) {
	defs := make([]ColumnDefinition, 65536)
	for i := range defs {
		defs[i] = ColumnDefinition{Type: TypeUint8}
	}
	_, err := NewLayout(defs)
	assert.ErrorIs(t, err, errs.ErrSchema)
}

func TestNewLayout_InvalidType(t *testing.T) {
	_, err := NewLayout([]ColumnDefinition{{Name: "bad", Type: ColumnType(200)}})
	assert.ErrorIs(t, err, errs.ErrSchema)
}

func TestExcelColumnName_WrapsPastZ(t *testing.T) {
	assert.Equal(t, "A", excelColumnName(0))
	assert.Equal(t, "Z", excelColumnName(25))
	assert.Equal(t, "AA", excelColumnName(26))
	assert.Equal(t, "AB", excelColumnName(27))
}

func TestBoolOrdinal_IsPositionWithinBitsSection(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "i", Type: TypeInt32},
		{Name: "b1", Type: TypeBool},
		{Name: "s", Type: TypeString},
		{Name: "b2", Type: TypeBool},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, l.BoolOrdinal(1))
	assert.Equal(t, 1, l.BoolOrdinal(3))
	assert.Equal(t, -1, l.BoolOrdinal(0))
}

func TestStringOrdinal(t *testing.T) {
	l, err := NewLayout([]ColumnDefinition{
		{Name: "s1", Type: TypeString},
		{Name: "i", Type: TypeInt32},
		{Name: "s2", Type: TypeString},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, l.StringOrdinal(0))
	assert.Equal(t, 1, l.StringOrdinal(2))
	assert.Equal(t, -1, l.StringOrdinal(1))
}
