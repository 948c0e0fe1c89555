package bcsv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/wire"
)

func testColumns(t *testing.T) *layout.Layout {
	t.Helper()
	l, err := layout.NewLayout([]layout.ColumnDefinition{
		{Name: "id", Type: layout.TypeInt32},
		{Name: "active", Type: layout.TypeBool},
		{Name: "score", Type: layout.TypeDouble},
		{Name: "name", Type: layout.TypeString},
	})
	require.NoError(t, err)
	return l
}

func writeSampleFile(t *testing.T, path string, opts ...WriterOption) {
	t.Helper()
	w, err := NewWriter(path, testColumns(t), opts...)
	require.NoError(t, err)

	names := []string{"alpha", "bravo", "charlie"}
	for i, name := range names {
		row := w.Row()
		require.NoError(t, row.SetInt32(0, int32(i)))
		require.NoError(t, row.SetBool(1, i%2 == 0))
		require.NoError(t, row.SetFloat64(2, float64(i)*1.5))
		require.NoError(t, row.SetString(3, name))
		require.NoError(t, w.WriteRow())
	}
	require.NoError(t, w.Close())
}

func TestWriter_RejectsExistingFileWithoutOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	writeSampleFile(t, path)

	_, err := NewWriter(path, testColumns(t))
	require.ErrorIs(t, err, errs.ErrFileExists)

	w, err := NewWriter(path, testColumns(t), WithOverwrite())
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestWriter_WriteRowAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	w, err := NewWriter(path, testColumns(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close()) // idempotent

	err = w.WriteRow()
	require.ErrorIs(t, err, errs.ErrClosed)
}

func TestWriter_StatsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	w, err := NewWriter(path, testColumns(t))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		row := w.Row()
		require.NoError(t, row.SetInt32(0, int32(i)))
		require.NoError(t, row.SetBool(1, true))
		require.NoError(t, row.SetFloat64(2, 1.0))
		require.NoError(t, row.SetString(3, "x"))
		require.NoError(t, w.WriteRow())
	}
	require.NoError(t, w.Close())

	stats := w.Stats()
	assert.EqualValues(t, 5, stats.RowCount)
	assert.Greater(t, stats.WrittenBytes, int64(0))
}

func TestWithCompressionLevel_RejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	_, err := NewWriter(path, testColumns(t), WithCompressionLevel(10))
	require.ErrorIs(t, err, errs.ErrSchema)
}

func TestWithPacketSize_RejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	_, err := NewWriter(path, testColumns(t), WithPacketSize(16))
	require.ErrorIs(t, err, errs.ErrSchema)
}

func TestWriter_ZeroOrderHoldFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	writeSampleFile(t, path, WithFlags(wire.FlagZeroOrderHold))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Layout().Len() == 4)
}
