package bcsv

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/wire"
)

// writeMultiPacketFile writes enough rows at the minimum packet size to
// force several packet boundaries, so ReadAt's binary search and
// loadPacket's caching both get exercised across more than one packet.
func writeMultiPacketFile(t *testing.T, path string, rowCount int, opts ...WriterOption) {
	t.Helper()
	opts = append([]WriterOption{WithPacketSize(limits.MinPacketSize)}, opts...)
	w, err := NewWriter(path, testColumns(t), opts...)
	require.NoError(t, err)

	for i := 0; i < rowCount; i++ {
		row := w.Row()
		require.NoError(t, row.SetInt32(0, int32(i)))
		require.NoError(t, row.SetBool(1, i%3 == 0))
		require.NoError(t, row.SetFloat64(2, float64(i)))
		require.NoError(t, row.SetString(3, fmt.Sprintf("row-%06d-padding-to-grow-packets", i)))
		require.NoError(t, w.WriteRow())
	}
	require.NoError(t, w.Close())
}

func TestReaderDirectAccess_ReadAtAcrossPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	const rowCount = 4000
	writeMultiPacketFile(t, path, rowCount)

	ra, err := NewReaderDirectAccess(path)
	require.NoError(t, err)
	defer ra.Close()

	require.EqualValues(t, rowCount, ra.RowCount())
	require.Greater(t, len(ra.footer.Entries), 1, "expected the sample to span multiple packets")

	for _, idx := range []uint64{0, 1, 500, uint64(rowCount) / 2, uint64(rowCount) - 1} {
		require.NoError(t, ra.ReadAt(idx))
		id, err := ra.Row().Int32(0)
		require.NoError(t, err)
		assert.EqualValues(t, idx, id)

		name, err := ra.Row().String(3)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("row-%06d-padding-to-grow-packets", idx), name)
	}
}

func TestReaderDirectAccess_ReadAtOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	writeSampleFile(t, path)

	ra, err := NewReaderDirectAccess(path)
	require.NoError(t, err)
	defer ra.Close()

	err = ra.ReadAt(ra.RowCount())
	require.ErrorIs(t, err, errs.ErrCorruptedFile)
}

func TestReaderDirectAccess_ZeroOrderHoldReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoh.bcsv")

	w, err := NewWriter(path, testColumns(t), WithFlags(wire.FlagZeroOrderHold))
	require.NoError(t, err)

	row := w.Row()
	require.NoError(t, row.SetInt32(0, 1))
	require.NoError(t, row.SetBool(1, true))
	require.NoError(t, row.SetFloat64(2, 1.0))
	require.NoError(t, row.SetString(3, "first"))
	require.NoError(t, w.WriteRow())

	require.NoError(t, row.SetInt32(0, 2))
	require.NoError(t, w.WriteRow()) // only id changes; name/score/active repeat

	require.NoError(t, row.SetString(3, "third"))
	require.NoError(t, w.WriteRow())
	require.NoError(t, w.Close())

	ra, err := NewReaderDirectAccess(path)
	require.NoError(t, err)
	defer ra.Close()

	require.NoError(t, ra.ReadAt(1))
	id, err := ra.Row().Int32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)
	name, err := ra.Row().String(3)
	require.NoError(t, err)
	assert.Equal(t, "first", name, "unchanged column should carry over from row 0")

	require.NoError(t, ra.ReadAt(0))
	id, err = ra.Row().Int32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	require.NoError(t, ra.ReadAt(2))
	name, err = ra.Row().String(3)
	require.NoError(t, err)
	assert.Equal(t, "third", name)
}

func TestReaderDirectAccess_RejectsStreamMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.bcsv")
	w, err := NewWriter(path, testColumns(t), WithFlags(wire.FlagStreamMode))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = NewReaderDirectAccess(path)
	require.ErrorIs(t, err, errs.ErrCorruptedFile)
}

func TestReaderDirectAccess_RebuildFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bcsv")
	const rowCount = 4000
	writeMultiPacketFile(t, path, rowCount)

	info, err := os.Stat(path)
	require.NoError(t, err)

	// Truncate the last 40 bytes: this removes the footer's 24-byte trailer
	// and part of its packet index, but no packet bytes.
	truncated := info.Size() - 40
	require.NoError(t, os.Truncate(path, truncated))

	_, err = NewReaderDirectAccess(path)
	require.Error(t, err, "a truncated footer should fail without WithRebuildFooter")

	ra, err := NewReaderDirectAccess(path, WithRebuildFooter(true))
	require.NoError(t, err)
	defer ra.Close()

	assert.Greater(t, ra.RowCount(), uint64(0))
	require.NoError(t, ra.ReadAt(0))
	id, err := ra.Row().Int32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, id)
}
