package filecodec

import (
	"bytes"
	"testing"

	"github.com/bcsv-io/bcsv/layout"
	"github.com/bcsv-io/bcsv/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	l, err := layout.NewLayout([]layout.ColumnDefinition{
		{Name: "id", Type: layout.TypeInt32},
		{Name: "name", Type: layout.TypeString},
	})
	require.NoError(t, err)
	return l
}

func TestStream001_ReadSequence(t *testing.T) {
	c := newStream001()
	var buf bytes.Buffer
	require.NoError(t, c.WriteRow(&buf, []byte("alpha")))
	require.NoError(t, c.WriteRow(&buf, nil))
	require.NoError(t, c.WriteRow(&buf, []byte("gamma")))

	r := newStream001()
	br := bytes.NewReader(buf.Bytes())

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "alpha", string(data))

	status, _, err = r.ReadRow(br)
	require.NoError(t, err)
	assert.Equal(t, RowZoHRepeat, status)

	status, data, err = r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "gamma", string(data))

	status, _, err = r.ReadRow(br)
	require.NoError(t, err)
	assert.Equal(t, RowEOF, status)
}

func TestStreamLZ4001_RoundTrip(t *testing.T) {
	c := newStreamLZ4001()
	header := wire.NewFileHeader(testLayout(t), 3, 0, 1024)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly")
	require.NoError(t, c.WriteRow(&buf, payload))
	require.NoError(t, c.WriteRow(&buf, nil))

	r := newStreamLZ4001()
	require.NoError(t, r.SetupRead(bytes.NewReader(buf.Bytes()), header))
	br := bytes.NewReader(buf.Bytes())

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, payload, data)

	status, _, err = r.ReadRow(br)
	require.NoError(t, err)
	assert.Equal(t, RowZoHRepeat, status)
}

// TestStreamLZ4001_IncompressibleRow exercises a payload short enough that
// LZ4 reports it incompressible (CompressBlock returns n == 0): the row
// must still round-trip as RowOK, never collapse into RowZoHRepeat.
func TestStreamLZ4001_IncompressibleRow(t *testing.T) {
	c := newStreamLZ4001()
	header := wire.NewFileHeader(testLayout(t), 1, 0, 1024)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	require.NoError(t, c.WriteRow(&buf, payload))

	r := newStreamLZ4001()
	require.NoError(t, r.SetupRead(bytes.NewReader(buf.Bytes()), header))
	br := bytes.NewReader(buf.Bytes())

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status, "a short incompressible row must not be read back as a ZoH repeat")
	assert.Equal(t, payload, data)
}

func buildHeader(t *testing.T, packetSize uint32) *wire.FileHeader {
	t.Helper()
	return wire.NewFileHeader(testLayout(t), 0, 0, packetSize)
}

func TestPacket001_SinglePacketRoundTrip(t *testing.T) {
	c := newPacket001()
	header := buildHeader(t, 1<<20)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	rows := [][]byte{[]byte("row-a"), nil, []byte("row-c")}
	rowCount := uint64(0)
	for _, row := range rows {
		crossed, err := c.BeginWrite(&buf, rowCount)
		require.NoError(t, err)
		assert.False(t, crossed)
		require.NoError(t, c.WriteRow(&buf, row))
		rowCount++
	}
	require.NoError(t, c.Finalize(&buf, rowCount))

	r := newPacket001()
	br := bytes.NewReader(buf.Bytes())
	require.NoError(t, r.SetupRead(br, header))

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "row-a", string(data))

	status, _, err = r.ReadRow(br)
	require.NoError(t, err)
	assert.Equal(t, RowZoHRepeat, status)

	status, data, err = r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "row-c", string(data))

	status, _, err = r.ReadRow(br)
	require.NoError(t, err)
	assert.Equal(t, RowEOF, status)

	require.Len(t, c.PacketIndex(), 1)
	assert.Equal(t, uint64(0), c.PacketIndex()[0].FirstRow)
}

func TestPacket001_MultiplePacketsBoundaryCrossed(t *testing.T) {
	c := newPacket001()
	// A tiny packet_size forces a new packet on every row after the first.
	header := buildHeader(t, 1)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	rows := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	rowCount := uint64(0)
	var crossings int
	for _, row := range rows {
		crossed, err := c.BeginWrite(&buf, rowCount)
		require.NoError(t, err)
		if crossed {
			crossings++
		}
		require.NoError(t, c.WriteRow(&buf, row))
		rowCount++
	}
	require.NoError(t, c.Finalize(&buf, rowCount))
	assert.Equal(t, 2, crossings) // packets open at rows 1 and 2 (not row 0)
	require.Len(t, c.PacketIndex(), 3)

	r := newPacket001()
	br := bytes.NewReader(buf.Bytes())
	require.NoError(t, r.SetupRead(br, header))

	var boundaryCrossings int
	var got []string
	for {
		status, data, err := r.ReadRow(br)
		require.NoError(t, err)
		if status == RowEOF {
			break
		}
		if r.PacketBoundaryCrossed() {
			boundaryCrossings++
		}
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
	assert.Equal(t, 2, boundaryCrossings)
}

func TestPacketLZ4001_RoundTrip(t *testing.T) {
	c := newPacketLZ4001()
	header := wire.NewFileHeader(testLayout(t), 5, 0, 1<<20)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	payload := bytes.Repeat([]byte("compress-me "), 50)
	_, err := c.BeginWrite(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, c.WriteRow(&buf, payload))
	require.NoError(t, c.Finalize(&buf, 1))

	r := newPacketLZ4001()
	br := bytes.NewReader(buf.Bytes())
	require.NoError(t, r.SetupRead(br, header))

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, payload, data)
}

// TestPacketLZ4001_IncompressibleRow mirrors the stream codec's equivalent
// test for the default packet-compressed codec.
func TestPacketLZ4001_IncompressibleRow(t *testing.T) {
	c := newPacketLZ4001()
	header := wire.NewFileHeader(testLayout(t), 5, 0, 1<<20)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))

	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x11}
	_, err := c.BeginWrite(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, c.WriteRow(&buf, payload))
	require.NoError(t, c.Finalize(&buf, 1))

	r := newPacketLZ4001()
	br := bytes.NewReader(buf.Bytes())
	require.NoError(t, r.SetupRead(br, header))

	status, data, err := r.ReadRow(br)
	require.NoError(t, err)
	require.Equal(t, RowOK, status, "a short incompressible row must not be read back as a ZoH repeat")
	assert.Equal(t, payload, data)
}

func TestPacketLZ4Batch001_RoundTrip(t *testing.T) {
	c := newPacketLZ4Batch001()
	header := wire.NewFileHeader(testLayout(t), 4, 0, 1<<20)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))
	defer c.Close()

	rows := [][]byte{[]byte("first row"), nil, []byte("third row")}
	rowCount := uint64(0)
	for _, row := range rows {
		_, err := c.BeginWrite(&buf, rowCount)
		require.NoError(t, err)
		require.NoError(t, c.WriteRow(&buf, row))
		rowCount++
	}
	require.NoError(t, c.Finalize(&buf, rowCount))
	require.Len(t, c.PacketIndex(), 1)

	r := newPacketLZ4Batch001()
	require.NoError(t, r.SetupRead(bytes.NewReader(buf.Bytes()), header))
	defer r.Close()

	status, data, err := r.ReadRow(nil)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "first row", string(data))

	status, _, err = r.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, RowZoHRepeat, status)

	status, data, err = r.ReadRow(nil)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, "third row", string(data))

	status, _, err = r.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, RowEOF, status)
}

// TestPacketLZ4Batch001_IncompressibleSmallPacket covers the whole-packet
// compression path (bgCompressAndWrite/readAndDecompressPacket) with a
// payload too small for LZ4 to shrink, so the packet must be stored
// raw-with-marker and still decompress without error.
func TestPacketLZ4Batch001_IncompressibleSmallPacket(t *testing.T) {
	c := newPacketLZ4Batch001()
	header := wire.NewFileHeader(testLayout(t), 9, 0, 1<<20)
	var buf bytes.Buffer
	require.NoError(t, c.SetupWrite(&buf, header, 0))
	defer c.Close()

	_, err := c.BeginWrite(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, c.WriteRow(&buf, []byte{0x01, 0x02, 0x03}))
	require.NoError(t, c.Finalize(&buf, 1))

	r := newPacketLZ4Batch001()
	require.NoError(t, r.SetupRead(bytes.NewReader(buf.Bytes()), header))
	defer r.Close()

	status, data, err := r.ReadRow(nil)
	require.NoError(t, err)
	require.Equal(t, RowOK, status)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, Packet001, Resolve(0, 0))
	assert.Equal(t, PacketLZ4001, Resolve(3, 0))
	assert.Equal(t, Stream001, Resolve(0, wire.FlagStreamMode))
	assert.Equal(t, StreamLZ4001, Resolve(3, wire.FlagStreamMode))
	assert.Equal(t, PacketLZ4Batch001, Resolve(3, wire.FlagBatchCompress))
	assert.Equal(t, Packet001, Resolve(0, wire.FlagBatchCompress)) // batch needs compression too
}

func TestNew_UnknownID(t *testing.T) {
	_, err := New(ID(255))
	assert.Error(t, err)
}
