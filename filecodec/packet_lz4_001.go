package filecodec

import (
	"fmt"
	"io"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/lz4x"
	"github.com/bcsv-io/bcsv/wire"
)

// packetLZ4001 layers per-row LZ4 compression onto packet001's framing:
// every non-empty row is LZ4-compressed before being handed to the packet
// codec for VLE length, checksum, and packet lifecycle handling.
//
// The reference codec keeps one streaming LZ4 context per packet,
// resetting its dictionary at every packet boundary; as with streamLZ4001,
// pierrec/lz4/v4's block API has no persistent cross-call dictionary, so
// every row is compressed as an independent LZ4 block here (see
// internal/lz4x). The packet-boundary "reset" the reference performs on its
// LZ4 context becomes a no-op in this port: there is no cross-row state
// left to reset.
//
// Grounded on original_source/include/bcsv/file_codec_packet_lz4_001.h.
type packetLZ4001 struct {
	packet           *packet001
	compressionLevel int
}

func newPacketLZ4001() *packetLZ4001 {
	return &packetLZ4001{packet: newPacket001()}
}

func (c *packetLZ4001) SetupWrite(w io.Writer, header *wire.FileHeader, byteOffset int64) error {
	c.compressionLevel = int(header.CompressionLevel)
	return c.packet.SetupWrite(w, header, byteOffset)
}

func (c *packetLZ4001) SetupRead(r io.Reader, header *wire.FileHeader) error {
	return c.packet.SetupRead(r, header)
}

func (c *packetLZ4001) BeginWrite(w io.Writer, rowCount uint64) (bool, error) {
	return c.packet.BeginWrite(w, rowCount)
}

func (c *packetLZ4001) WriteRow(w io.Writer, rowData []byte) error {
	if len(rowData) == 0 {
		return c.packet.WriteRow(w, rowData)
	}

	encoded, err := lz4x.EncodeBlock(rowData, c.compressionLevel)
	if err != nil {
		return fmt.Errorf("%w: lz4 compressing row: %v", errs.ErrIO, err)
	}
	return c.packet.WriteRow(w, encoded)
}

func (c *packetLZ4001) Finalize(w io.Writer, totalRows uint64) error {
	return c.packet.Finalize(w, totalRows)
}

func (c *packetLZ4001) ReadRow(r io.Reader) (RowStatus, []byte, error) {
	status, data, err := c.packet.ReadRow(r)
	if err != nil || status != RowOK {
		return status, data, err
	}

	decompressed, err := lz4x.DecodeBlockAdaptive(data)
	if err != nil {
		return RowEOF, nil, fmt.Errorf("%w: lz4 decompressing row: %v", errs.ErrIO, err)
	}
	return RowOK, decompressed, nil
}

func (c *packetLZ4001) PacketBoundaryCrossed() bool { return c.packet.PacketBoundaryCrossed() }

func (c *packetLZ4001) Reset() { c.packet.Reset() }

func (c *packetLZ4001) PacketIndex() []wire.PacketIndexEntry { return c.packet.PacketIndex() }

func (c *packetLZ4001) Close() error { return c.packet.Close() }
