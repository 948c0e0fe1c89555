package bcsv

// Stats reports a completed Writer's row and byte counts, adapted from the
// teacher's compress.CompressionStats reporting idiom (CompressionRatio,
// SpaceSavings) to the single LZ4-or-none compressor BCSV ever selects.
type Stats struct {
	// RowCount is the number of rows written.
	RowCount uint64

	// PacketCount is the number of packets written (0 in stream mode).
	PacketCount int

	// UncompressedBytes is the total size of serialized row payloads
	// before any file-codec compression.
	UncompressedBytes int64

	// WrittenBytes is the total number of bytes written to the file,
	// including headers, framing, checksums, and footer.
	WrittenBytes int64
}

// CompressionRatio returns WrittenBytes / UncompressedBytes. Values below
// 1.0 indicate the file is smaller than its uncompressed row payloads;
// values at or above 1.0 mean framing/checksum overhead (or no
// compression) outweighed any savings.
func (s Stats) CompressionRatio() float64 {
	if s.UncompressedBytes == 0 {
		return 0.0
	}
	return float64(s.WrittenBytes) / float64(s.UncompressedBytes)
}

// SpaceSavings returns the space saved as a percentage (0-100), or a
// negative value if the written file is larger than the uncompressed
// payload total.
func (s Stats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}
