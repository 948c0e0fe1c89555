package bcsv

import (
	"fmt"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/internal/options"
	"github.com/bcsv-io/bcsv/limits"
	"github.com/bcsv-io/bcsv/wire"
)

// WriterConfig holds NewWriter's configuration, built up by WriterOption
// values before the file is created.
type WriterConfig struct {
	overwrite        bool
	compressionLevel uint8
	flags            wire.Flags
	packetSize       uint32
}

// NewWriterConfig returns the default WriterConfig: no overwrite, no
// compression, no flags, default packet size.
func NewWriterConfig() *WriterConfig {
	return &WriterConfig{
		packetSize: limits.DefaultPacketSize,
	}
}

// WriterOption configures a WriterConfig. Specialization of the generic
// options.Option interface, following the teacher's NumericEncoderOption
// pattern.
type WriterOption = options.Option[*WriterConfig]

// WithOverwrite allows NewWriter to replace an existing file at path
// instead of failing with errs.ErrFileExists.
func WithOverwrite() WriterOption {
	return options.NoError(func(c *WriterConfig) {
		c.overwrite = true
	})
}

// WithCompressionLevel sets the LZ4 compression level (0 disables
// compression; 1-9 select an LZ4 level). Selects a compressed file codec
// via filecodec.Resolve.
func WithCompressionLevel(level uint8) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if level > 9 {
			return fmt.Errorf("%w: compression level %d exceeds maximum of 9", errs.ErrSchema, level)
		}
		c.compressionLevel = level
		return nil
	})
}

// WithFlags sets the file's feature flags (zero-order-hold, no-file-index,
// stream-mode, batch-compress). Flags are immutable for the life of the
// file once written.
func WithFlags(flags wire.Flags) WriterOption {
	return options.NoError(func(c *WriterConfig) {
		c.flags = flags
	})
}

// WithPacketSize sets the target packet size in bytes. Sizes outside
// [limits.MinPacketSize, limits.MaxPacketSize] make the option fail with
// errs.ErrSchema. Ignored in stream mode.
func WithPacketSize(size uint32) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if size < limits.MinPacketSize || size > limits.MaxPacketSize {
			return fmt.Errorf("%w: packet size %d outside [%d, %d]", errs.ErrSchema, size, limits.MinPacketSize, limits.MaxPacketSize)
		}
		c.packetSize = size
		return nil
	})
}

// ReaderConfig holds NewReader's and NewReaderDirectAccess's
// configuration, built up by ReaderOption values before the file is opened.
type ReaderConfig struct {
	rebuildFooter      bool
	maxFooterScanBytes int64
}

// NewReaderConfig returns the default ReaderConfig: footer rebuild
// disabled, no scan limit.
func NewReaderConfig() *ReaderConfig {
	return &ReaderConfig{}
}

// ReaderOption configures a ReaderConfig.
type ReaderOption = options.Option[*ReaderConfig]

// WithRebuildFooter tells NewReaderDirectAccess to reconstruct a missing
// or corrupt footer by scanning forward through packet headers instead of
// failing outright.
func WithRebuildFooter(rebuild bool) ReaderOption {
	return options.NoError(func(c *ReaderConfig) {
		c.rebuildFooter = rebuild
	})
}

// WithMaxFooterScanBytes bounds how far WithRebuildFooter's forward scan
// will read before giving up. Zero (the default) means unbounded.
func WithMaxFooterScanBytes(n int64) ReaderOption {
	return options.NoError(func(c *ReaderConfig) {
		c.maxFooterScanBytes = n
	})
}
