// Package lz4x wraps github.com/pierrec/lz4/v4's block-mode API with pooled
// compressors and an adaptive-growth decompressor, for use by BCSV's LZ4
// file codecs.
//
// pierrec/lz4/v4's public block API has no cross-call dictionary hook, so a
// byte-exact port of a persistent-dictionary streaming compressor is not
// possible against this library. Each row (or, for the batch codec, each
// whole packet) is compressed as an independent LZ4 block instead; this
// trades away cross-row dictionary reuse for a codec that is fully
// expressible against the library's real, documented surface.
package lz4x

import (
	"errors"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var compressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

var hcCompressorPool = sync.Pool{
	New: func() any { return &lz4.CompressorHC{} },
}

// CompressBlock compresses src as a single LZ4 block. level selects the
// fast-mode (1-5) vs high-compression (6-9) pool; level 0 is treated as 1.
// Returns a zero-length slice (not an error) when src is incompressible —
// callers needing a payload they can always tell apart from "no data" must
// use EncodeBlock instead.
func CompressBlock(src []byte, level int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	var n int
	var err error
	if level >= 6 {
		c, _ := hcCompressorPool.Get().(*lz4.CompressorHC)
		defer hcCompressorPool.Put(c)
		c.Level = lz4.CompressionLevel(1 << uint(level))
		n, err = c.CompressBlock(src, dst)
	} else {
		c, _ := compressorPool.Get().(*lz4.Compressor)
		defer compressorPool.Put(c)
		n, err = c.CompressBlock(src, dst)
	}
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// Block tag bytes distinguishing an LZ4-compressed EncodeBlock payload from
// one stored raw. lz4.CompressBlock reports n == 0 for any input it can't
// shrink — which in practice means nearly every payload under ~16-20
// bytes, so BCSV's small fixed-width rows hit this constantly. A
// zero-length compressed payload is indistinguishable from BCSV's
// zero-length ZoH-repeat marker, so EncodeBlock always emits at least this
// one tag byte and falls back to storing src unmodified when LZ4 can't
// shrink it.
const (
	blockTagLZ4 byte = 0
	blockTagRaw byte = 1
)

// EncodeBlock compresses src as a tagged LZ4 block for callers that must
// never confuse "stored incompressible" with "no payload". Returns nil for
// an empty src (callers are expected to already special-case empty rows
// as a distinct wire marker before reaching here).
func EncodeBlock(src []byte, level int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	compressed, err := CompressBlock(src, level)
	if err != nil {
		return nil, err
	}

	if len(compressed) > 0 {
		out := make([]byte, 1+len(compressed))
		out[0] = blockTagLZ4
		copy(out[1:], compressed)
		return out, nil
	}

	out := make([]byte, 1+len(src))
	out[0] = blockTagRaw
	copy(out[1:], src)
	return out, nil
}

// DecodeBlock reverses EncodeBlock when the original (uncompressed) size
// is known up front.
func DecodeBlock(data []byte, dstSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, payload := data[0], data[1:]
	if tag == blockTagRaw {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	return UncompressBlock(payload, dstSize)
}

// DecodeBlockAdaptive reverses EncodeBlock when the original size is not
// known up front.
func DecodeBlockAdaptive(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, payload := data[0], data[1:]
	if tag == blockTagRaw {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	return UncompressBlockAdaptive(payload)
}

// UncompressBlock decompresses src into a buffer of exactly dstSize bytes.
// Use this when the original size is known (e.g. the batch codec's stored
// uncompressed_size field).
func UncompressBlock(src []byte, dstSize int) ([]byte, error) {
	if dstSize == 0 {
		return nil, nil
	}
	dst := make([]byte, dstSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// UncompressBlockAdaptive decompresses src when the original size is not
// known up front (per-row stream/packet LZ4 codecs). It starts with a buffer
// 4x the compressed size and doubles on ErrInvalidSourceShortBuffer, up to a
// safety cap.
func UncompressBlockAdaptive(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	bufSize := len(src) * 4
	if bufSize < 64 {
		bufSize = 64
	}
	const maxSize = 128 * 1024 * 1024 // 128MiB safety cap

	for bufSize <= maxSize {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}
			return nil, err
		}
		return dst[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}
