package pool

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewByteBuffer(t *testing.T) {
	capacity := 1024
	bb := NewByteBuffer(capacity)

	require.NotNil(t, bb)
	require.NotNil(t, bb.B)
	assert.Equal(t, 0, len(bb.B), "new buffer should have zero length")
	assert.Equal(t, capacity, cap(bb.B), "new buffer should have specified capacity")
}

func TestByteBuffer_Bytes(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	bb.B = append(bb.B, []byte("hello")...)

	got := bb.Bytes()

	assert.Equal(t, []byte("hello"), got)
	assert.True(t, &bb.B[0] == &got[0], "Bytes() should return the same underlying slice")
}

func TestByteBuffer_Reset(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	bb.B = append(bb.B, []byte("some data")...)
	originalCap := cap(bb.B)

	bb.Reset()

	assert.Equal(t, 0, len(bb.B), "Reset should clear the buffer length")
	assert.Equal(t, originalCap, cap(bb.B), "Reset should preserve capacity")
}

func TestByteBuffer_Len(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)

	assert.Equal(t, 0, bb.Len())

	bb.B = append(bb.B, []byte("test")...)
	assert.Equal(t, 4, bb.Len())
}

func TestByteBuffer_MustWrite(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)

	bb.MustWrite([]byte("hello"))
	assert.Equal(t, []byte("hello"), bb.B)

	bb.MustWrite([]byte(" world"))
	assert.Equal(t, []byte("hello world"), bb.B)
}

func TestByteBuffer_Write(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)

	n, err := bb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), bb.B)
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	bb.B = append(bb.B, []byte("test data")...)

	var buf bytes.Buffer
	n, err := bb.WriteTo(&buf)

	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "test data", buf.String())
}

func TestByteBuffer_WriteTo_ErrorPropagation(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	bb.B = append(bb.B, []byte("test")...)

	ew := &errorWriter{err: io.ErrShortWrite}
	n, err := bb.WriteTo(ew)

	assert.Error(t, err)
	assert.Equal(t, io.ErrShortWrite, err)
	assert.Equal(t, int64(0), n)
}

func TestByteBuffer_Grow_SufficientCapacity(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	originalCap := cap(bb.B)

	bb.Grow(100)

	assert.Equal(t, originalCap, cap(bb.B))
}

func TestByteBuffer_Grow_SmallBuffer(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	bb.B = append(bb.B, make([]byte, RowBufferDefaultSize)...)

	bb.Grow(1024)

	assert.GreaterOrEqual(t, cap(bb.B), RowBufferDefaultSize+1024)
	assert.Equal(t, RowBufferDefaultSize, len(bb.B))
}

func TestByteBuffer_Grow_LargeBuffer(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	largeSize := 4*RowBufferDefaultSize + 1024
	bb.B = make([]byte, largeSize)

	bb.Grow(2048)

	assert.GreaterOrEqual(t, cap(bb.B), largeSize+2048)
}

func TestByteBuffer_Grow_PreservesData(t *testing.T) {
	bb := NewByteBuffer(RowBufferDefaultSize)
	testData := []byte("important data that must be preserved")
	bb.B = append(bb.B, testData...)

	bb.Grow(RowBufferDefaultSize * 2)

	assert.Equal(t, testData, bb.B)
}

func TestByteBuffer_Extend(t *testing.T) {
	bb := NewByteBuffer(16)
	ok := bb.Extend(8)
	assert.True(t, ok)
	assert.Equal(t, 8, bb.Len())

	ok = bb.Extend(1000)
	assert.False(t, ok)
}

func TestByteBuffer_ExtendOrGrow(t *testing.T) {
	bb := NewByteBuffer(4)
	bb.ExtendOrGrow(100)
	assert.Equal(t, 100, bb.Len())
}

func TestByteBuffer_SliceAndSetLength(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.SetLength(10)
	assert.Equal(t, 10, bb.Len())

	s := bb.Slice(2, 6)
	assert.Equal(t, 4, len(s))

	assert.Panics(t, func() { bb.Slice(-1, 2) })
	assert.Panics(t, func() { bb.SetLength(-1) })
}

func TestGetRowBuffer(t *testing.T) {
	bb := GetRowBuffer()

	require.NotNil(t, bb)
	assert.Equal(t, 0, len(bb.B))
	assert.GreaterOrEqual(t, cap(bb.B), RowBufferDefaultSize)
	PutRowBuffer(bb)
}

func TestPutRowBuffer_NilBuffer(t *testing.T) {
	assert.NotPanics(t, func() {
		PutRowBuffer(nil)
	})
}

func TestGetPut_RowBufferReuse(t *testing.T) {
	bb1 := GetRowBuffer()
	bb1.B = append(bb1.B, []byte("test data")...)
	PutRowBuffer(bb1)

	bb2 := GetRowBuffer()
	assert.Equal(t, 0, len(bb2.B), "buffer from pool should be reset")
	PutRowBuffer(bb2)
}

func TestByteBufferPool_MaxThreshold_Discard(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)

	bb := p.Get()
	bb.Grow(10000)
	assert.Greater(t, cap(bb.B), 4096)

	p.Put(bb)

	bb2 := p.Get()
	assert.LessOrEqual(t, cap(bb2.B), 4096*2, "should not reuse buffer larger than threshold")
}

func TestGetPacketBuffer(t *testing.T) {
	bb := GetPacketBuffer()
	require.NotNil(t, bb)
	assert.GreaterOrEqual(t, cap(bb.B), PacketBufferDefaultSize)
	PutPacketBuffer(bb)
}

func TestDefaultPools_Independence(t *testing.T) {
	rowBuf := GetRowBuffer()
	packetBuf := GetPacketBuffer()

	assert.NotEqual(t, cap(rowBuf.B), cap(packetBuf.B))

	PutRowBuffer(rowBuf)
	PutPacketBuffer(packetBuf)
}

func TestPool_ConcurrentAccess(t *testing.T) {
	const numGoroutines = 32
	const numIterations = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				bb := GetRowBuffer()
				bb.MustWrite([]byte("data"))
				assert.Equal(t, 4, bb.Len())
				PutRowBuffer(bb)
			}
		}()
	}

	wg.Wait()
}

type errorWriter struct {
	err error
}

func (ew *errorWriter) Write(p []byte) (n int, err error) {
	return 0, ew.err
}
