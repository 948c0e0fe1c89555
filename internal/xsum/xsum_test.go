package xsum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum64_Deterministic(t *testing.T) {
	data := []byte("bcsv packet payload")
	assert.Equal(t, Sum64(data), Sum64(data))
}

func TestSum64_DiffersOnChange(t *testing.T) {
	a := []byte("packet-one")
	b := []byte("packet-two")
	assert.NotEqual(t, Sum64(a), Sum64(b))
}

func TestSum32_Deterministic(t *testing.T) {
	data := []byte("PCKT header bytes")
	assert.Equal(t, Sum32(data), Sum32(data))
}

func TestSum32_IsLowBitsOfSum64(t *testing.T) {
	data := []byte("truncation check")
	assert.Equal(t, uint32(Sum64(data)), Sum32(data))
}

func TestSum32_DiffersOnSingleBitFlip(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03, 0x04}
	b := []byte{0x01, 0x02, 0x03, 0x05}
	assert.NotEqual(t, Sum32(a), Sum32(b))
}

func TestStreaming_MatchesOneShot(t *testing.T) {
	data := []byte("streamed checksum content spanning multiple updates")
	s := NewStreaming()
	s.Update(data[:10])
	s.Update(data[10:])
	assert.Equal(t, Sum64(data), s.Finalize())
}

func TestStreaming_Reset(t *testing.T) {
	s := NewStreaming()
	s.Update([]byte("first"))
	first := s.Finalize()

	s.Reset()
	s.Update([]byte("first"))
	assert.Equal(t, first, s.Finalize())
}
