package mpegts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePacket(marker byte) []byte {
	p := make([]byte, MpegTsPacketSize)
	p[0] = syncByte
	p[1] = marker
	return p
}

func TestFramerAlignedPacket(t *testing.T) {
	f := NewFramer(bytes.NewReader(fakePacket(0x01)))
	c, err := f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkPacket, c.Kind)
	assert.Len(t, c.Data, MpegTsPacketSize)
	f.Advance(c)

	c, err = f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkEof, c.Kind)
}

func TestFramerLostSync(t *testing.T) {
	buf := bytes.Repeat([]byte{0xaa}, 3000)
	f := NewFramer(bytes.NewReader(buf))
	c, err := f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkLostSync, c.Kind)
}

func TestFramerResyncAfterJunk(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xaa}, 100))
	buf.Write(fakePacket(0x01))
	buf.Write(fakePacket(0x02))
	buf.Write(fakePacket(0x03))

	f := NewFramer(bytes.NewReader(buf.Bytes()))

	c, err := f.NextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkUnaligned, c.Kind)
	assert.Len(t, c.Data, 100)
	f.Advance(c)

	for i, marker := range []byte{0x01, 0x02, 0x03} {
		c, err = f.NextChunk()
		require.NoError(t, err, "packet %d", i)
		require.Equal(t, ChunkPacket, c.Kind, "packet %d", i)
		assert.Equal(t, marker, c.Data[1], "packet %d", i)
		f.Advance(c)
	}

	c, err = f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkEof, c.Kind)
}

func TestFramerResyncTwiceReusesLockIterator(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xaa}, 50))
	buf.Write(fakePacket(0x01))
	buf.Write(fakePacket(0x02))
	buf.Write(fakePacket(0x03))
	buf.Write(bytes.Repeat([]byte{0xbb}, 70))
	buf.Write(fakePacket(0x04))
	buf.Write(fakePacket(0x05))
	buf.Write(fakePacket(0x06))

	f := NewFramer(bytes.NewReader(buf.Bytes()))

	c, err := f.NextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkUnaligned, c.Kind)
	assert.Len(t, c.Data, 50)
	f.Advance(c)
	firstIter := f.lockIter
	require.NotNil(t, firstIter)

	for _, marker := range []byte{0x01, 0x02, 0x03} {
		c, err = f.NextChunk()
		require.NoError(t, err)
		require.Equal(t, ChunkPacket, c.Kind)
		assert.Equal(t, marker, c.Data[1])
		f.Advance(c)
	}

	c, err = f.NextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkUnaligned, c.Kind)
	assert.Len(t, c.Data, 70)
	f.Advance(c)
	assert.Same(t, firstIter, f.lockIter)

	for _, marker := range []byte{0x04, 0x05, 0x06} {
		c, err = f.NextChunk()
		require.NoError(t, err)
		require.Equal(t, ChunkPacket, c.Kind)
		assert.Equal(t, marker, c.Data[1])
		f.Advance(c)
	}

	c, err = f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkEof, c.Kind)
}

func TestFramerPartialTail(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fakePacket(0x01))
	buf.Write(bytes.Repeat([]byte{0x00}, 112))

	f := NewFramer(bytes.NewReader(buf.Bytes()))

	c, err := f.NextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkPacket, c.Kind)
	f.Advance(c)

	c, err = f.NextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkUnaligned, c.Kind)
	assert.Len(t, c.Data, 112)
	f.Advance(c)

	c, err = f.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkEof, c.Kind)
}

func TestFramerNextEnvelopeLostSyncError(t *testing.T) {
	buf := bytes.Repeat([]byte{0xaa}, 3000)
	f := NewFramer(bytes.NewReader(buf))
	_, ok, err := f.NextEnvelope()
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrLostSync))
}

func TestFramerWithSyncGapClamped(t *testing.T) {
	f := NewFramer(bytes.NewReader(nil), WithSyncGap(1))
	assert.Equal(t, MinSyncGap, f.syncGap)

	f = NewFramer(bytes.NewReader(nil), WithSyncGap(1_000_000))
	assert.Equal(t, MaxSyncGap, f.syncGap)
}
