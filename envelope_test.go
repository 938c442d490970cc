package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeParsesValidPacket(t *testing.T) {
	buf := fakePacket(0x00)
	env := newEnvelope(3, 564, buf)
	assert.Equal(t, EnvelopeBodyParsed, env.BodyKind)
	require.NotNil(t, env.Packet)
	assert.Equal(t, int64(3), env.PacketIndex)
	assert.Equal(t, int64(564), env.ByteOffset)
	assert.Equal(t, buf, env.Raw)
}

func TestNewEnvelopeFallsBackToRawOnParseFailure(t *testing.T) {
	buf := make([]byte, MpegTsPacketSize)
	buf[0] = 0x00 // Not a sync byte.
	env := newEnvelope(0, 0, buf)
	assert.Equal(t, EnvelopeBodyRaw, env.BodyKind)
	assert.Nil(t, env.Packet)
	assert.Equal(t, buf, env.Raw)
}
