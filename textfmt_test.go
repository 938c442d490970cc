package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelopeTextPacket(t *testing.T) {
	buf := fakePacket(0x07)
	env := newEnvelope(12, 2256, buf)

	line := EncodeEnvelopeText(env)
	got, err := DecodeEnvelopeText(line)
	require.NoError(t, err)

	assert.Equal(t, env.PacketIndex, got.PacketIndex)
	assert.Equal(t, env.ByteOffset, got.ByteOffset)
	assert.Equal(t, env.BodyKind, got.BodyKind)
	assert.Equal(t, env.Raw, got.Raw)
	require.NotNil(t, got.Packet)
}

func TestEncodeDecodeEnvelopeTextUnaligned(t *testing.T) {
	env := &Envelope{
		PacketIndex: 1,
		ByteOffset:  188,
		BodyKind:    EnvelopeBodyRaw,
		Raw:         []byte{0xaa, 0xbb, 0xcc},
	}
	line := EncodeEnvelopeText(env)
	got, err := DecodeEnvelopeText(line)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeBodyRaw, got.BodyKind)
	assert.Equal(t, env.Raw, got.Raw)
	assert.Nil(t, got.Packet)
}

func TestDecodeEnvelopeTextRejectsMalformedLine(t *testing.T) {
	_, err := DecodeEnvelopeText("P\t0\t0")
	assert.Error(t, err)

	_, err = DecodeEnvelopeText("X\t0\t0\tabcd")
	assert.Error(t, err)

	_, err = DecodeEnvelopeText("P\tnotanumber\t0\tabcd")
	assert.Error(t, err)
}
