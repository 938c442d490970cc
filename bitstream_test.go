package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitstreamReadUint32(t *testing.T) {
	bs := NewBitstream([]byte{0b10110000})
	v, err := bs.ReadUint32(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1011), v)

	v, err = bs.ReadUint32(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b0000), v)

	_, err = bs.ReadUint32(1)
	assert.ErrorIs(t, err, ErrBitstreamExhausted)
}

func TestBitstreamSkip(t *testing.T) {
	bs := NewBitstream([]byte{0xff, 0b10100000})
	require.NoError(t, bs.Skip(8))
	v, err := bs.ReadUint32(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), v)
}

func TestBitstreamReadGolombUint32(t *testing.T) {
	// ue(v) codes: 0 -> "1", 1 -> "010", 2 -> "011".
	bs := NewBitstream([]byte{0b1_010_011_0})
	v, err := bs.ReadGolombUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = bs.ReadGolombUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = bs.ReadGolombUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
}

func TestBitstreamReadGolombInt32(t *testing.T) {
	// se(v): ue=1 -> "010" maps to +1, ue=2 -> "011" maps to -1.
	bs := NewBitstream([]byte{0b010_011_00})
	v, err := bs.ReadGolombInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	v, err = bs.ReadGolombInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestGetBitsAndSetBits(t *testing.T) {
	assert.Equal(t, uint64(0b101), GetBits(0b110101, 0, 2))
	assert.Equal(t, uint64(0b11), GetBits(0b110101, 4, 5))

	buf := make([]byte, 2)
	SetBits(buf, 4, 8, 0xab)
	assert.Equal(t, []byte{0x0a, 0xb0}, buf)
}
