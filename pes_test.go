package mpegts

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPESStreamIDTypeOf(t *testing.T) {
	assert.Equal(t, PESStreamIDTypeAudio13818, PESStreamIDTypeOf(0xc0))
	assert.Equal(t, PESStreamIDTypeAudio13818, PESStreamIDTypeOf(0xdf))
	assert.Equal(t, PESStreamIDTypeVideo13818, PESStreamIDTypeOf(0xe0))
	assert.Equal(t, PESStreamIDTypeVideo13818, PESStreamIDTypeOf(0xef))
	assert.Equal(t, PESStreamIDTypePrivateStream1, PESStreamIDTypeOf(0xbd))
	assert.Equal(t, PESStreamIDTypeProgramStreamMap, PESStreamIDTypeOf(0xbc))
	assert.Equal(t, PESStreamIDTypeOther, PESStreamIDTypeOf(0x01))
}

func TestHasExtendedHeader(t *testing.T) {
	assert.False(t, hasExtendedHeader(streamIDProgramStreamMap))
	assert.False(t, hasExtendedHeader(streamIDPaddingStream))
	assert.True(t, hasExtendedHeader(0xe0)) // Video.
	assert.True(t, hasExtendedHeader(0xc0)) // Audio.
}

func TestPESPacketRoundTripPTSOnly(t *testing.T) {
	pts := int64(5_000_000_001)
	p := &PESPacket{
		StreamID: 0xe0,
		OptionalHeader: &PESOptionalHeader{
			DataAlignmentIndicator: true,
			PTS:                    &pts,
		},
	}

	buf := make([]byte, 64)
	n, err := writePESPacket(buf, p)
	require.NoError(t, err)

	got, consumed, err := parsePESPacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, p.StreamID, got.StreamID)
	require.NotNil(t, got.OptionalHeader)
	assert.True(t, got.OptionalHeader.DataAlignmentIndicator)
	require.NotNil(t, got.OptionalHeader.PTS)
	assert.Equal(t, pts, *got.OptionalHeader.PTS)
	assert.Nil(t, got.OptionalHeader.DTS)
}

func TestPESPacketRoundTripPTSAndDTSAndESCR(t *testing.T) {
	pts := int64(8_589_000_000 % (1 << 33))
	dts := int64(8_588_000_000 % (1 << 33))
	p := &PESPacket{
		StreamID: 0xe0,
		OptionalHeader: &PESOptionalHeader{
			ScramblingControl: ScramblingControlScrambledWithEvenKey,
			PTS:               &pts,
			DTS:               &dts,
			ESCR:              newClockReference(12345, 67),
			HasESRate:         true,
			ESRate:            1234,
		},
	}

	buf := make([]byte, 64)
	n, err := writePESPacket(buf, p)
	require.NoError(t, err)

	got, consumed, err := parsePESPacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	require.NotNil(t, got.OptionalHeader.PTS)
	require.NotNil(t, got.OptionalHeader.DTS)
	assert.Equal(t, pts, *got.OptionalHeader.PTS)
	assert.Equal(t, dts, *got.OptionalHeader.DTS)
	require.NotNil(t, got.OptionalHeader.ESCR)
	assert.Equal(t, int64(12345), got.OptionalHeader.ESCR.Base)
	assert.Equal(t, int64(67), got.OptionalHeader.ESCR.Extension)
	assert.True(t, got.OptionalHeader.HasESRate)
	assert.Equal(t, uint32(1234), got.OptionalHeader.ESRate)
}

func TestPESPacketRoundTripExtension(t *testing.T) {
	p := &PESPacket{
		StreamID: 0xe0,
		OptionalHeader: &PESOptionalHeader{
			Extension: &PESExtension{
				PrivateData:                     make([]byte, 16),
				HasProgramPacketSequenceCounter: true,
				ProgramPacketSequenceCounter:    42,
				MPEG1MPEG2Identifier:            true,
				OriginalStuffLength:             3,
				HasPSTDBuffer:                   true,
				PSTDBufferScale:                 1,
				PSTDBufferSize:                  100,
			},
		},
	}
	for i := range p.OptionalHeader.Extension.PrivateData {
		p.OptionalHeader.Extension.PrivateData[i] = byte(i)
	}

	buf := make([]byte, 64)
	n, err := writePESPacket(buf, p)
	require.NoError(t, err)

	got, _, err := parsePESPacket(buf[:n])
	require.NoError(t, err)
	require.NotNil(t, got.OptionalHeader.Extension)
	assert.Equal(t, p.OptionalHeader.Extension.PrivateData, got.OptionalHeader.Extension.PrivateData)
	assert.True(t, got.OptionalHeader.Extension.HasProgramPacketSequenceCounter)
	assert.Equal(t, uint8(42), got.OptionalHeader.Extension.ProgramPacketSequenceCounter)
	assert.True(t, got.OptionalHeader.Extension.MPEG1MPEG2Identifier)
	assert.True(t, got.OptionalHeader.Extension.HasPSTDBuffer)
	assert.Equal(t, uint16(100), got.OptionalHeader.Extension.PSTDBufferSize)
}

func TestParsePESPacketMissingStartCode(t *testing.T) {
	_, _, err := parsePESPacket([]byte{0x00, 0x00, 0x00, 0xe0, 0x00, 0x00})
	assert.Error(t, err)
}

func TestParsePTSOrDTSMarkerFailure(t *testing.T) {
	// PTS prefix 0x2, but with marker bit 1 forced to zero.
	buf := []byte{0b0010_0000, 0x00, 0x00, 0x00, 0x00}
	r := bitio.NewCountReader(bytes.NewReader(buf))
	_, err := parsePTSOrDTS(r, 0x2)
	assert.Error(t, err)
}
