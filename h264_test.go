package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestH264FrameTypeFromBufferAUD(t *testing.T) {
	assert.Equal(t, H264FrameTypeP, H264FrameTypeFromBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x09, 0x30, 0x00}))
	assert.Equal(t, H264FrameTypeI, H264FrameTypeFromBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x09, 0x10, 0x00}))
	assert.Equal(t, H264FrameTypeB, H264FrameTypeFromBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x09, 0x50, 0x00}))
}

func TestH264FrameTypeFromBufferIDRSlice(t *testing.T) {
	assert.Equal(t, H264FrameTypeI, H264FrameTypeFromBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x05, 0x88, 0x80}))
}

func TestH264SliceHeaderFrameType(t *testing.T) {
	// first_mb_in_slice=0 ("1"), slice_type=0 ("1") -> P.
	assert.Equal(t, H264FrameTypeP, h264SliceHeaderFrameType([]byte{0b11000000}))
	// first_mb_in_slice=0 ("1"), slice_type=1 ("010") -> B.
	assert.Equal(t, H264FrameTypeB, h264SliceHeaderFrameType([]byte{0b10100000}))
	// first_mb_in_slice=0 ("1"), slice_type=2 ("011") -> I.
	assert.Equal(t, H264FrameTypeI, h264SliceHeaderFrameType([]byte{0b10110000}))
	assert.Equal(t, H264FrameTypeUnknown, h264SliceHeaderFrameType(nil))
}

func TestH264FrameTypeFromBufferUnknown(t *testing.T) {
	assert.Equal(t, H264FrameTypeUnknown, H264FrameTypeFromBuffer([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}))
	assert.Equal(t, H264FrameTypeUnknown, H264FrameTypeFromBuffer([]byte{0x00, 0x00}))
}

func TestH264FrameTypeString(t *testing.T) {
	assert.Equal(t, "I", H264FrameTypeI.String())
	assert.Equal(t, "P", H264FrameTypeP.String())
	assert.Equal(t, "B", H264FrameTypeB.String())
	assert.Equal(t, "OTHER", H264FrameTypeOther.String())
	assert.Equal(t, "UNKNOWN", H264FrameTypeUnknown.String())
}
