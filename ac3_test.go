package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAC3SyncframeDistanceFound(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x0b, 0x77, 0x01, 0x02, 0x14, 0x00}
	assert.Equal(t, 2, AC3SyncframeDistance(buf))
}

func TestAC3SyncframeDistanceAlternateFrmsizecode(t *testing.T) {
	buf := []byte{0x0b, 0x77, 0x01, 0x02, 0x0c, 0x00}
	assert.Equal(t, 0, AC3SyncframeDistance(buf))
}

func TestAC3SyncframeDistanceNotFound(t *testing.T) {
	buf := []byte{0x0b, 0x77, 0x01, 0x02, 0xff, 0x00}
	assert.Equal(t, -1, AC3SyncframeDistance(buf))
}

func TestAC3SyncframeDistanceTooShort(t *testing.T) {
	assert.Equal(t, -1, AC3SyncframeDistance([]byte{0x0b, 0x77, 0x01}))
}

func TestAC3SyncframeDistanceExactlyFiveBytes(t *testing.T) {
	buf := []byte{0x0b, 0x77, 0x01, 0x02, 0x14}
	assert.Equal(t, 0, AC3SyncframeDistance(buf))
}
