package mpegts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// ErrBitstreamExhausted is returned when a read or skip runs past the end
// of the buffer.
var ErrBitstreamExhausted = errors.New("mpegts: bitstream exhausted")

// Bitstream reads bits sequentially out of an immutable byte buffer. It
// backs the H.264 slice-header decoding the frame-type probe needs:
// fixed-width fields plus Exp-Golomb (H.264 §9.1) variable-length codes.
type Bitstream struct {
	r        *bitio.CountReader
	bitsLeft int64
}

// NewBitstream creates a reader over buf.
func NewBitstream(buf []byte) *Bitstream {
	return &Bitstream{
		r:        bitio.NewCountReader(bytes.NewReader(buf)),
		bitsLeft: int64(len(buf)) * 8,
	}
}

// ReadUint32 reads the next n bits (1 <= n <= 32) as a big-endian value.
func (b *Bitstream) ReadUint32(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, fmt.Errorf("mpegts: invalid bit width %d", n)
	}
	if b.bitsLeft < int64(n) {
		return 0, ErrBitstreamExhausted
	}
	v, err := b.r.ReadBits(uint8(n))
	if err != nil {
		return 0, fmt.Errorf("mpegts: reading %d bits: %w", n, err)
	}
	b.bitsLeft -= int64(n)
	return uint32(v), nil
}

// Skip advances the cursor by n bits without returning them.
func (b *Bitstream) Skip(n int) error {
	if b.bitsLeft < int64(n) {
		return ErrBitstreamExhausted
	}
	if _, err := b.r.ReadBits(uint8(n)); err != nil {
		return fmt.Errorf("mpegts: skipping %d bits: %w", n, err)
	}
	b.bitsLeft -= int64(n)
	return nil
}

// ReadGolombUint32 decodes an Exp-Golomb unsigned code: count the leading
// zero bits k, consume the marker bit, read k suffix bits, and return
// (1<<k)-1+suffix.
func (b *Bitstream) ReadGolombUint32() (uint32, error) {
	leadingZeros := 0
	for {
		if b.bitsLeft <= 0 {
			return 0, ErrBitstreamExhausted
		}
		bit, err := b.ReadUint32(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		leadingZeros++
	}

	if b.bitsLeft < int64(leadingZeros) {
		return 0, ErrBitstreamExhausted
	}

	var suffix uint32
	if leadingZeros > 0 {
		var err error
		suffix, err = b.ReadUint32(leadingZeros)
		if err != nil {
			return 0, err
		}
	}

	return uint32(1<<uint(leadingZeros)) - 1 + suffix, nil
}

// ReadGolombInt32 decodes a signed Exp-Golomb code: decode the unsigned
// value u, then map u -> (u+1)/2 with sign '-' when u is even.
func (b *Bitstream) ReadGolombInt32() (int32, error) {
	u, err := b.ReadGolombUint32()
	if err != nil {
		return 0, err
	}
	v := int32((u + 1) >> 1)
	if u&1 == 0 {
		v = -v
	}
	return v, nil
}
