package mpegts

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSyncGap is the window, in bytes, the framer searches for a
// triple-packet sync lock before giving up.
const DefaultSyncGap = 1880

// MinSyncGap and MaxSyncGap bound the configurable sync_gap.
const (
	MinSyncGap = MpegTsPacketSize
	MaxSyncGap = 100 * MpegTsPacketSize
)

// ChunkKind classifies a Framer.NextChunk result.
type ChunkKind int

const (
	// ChunkPacket carries exactly one 188-byte, sync-aligned packet.
	ChunkPacket ChunkKind = iota
	// ChunkUnaligned carries 1..sync_gap-1 bytes of non-packet data that
	// precede the next sync lock (or precede Eof/LostSync).
	ChunkUnaligned
	// ChunkEof means the input is exhausted with nothing left to emit.
	ChunkEof
	// ChunkLostSync means no triple-packet lock was found within
	// sync_gap; this is terminal for the stream.
	ChunkLostSync
)

// Chunk is one unit of Framer output.
type Chunk struct {
	Kind ChunkKind
	Data []byte
}

// ErrLostSync is wrapped into the error returned once NextChunk reports
// ChunkLostSync, carrying the byte offset at which sync was lost.
var ErrLostSync = errors.New("mpegts: lost sync")

// FramerOption configures a Framer at construction time.
type FramerOption func(*Framer)

// WithSyncGap overrides the default sync_gap, clamped to
// [MinSyncGap, MaxSyncGap].
func WithSyncGap(n int) FramerOption {
	return func(f *Framer) {
		if n < MinSyncGap {
			n = MinSyncGap
		}
		if n > MaxSyncGap {
			n = MaxSyncGap
		}
		f.syncGap = n
	}
}

// Framer resynchronizes a noisy byte stream onto 188-byte TS packet
// boundaries. It is single-threaded, pull-driven and holds no
// cancellation tokens: the caller stops by simply no longer calling
// NextChunk and dropping the Framer.
type Framer struct {
	src     io.Reader
	syncGap int

	buf []byte // Live window, len(buf) <= syncGap.
	eof bool

	// lockIter walks buf during triple-sync-byte lock detection. It's
	// kept on the Framer and Reset rather than reallocated so a stream
	// that resyncs often doesn't churn the allocator.
	lockIter *NoAllocBytesIterator

	packetIndex int64
	byteOffset  int64
}

// NewFramer wraps src, pulling bytes from it as NextChunk demands.
func NewFramer(src io.Reader, opts ...FramerOption) *Framer {
	f := &Framer{
		src:     src,
		syncGap: DefaultSyncGap,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.buf = make([]byte, 0, f.syncGap)
	return f
}

// PacketIndex is the count of chunks emitted so far.
func (f *Framer) PacketIndex() int64 { return f.packetIndex }

// ByteOffset is the input-stream offset of the front of the live buffer.
func (f *Framer) ByteOffset() int64 { return f.byteOffset }

// refill grows f.buf by reading from src until it holds at least target
// bytes, syncGap bytes, or the source is exhausted.
func (f *Framer) refill(target int) error {
	if target > f.syncGap {
		target = f.syncGap
	}
	for len(f.buf) < target && !f.eof {
		free := cap(f.buf) - len(f.buf)
		if free == 0 {
			break
		}
		n, err := f.src.Read(f.buf[len(f.buf) : len(f.buf)+free])
		if n > 0 {
			f.buf = f.buf[:len(f.buf)+n]
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.eof = true
				return nil
			}
			return fmt.Errorf("mpegts: reading input: %w", err)
		}
		if n == 0 {
			// A well-behaved io.Reader shouldn't return (0, nil)
			// repeatedly, but guard against a spin loop anyway.
			f.eof = true
			return nil
		}
	}
	return nil
}

// NextChunk implements the resync algorithm. advance must be called
// with the result's consumed length before the next call.
func (f *Framer) NextChunk() (*Chunk, error) {
	if err := f.refill(MpegTsPacketSize); err != nil {
		return nil, err
	}
	if len(f.buf) < MpegTsPacketSize {
		if len(f.buf) == 0 {
			return &Chunk{Kind: ChunkEof}, nil
		}
		n := len(f.buf)
		return &Chunk{Kind: ChunkUnaligned, Data: f.buf[:n:n]}, nil
	}

	if f.buf[0] == syncByte {
		return &Chunk{Kind: ChunkPacket, Data: f.buf[:MpegTsPacketSize:MpegTsPacketSize]}, nil
	}

	if err := f.refill(f.syncGap); err != nil {
		return nil, err
	}
	if len(f.buf) < 3*MpegTsPacketSize && f.eof {
		n := len(f.buf)
		return &Chunk{Kind: ChunkUnaligned, Data: f.buf[:n:n]}, nil
	}

	if f.lockIter == nil {
		f.lockIter = NewNoAllocBytesIterator(f.buf)
	} else {
		f.lockIter.Reset(f.buf)
	}

	limit := len(f.buf) - 2*MpegTsPacketSize
	for f.lockIter.Offset() < limit {
		i := f.lockIter.Offset()
		b, err := f.lockIter.NextByte()
		if err != nil {
			break
		}
		if b == syncByte && f.buf[i+MpegTsPacketSize] == syncByte && f.buf[i+2*MpegTsPacketSize] == syncByte {
			if i == 0 {
				// Shouldn't happen (buf[0] already checked above), but
				// keep the invariant that Unaligned carries n >= 1.
				continue
			}
			return &Chunk{Kind: ChunkUnaligned, Data: f.buf[:i:i]}, nil
		}
	}

	return &Chunk{Kind: ChunkLostSync}, nil
}

// advance discards n bytes from the front of the buffer and moves the
// stream position forward. It increments packetIndex by exactly 1
// regardless of n, matching the one-chunk-one-index contract.
func (f *Framer) advance(n int) {
	if n > 0 {
		copy(f.buf, f.buf[n:])
		f.buf = f.buf[:len(f.buf)-n]
		f.byteOffset += int64(n)
	}
	f.packetIndex++
}

// Advance is the exported counterpart of advance, used by callers that
// want to consume a chunk's bytes (Data) explicitly before pulling the
// next one. NextEnvelope below calls this internally.
func (f *Framer) Advance(c *Chunk) {
	f.advance(len(c.Data))
}

// NextEnvelope pulls the next chunk and, if it's a Packet, runs it
// through the packet codec, producing a tagged Envelope either way.
// Unaligned/Eof/LostSync are surfaced as their own sentinel states via
// the returned bool and error.
func (f *Framer) NextEnvelope() (env *Envelope, ok bool, err error) {
	c, err := f.NextChunk()
	if err != nil {
		return nil, false, err
	}

	switch c.Kind {
	case ChunkPacket:
		index := f.packetIndex
		offset := f.byteOffset
		env := newEnvelope(index, offset, c.Data)
		f.Advance(c)
		return env, true, nil
	case ChunkUnaligned:
		index := f.packetIndex
		offset := f.byteOffset
		raw := append([]byte(nil), c.Data...)
		f.Advance(c)
		return &Envelope{
			PacketIndex: index,
			ByteOffset:  offset,
			BodyKind:    EnvelopeBodyRaw,
			Raw:         raw,
		}, true, nil
	case ChunkEof:
		f.Advance(c)
		return nil, false, nil
	case ChunkLostSync:
		return nil, false, fmt.Errorf("%w: at offset %d", ErrLostSync, f.byteOffset)
	default:
		return nil, false, fmt.Errorf("mpegts: unknown chunk kind %d", c.Kind)
	}
}
