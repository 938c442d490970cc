package mpegts

// EnvelopeBodyKind distinguishes a successfully parsed packet from one
// the codec gave up on and passed through verbatim.
type EnvelopeBodyKind int

const (
	// EnvelopeBodyParsed means Packet is populated; Raw still holds the
	// packet's original 188 wire bytes.
	EnvelopeBodyParsed EnvelopeBodyKind = iota
	// EnvelopeBodyRaw means only Raw is populated and Packet is nil:
	// either a 188-byte packet that failed to parse as a valid TS
	// packet, or a run of unaligned bytes the framer skipped ahead of a
	// sync lock (or at the end of the input). The bytes are passed
	// through untouched.
	EnvelopeBodyRaw
)

// Envelope tags a decoded (or un-decodable) unit of the input with its
// ordinal position and byte offset in the stream, so downstream
// consumers can report offsets without re-deriving them from
// packet_index * 188.
type Envelope struct {
	PacketIndex int64
	ByteOffset  int64
	BodyKind    EnvelopeBodyKind
	Packet      *Mpeg2TsPacket
	Raw         []byte
}

// newEnvelope runs parse_packet: attempt a full parse, and fall back to
// a Raw body on any failure rather than aborting the stream.
func newEnvelope(index, offset int64, buf []byte) *Envelope {
	raw := append([]byte(nil), buf...)

	p, err := parsePacket(buf)
	if err != nil {
		return &Envelope{
			PacketIndex: index,
			ByteOffset:  offset,
			BodyKind:    EnvelopeBodyRaw,
			Raw:         raw,
		}
	}
	return &Envelope{
		PacketIndex: index,
		ByteOffset:  offset,
		BodyKind:    EnvelopeBodyParsed,
		Packet:      p,
		Raw:         raw,
	}
}
