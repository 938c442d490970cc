package mpegts

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Text-format line prefixes. A "P" line is a parsed packet (the common
// case); a "U" line is any Raw envelope: an unaligned run of bytes the
// framer couldn't lock onto, or a 188-byte packet that failed to parse.
// Eof/LostSync never reach the text format, since they carry no bytes of
// their own.
const (
	textPrefixPacket    = "P"
	textPrefixUnaligned = "U"
)

// EncodeEnvelopeText renders env as one line of the text format. The
// line always carries the envelope's original wire bytes verbatim
// (hex-encoded), so DecodeEnvelopeText(EncodeEnvelopeText(env)) is a
// lossless round trip regardless of how deeply the model inside env
// was decoded.
func EncodeEnvelopeText(env *Envelope) string {
	var prefix string
	var raw []byte
	switch env.BodyKind {
	case EnvelopeBodyParsed:
		prefix = textPrefixPacket
		raw = env.Raw
	default:
		prefix = textPrefixUnaligned
		raw = env.Raw
	}
	return fmt.Sprintf("%s\t%d\t%d\t%s", prefix, env.PacketIndex, env.ByteOffset, hex.EncodeToString(raw))
}

// DecodeEnvelopeText parses one line produced by EncodeEnvelopeText back
// into an Envelope, re-running the packet codec over the recovered
// bytes for Packet lines.
func DecodeEnvelopeText(line string) (*Envelope, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return nil, fmt.Errorf("mpegts: text line has %d fields, want 4", len(fields))
	}

	index, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("mpegts: parsing packet index: %w", err)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("mpegts: parsing byte offset: %w", err)
	}
	raw, err := hex.DecodeString(fields[3])
	if err != nil {
		return nil, fmt.Errorf("mpegts: decoding hex payload: %w", err)
	}

	switch fields[0] {
	case textPrefixPacket:
		return newEnvelope(index, offset, raw), nil
	case textPrefixUnaligned:
		return &Envelope{
			PacketIndex: index,
			ByteOffset:  offset,
			BodyKind:    EnvelopeBodyRaw,
			Raw:         raw,
		}, nil
	default:
		return nil, fmt.Errorf("mpegts: unknown text line prefix %q", fields[0])
	}
}
