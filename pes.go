package mpegts

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// PESStreamIDType is the derived category of a PES packet's stream_id.
type PESStreamIDType int

// PES stream-id categories.
const (
	PESStreamIDTypeOther PESStreamIDType = iota
	PESStreamIDTypeProgramStreamMap
	PESStreamIDTypePrivateStream1
	PESStreamIDTypePaddingStream
	PESStreamIDTypePrivateStream2
	PESStreamIDTypeAudio13818
	PESStreamIDTypeVideo13818
	PESStreamIDTypeECMStream
	PESStreamIDTypeEMMStream
	PESStreamIDTypeDSMCCStream
	PESStreamIDType13522Stream
	PESStreamIDTypeH222TypeAStream
	PESStreamIDTypeH222TypeBStream
	PESStreamIDTypeH222TypeCStream
	PESStreamIDTypeH222TypeDStream
	PESStreamIDTypeH222TypeEStream
	PESStreamIDTypeAncillaryStream
	PESStreamIDTypeProgramStreamDirectory
)

// Raw stream_id values with a single reserved meaning.
const (
	streamIDProgramStreamMap       = 0xbc
	streamIDPrivateStream1         = 0xbd
	streamIDPaddingStream          = 0xbe
	streamIDPrivateStream2         = 0xbf
	streamIDECMStream              = 0xf0
	streamIDEMMStream              = 0xf1
	streamIDDSMCCStream            = 0xf2
	streamID13522Stream            = 0xf3
	streamIDH222TypeAStream        = 0xf4
	streamIDH222TypeBStream        = 0xf5
	streamIDH222TypeCStream        = 0xf6
	streamIDH222TypeDStream        = 0xf7
	streamIDH222TypeEStream        = 0xf8
	streamIDAncillaryStream        = 0xf9
	streamIDProgramStreamDirectory = 0xff
)

// PESStreamIDTypeOf classifies a raw stream_id byte.
func PESStreamIDTypeOf(streamID uint8) PESStreamIDType {
	switch streamID {
	case streamIDProgramStreamMap:
		return PESStreamIDTypeProgramStreamMap
	case streamIDPrivateStream1:
		return PESStreamIDTypePrivateStream1
	case streamIDPaddingStream:
		return PESStreamIDTypePaddingStream
	case streamIDPrivateStream2:
		return PESStreamIDTypePrivateStream2
	case streamIDECMStream:
		return PESStreamIDTypeECMStream
	case streamIDEMMStream:
		return PESStreamIDTypeEMMStream
	case streamIDDSMCCStream:
		return PESStreamIDTypeDSMCCStream
	case streamID13522Stream:
		return PESStreamIDType13522Stream
	case streamIDH222TypeAStream:
		return PESStreamIDTypeH222TypeAStream
	case streamIDH222TypeBStream:
		return PESStreamIDTypeH222TypeBStream
	case streamIDH222TypeCStream:
		return PESStreamIDTypeH222TypeCStream
	case streamIDH222TypeDStream:
		return PESStreamIDTypeH222TypeDStream
	case streamIDH222TypeEStream:
		return PESStreamIDTypeH222TypeEStream
	case streamIDAncillaryStream:
		return PESStreamIDTypeAncillaryStream
	case streamIDProgramStreamDirectory:
		return PESStreamIDTypeProgramStreamDirectory
	}
	if streamID >= 0xc0 && streamID <= 0xdf {
		return PESStreamIDTypeAudio13818
	}
	if streamID >= 0xe0 && streamID <= 0xef {
		return PESStreamIDTypeVideo13818
	}
	return PESStreamIDTypeOther
}

// hasExtendedHeader reports whether a stream_id's category carries the
// extended (flags + optional fields) PES header rather than stopping
// after pes_packet_length.
func hasExtendedHeader(streamID uint8) bool {
	switch PESStreamIDTypeOf(streamID) {
	case PESStreamIDTypeProgramStreamMap,
		PESStreamIDTypePaddingStream,
		PESStreamIDTypePrivateStream2,
		PESStreamIDTypeECMStream,
		PESStreamIDTypeEMMStream,
		PESStreamIDTypeDSMCCStream,
		PESStreamIDTypeH222TypeEStream,
		PESStreamIDTypeProgramStreamDirectory:
		return false
	default:
		return true
	}
}

// DSMTrickMode is the 1-byte dsm_trick_mode_control field, with the
// case-dependent sub-fields filled in per trick_mode_control.
type DSMTrickMode struct {
	Control uint8 // 3 bits.

	// fast_forward / fast_reverse.
	FieldID             uint8
	IntraSliceRefresh   bool
	FrequencyTruncation uint8

	// slow_motion / slow_reverse.
	RepeatControl uint8

	// freeze_frame.
	FreezeFieldID uint8

	Reserved uint8
}

// DSM trick_mode_control values.
const (
	DSMTrickModeFastForward = 0
	DSMTrickModeSlowMotion  = 1
	DSMTrickModeFreezeFrame = 2
	DSMTrickModeFastReverse = 3
	DSMTrickModeSlowReverse = 4
)

// PESExtension carries the five optional sub-blocks of the PES
// extension, each present iff the corresponding field is non-nil/non-zero.
type PESExtension struct {
	PrivateData []byte // Exactly 16 bytes when present.

	PackHeader []byte

	HasProgramPacketSequenceCounter bool
	ProgramPacketSequenceCounter    uint8 // 7 bits.
	MPEG1MPEG2Identifier            bool
	OriginalStuffLength             uint8 // 6 bits.

	HasPSTDBuffer   bool
	PSTDBufferScale uint8  // 1 bit.
	PSTDBufferSize  uint16 // 13 bits.

	ExtensionField []byte
}

// PESOptionalHeader is the extended PES header: flags plus the optional
// fields they gate, padded with stuffing to HeaderDataLength on the wire.
type PESOptionalHeader struct {
	ScramblingControl      uint8 // 2 bits.
	Priority               bool
	DataAlignmentIndicator bool
	Copyright              bool
	OriginalOrCopy         bool

	HeaderDataLength uint8

	PTS *int64
	DTS *int64

	ESCR *ClockReference

	HasESRate bool
	ESRate    uint32 // 22 bits.

	DSMTrickMode *DSMTrickMode

	HasAdditionalCopyInfo bool
	AdditionalCopyInfo    uint8 // 7 bits.

	HasPreviousPESPacketCRC bool
	PreviousPESPacketCRC    uint16

	Extension *PESExtension
}

// PESPacket is a parsed PES header. The elementary-stream payload that
// follows it is carried on the enclosing Mpeg2TsPacket's DataBytes, not
// here.
type PESPacket struct {
	StreamID         uint8
	PacketLength     uint16
	OptionalHeader   *PESOptionalHeader
}

// StreamIDType is a convenience accessor for StreamID's derived category.
func (p *PESPacket) StreamIDType() PESStreamIDType {
	return PESStreamIDTypeOf(p.StreamID)
}

// parsePESPacket parses a PES packet starting at the 00 00 01 prefix
// and returns it along with the number of bytes consumed from payload.
func parsePESPacket(payload []byte) (*PESPacket, int, error) {
	if len(payload) < 6 {
		return nil, 0, fmt.Errorf("mpegts: PES payload needs at least 6 bytes, got %d", len(payload))
	}
	if payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return nil, 0, fmt.Errorf("mpegts: PES packet missing 00 00 01 start code")
	}

	p := &PESPacket{
		StreamID:     payload[3],
		PacketLength: uint16(payload[4])<<8 | uint16(payload[5]),
	}

	consumed := 6
	if hasExtendedHeader(p.StreamID) {
		h, n, err := parsePESOptionalHeader(payload[6:])
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing PES optional header: %w", err)
		}
		p.OptionalHeader = h
		consumed += n
	}

	return p, consumed, nil
}

func parsePESOptionalHeader(buf []byte) (*PESOptionalHeader, int, error) {
	if len(buf) < 3 {
		return nil, 0, fmt.Errorf("mpegts: PES optional header needs at least 3 bytes, got %d", len(buf))
	}

	h := &PESOptionalHeader{}
	r := bitio.NewCountReader(bytes.NewReader(buf))

	marker := r.TryReadBits(2)
	if marker != 0x2 {
		return nil, 0, fmt.Errorf("mpegts: PES optional header missing '10' marker bits, got %#x", marker)
	}
	h.ScramblingControl = uint8(r.TryReadBits(2))
	h.Priority = r.TryReadBool()
	h.DataAlignmentIndicator = r.TryReadBool()
	h.Copyright = r.TryReadBool()
	h.OriginalOrCopy = r.TryReadBool()

	ptsDTSIndicator := uint8(r.TryReadBits(2))
	escrFlag := r.TryReadBool()
	esRateFlag := r.TryReadBool()
	dsmTrickModeFlag := r.TryReadBool()
	additionalCopyInfoFlag := r.TryReadBool()
	crcFlag := r.TryReadBool()
	extensionFlag := r.TryReadBool()

	h.HeaderDataLength = r.TryReadByte()
	if err := r.TryError; err != nil {
		return nil, 0, err
	}

	fieldsStart := r.BitsCount / 8
	fieldsEnd := fieldsStart + int64(h.HeaderDataLength)
	if fieldsEnd > int64(len(buf)) {
		return nil, 0, fmt.Errorf("mpegts: PES header_data_length %d overruns buffer", h.HeaderDataLength)
	}

	switch ptsDTSIndicator {
	case 0x2: // PTS only.
		pts, err := parsePTSOrDTS(r, 0x2)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing PTS: %w", err)
		}
		h.PTS = &pts
	case 0x3: // PTS and DTS.
		pts, err := parsePTSOrDTS(r, 0x3)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing PTS: %w", err)
		}
		h.PTS = &pts
		dts, err := parsePTSOrDTS(r, 0x1)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing DTS: %w", err)
		}
		h.DTS = &dts
	case 0x0:
		// No timestamps.
	default:
		return nil, 0, fmt.Errorf("mpegts: invalid PTS_DTS_flags value %#x", ptsDTSIndicator)
	}

	if escrFlag {
		escr, err := parseESCR(r)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing ESCR: %w", err)
		}
		h.ESCR = escr
	}

	if esRateFlag {
		h.HasESRate = true
		_ = r.TryReadBool() // Marker.
		h.ESRate = uint32(r.TryReadBits(22))
		_ = r.TryReadBool() // Marker.
	}

	if dsmTrickModeFlag {
		h.DSMTrickMode = parseDSMTrickMode(r)
	}

	if additionalCopyInfoFlag {
		h.HasAdditionalCopyInfo = true
		_ = r.TryReadBool() // Marker.
		h.AdditionalCopyInfo = uint8(r.TryReadBits(7))
	}

	if crcFlag {
		h.HasPreviousPESPacketCRC = true
		h.PreviousPESPacketCRC = uint16(r.TryReadBits(16))
	}

	if err := r.TryError; err != nil {
		return nil, 0, err
	}

	if extensionFlag {
		remaining := buf[fieldsStart:fieldsEnd]
		consumedSoFar := r.BitsCount/8 - fieldsStart
		ext, err := parsePESExtension(remaining[consumedSoFar:])
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing PES extension: %w", err)
		}
		h.Extension = ext
	}

	return h, 3 + int(h.HeaderDataLength), nil
}

func parsePTSOrDTS(r *bitio.CountReader, wantPrefix uint8) (int64, error) {
	prefix := uint8(r.TryReadBits(4))
	if prefix != wantPrefix {
		return 0, fmt.Errorf("mpegts: expected PTS/DTS prefix %#x, got %#x", wantPrefix, prefix)
	}
	high := int64(r.TryReadBits(3))
	if !r.TryReadBool() {
		return 0, fmt.Errorf("mpegts: PTS/DTS marker bit 1 is zero")
	}
	mid := int64(r.TryReadBits(15))
	if !r.TryReadBool() {
		return 0, fmt.Errorf("mpegts: PTS/DTS marker bit 2 is zero")
	}
	low := int64(r.TryReadBits(15))
	if !r.TryReadBool() {
		return 0, fmt.Errorf("mpegts: PTS/DTS marker bit 3 is zero")
	}
	if err := r.TryError; err != nil {
		return 0, err
	}
	return high<<30 | mid<<15 | low, nil
}

// parseESCR decodes the 6-byte ESCR field with disjoint base fragments
// (reserved(2) base[32:30](3) marker base[29:15](15) marker base[14:0](15)
// marker extension(9) marker), correcting the reference implementation's
// overlapping-bit-range bug rather than reproducing it.
func parseESCR(r *bitio.CountReader) (*ClockReference, error) {
	_ = r.TryReadBits(2) // Reserved.
	high := int64(r.TryReadBits(3))
	if !r.TryReadBool() {
		return nil, fmt.Errorf("mpegts: ESCR marker bit 1 is zero")
	}
	mid := int64(r.TryReadBits(15))
	if !r.TryReadBool() {
		return nil, fmt.Errorf("mpegts: ESCR marker bit 2 is zero")
	}
	low := int64(r.TryReadBits(15))
	if !r.TryReadBool() {
		return nil, fmt.Errorf("mpegts: ESCR marker bit 3 is zero")
	}
	ext := int64(r.TryReadBits(9))
	if !r.TryReadBool() {
		return nil, fmt.Errorf("mpegts: ESCR marker bit 4 is zero")
	}
	if err := r.TryError; err != nil {
		return nil, err
	}
	return newClockReference(high<<30|mid<<15|low, ext), nil
}

func parseDSMTrickMode(r *bitio.CountReader) *DSMTrickMode {
	d := &DSMTrickMode{Control: uint8(r.TryReadBits(3))}
	switch d.Control {
	case DSMTrickModeFastForward, DSMTrickModeFastReverse:
		d.FieldID = uint8(r.TryReadBits(2))
		d.IntraSliceRefresh = r.TryReadBool()
		d.FrequencyTruncation = uint8(r.TryReadBits(2))
	case DSMTrickModeSlowMotion, DSMTrickModeSlowReverse:
		d.RepeatControl = uint8(r.TryReadBits(5))
	case DSMTrickModeFreezeFrame:
		d.FreezeFieldID = uint8(r.TryReadBits(2))
		d.Reserved = uint8(r.TryReadBits(3))
	default:
		d.Reserved = uint8(r.TryReadBits(5))
	}
	return d
}

func parsePESExtension(buf []byte) (*PESExtension, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("mpegts: PES extension needs at least 1 byte")
	}
	e := &PESExtension{}
	r := bitio.NewCountReader(bytes.NewReader(buf))

	privateDataFlag := r.TryReadBool()
	packHeaderFlag := r.TryReadBool()
	sequenceCounterFlag := r.TryReadBool()
	pstdBufferFlag := r.TryReadBool()
	_ = r.TryReadBits(3) // Reserved.
	extensionFlag2 := r.TryReadBool()
	if err := r.TryError; err != nil {
		return nil, err
	}

	if privateDataFlag {
		e.PrivateData = make([]byte, 16)
		r.TryRead(e.PrivateData)
	}
	if packHeaderFlag {
		l := int(r.TryReadByte())
		if l > 0 {
			e.PackHeader = make([]byte, l)
			r.TryRead(e.PackHeader)
		}
	}
	if sequenceCounterFlag {
		e.HasProgramPacketSequenceCounter = true
		_ = r.TryReadBool() // Marker.
		e.ProgramPacketSequenceCounter = uint8(r.TryReadBits(7))
		_ = r.TryReadBool() // Marker.
		e.MPEG1MPEG2Identifier = r.TryReadBool()
		e.OriginalStuffLength = uint8(r.TryReadBits(6))
	}
	if pstdBufferFlag {
		e.HasPSTDBuffer = true
		marker := r.TryReadBits(2)
		if marker != 0x1 {
			return nil, fmt.Errorf("mpegts: P-STD buffer missing '01' prefix, got %#x", marker)
		}
		e.PSTDBufferScale = uint8(r.TryReadBits(1))
		e.PSTDBufferSize = uint16(r.TryReadBits(13))
	}
	if err := r.TryError; err != nil {
		return nil, err
	}
	if extensionFlag2 {
		if !r.TryReadBool() {
			return nil, fmt.Errorf("mpegts: PES extension field missing marker bit")
		}
		l := int(r.TryReadBits(7))
		if l > 0 {
			e.ExtensionField = make([]byte, l)
			r.TryRead(e.ExtensionField)
		}
	}
	return e, r.TryError
}

// writePESPacket serializes p into payload, returning the number of
// bytes written. Callers must ensure payload is at least as large as
// the serialized result.
func writePESPacket(payload []byte, p *PESPacket) (int, error) {
	if len(payload) < 6 {
		return 0, fmt.Errorf("mpegts: PES payload buffer too small")
	}
	payload[0], payload[1], payload[2] = 0x00, 0x00, 0x01
	payload[3] = p.StreamID
	payload[4] = byte(p.PacketLength >> 8)
	payload[5] = byte(p.PacketLength)

	n := 6
	if p.OptionalHeader != nil {
		w, err := serializePESOptionalHeader(p.OptionalHeader)
		if err != nil {
			return 0, err
		}
		if len(payload[6:]) < len(w) {
			return 0, fmt.Errorf("mpegts: PES payload buffer too small for optional header")
		}
		copy(payload[6:], w)
		n += len(w)
	}
	return n, nil
}

func serializePESOptionalHeader(h *PESOptionalHeader) ([]byte, error) {
	content := &bytes.Buffer{}
	w := bitio.NewWriter(content)

	if h.PTS != nil && h.DTS != nil {
		writePTSOrDTS(w, 0x3, *h.PTS)
		writePTSOrDTS(w, 0x1, *h.DTS)
	} else if h.PTS != nil {
		writePTSOrDTS(w, 0x2, *h.PTS)
	}

	if h.ESCR != nil {
		writeESCR(w, h.ESCR)
	}
	if h.HasESRate {
		w.TryWriteBool(true)
		w.TryWriteBits(uint64(h.ESRate), 22)
		w.TryWriteBool(true)
	}
	if h.DSMTrickMode != nil {
		writeDSMTrickMode(w, h.DSMTrickMode)
	}
	if h.HasAdditionalCopyInfo {
		w.TryWriteBool(true)
		w.TryWriteBits(uint64(h.AdditionalCopyInfo), 7)
	}
	if h.HasPreviousPESPacketCRC {
		w.TryWriteBits(uint64(h.PreviousPESPacketCRC), 16)
	}
	var extBytes []byte
	if h.Extension != nil {
		var err error
		extBytes, err = serializePESExtension(h.Extension)
		if err != nil {
			return nil, err
		}
		w.TryWrite(extBytes)
	}

	if _, err := w.Align(); err != nil {
		return nil, fmt.Errorf("mpegts: aligning PES optional header: %w", err)
	}
	if err := w.TryError; err != nil {
		return nil, err
	}

	headerLen := h.HeaderDataLength
	if headerLen == 0 {
		headerLen = uint8(content.Len())
	}
	stuffed := int(headerLen) - content.Len()
	if stuffed < 0 {
		return nil, fmt.Errorf("mpegts: PES optional header content (%d bytes) exceeds header_data_length %d", content.Len(), headerLen)
	}

	out := &bytes.Buffer{}
	flagsW := bitio.NewWriter(out)
	flagsW.TryWriteBits(0x2, 2)
	flagsW.TryWriteBits(uint64(h.ScramblingControl), 2)
	flagsW.TryWriteBool(h.Priority)
	flagsW.TryWriteBool(h.DataAlignmentIndicator)
	flagsW.TryWriteBool(h.Copyright)
	flagsW.TryWriteBool(h.OriginalOrCopy)

	ptsDTSIndicator := uint64(0)
	if h.PTS != nil && h.DTS != nil {
		ptsDTSIndicator = 0x3
	} else if h.PTS != nil {
		ptsDTSIndicator = 0x2
	}
	flagsW.TryWriteBits(ptsDTSIndicator, 2)
	flagsW.TryWriteBool(h.ESCR != nil)
	flagsW.TryWriteBool(h.HasESRate)
	flagsW.TryWriteBool(h.DSMTrickMode != nil)
	flagsW.TryWriteBool(h.HasAdditionalCopyInfo)
	flagsW.TryWriteBool(h.HasPreviousPESPacketCRC)
	flagsW.TryWriteBool(h.Extension != nil)
	flagsW.TryWriteByte(headerLen)
	if _, err := flagsW.Align(); err != nil {
		return nil, err
	}
	if err := flagsW.TryError; err != nil {
		return nil, err
	}

	out.Write(content.Bytes())
	for i := 0; i < stuffed; i++ {
		out.WriteByte(0xff)
	}
	return out.Bytes(), nil
}

func writePTSOrDTS(w *bitio.Writer, prefix uint8, v int64) {
	w.TryWriteBits(uint64(prefix), 4)
	w.TryWriteBits(uint64(v>>30)&0x7, 3)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(v>>15)&0x7fff, 15)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(v)&0x7fff, 15)
	w.TryWriteBool(true)
}

func writeESCR(w *bitio.Writer, cr *ClockReference) {
	w.TryWriteBits(0x3, 2)
	w.TryWriteBits(uint64(cr.Base>>30)&0x7, 3)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(cr.Base>>15)&0x7fff, 15)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(cr.Base)&0x7fff, 15)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(cr.Extension), 9)
	w.TryWriteBool(true)
}

func writeDSMTrickMode(w *bitio.Writer, d *DSMTrickMode) {
	w.TryWriteBits(uint64(d.Control), 3)
	switch d.Control {
	case DSMTrickModeFastForward, DSMTrickModeFastReverse:
		w.TryWriteBits(uint64(d.FieldID), 2)
		w.TryWriteBool(d.IntraSliceRefresh)
		w.TryWriteBits(uint64(d.FrequencyTruncation), 2)
	case DSMTrickModeSlowMotion, DSMTrickModeSlowReverse:
		w.TryWriteBits(uint64(d.RepeatControl), 5)
	case DSMTrickModeFreezeFrame:
		w.TryWriteBits(uint64(d.FreezeFieldID), 2)
		w.TryWriteBits(uint64(d.Reserved), 3)
	default:
		w.TryWriteBits(uint64(d.Reserved), 5)
	}
}

func serializePESExtension(e *PESExtension) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)

	w.TryWriteBool(len(e.PrivateData) > 0)
	w.TryWriteBool(e.PackHeader != nil)
	w.TryWriteBool(e.HasProgramPacketSequenceCounter)
	w.TryWriteBool(e.HasPSTDBuffer)
	w.TryWriteBits(0x7, 3)
	w.TryWriteBool(len(e.ExtensionField) > 0)

	if len(e.PrivateData) > 0 {
		if len(e.PrivateData) != 16 {
			return nil, fmt.Errorf("mpegts: PES extension private data must be exactly 16 bytes, got %d", len(e.PrivateData))
		}
		w.TryWrite(e.PrivateData)
	}
	if e.PackHeader != nil {
		w.TryWriteByte(uint8(len(e.PackHeader)))
		w.TryWrite(e.PackHeader)
	}
	if e.HasProgramPacketSequenceCounter {
		w.TryWriteBool(true)
		w.TryWriteBits(uint64(e.ProgramPacketSequenceCounter), 7)
		w.TryWriteBool(true)
		w.TryWriteBool(e.MPEG1MPEG2Identifier)
		w.TryWriteBits(uint64(e.OriginalStuffLength), 6)
	}
	if e.HasPSTDBuffer {
		w.TryWriteBits(0x1, 2)
		w.TryWriteBits(uint64(e.PSTDBufferScale), 1)
		w.TryWriteBits(uint64(e.PSTDBufferSize), 13)
	}
	if len(e.ExtensionField) > 0 {
		w.TryWriteBool(true)
		w.TryWriteBits(uint64(len(e.ExtensionField)), 7)
		w.TryWrite(e.ExtensionField)
	}

	if _, err := w.Align(); err != nil {
		return nil, fmt.Errorf("mpegts: aligning PES extension: %w", err)
	}
	return buf.Bytes(), w.TryError
}
