package mpegts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// MpegTsPacketSize is the fixed size, in bytes, of every TS packet.
const MpegTsPacketSize = 188

// syncByte starts every TS packet.
const syncByte = 0x47

// Transport scrambling controls.
const (
	ScramblingControlNotScrambled         = 0
	ScramblingControlReservedForFutureUse = 1
	ScramblingControlScrambledWithEvenKey = 2
	ScramblingControlScrambledWithOddKey  = 3
)

// ErrPacketMustStartWithSyncByte is returned when the first byte of a
// packet isn't the 0x47 sync byte.
var ErrPacketMustStartWithSyncByte = errors.New("mpegts: packet must start with a sync byte")

// ErrPacketTooShort is returned when fewer than MpegTsPacketSize bytes
// are available to parse.
var ErrPacketTooShort = errors.New("mpegts: packet shorter than 188 bytes")

// Header is the mandatory 4-byte TS packet header.
type Header struct {
	TransportErrorIndicator    bool
	PayloadUnitStartIndicator  bool
	TransportPriority          bool
	PID                        uint16 // 13 bits.
	TransportScramblingControl uint8  // 2 bits.
	HasAdaptationField         bool
	HasPayload                 bool
	ContinuityCounter          uint8 // 4 bits.
}

// AdaptationField carries optional stream-timing and stuffing data
// ahead of (or instead of) a packet's payload.
type AdaptationField struct {
	Length int

	DiscontinuityIndicator            bool
	RandomAccessIndicator             bool
	ElementaryStreamPriorityIndicator bool
	SplicingPointFlag                 bool

	PCR  *ClockReference
	OPCR *ClockReference

	// SpliceCountdown is only meaningful when SplicingPointFlag is set.
	SpliceCountdown int

	TransportPrivateData []byte

	Extension *AdaptationFieldExtension
}

// AdaptationFieldExtension is the adaptation field's optional nested
// extension block.
type AdaptationFieldExtension struct {
	Length int

	LegalTimeWindowIsValid bool
	LegalTimeWindowOffset  uint16 // 15 bits, only when ltw flag set.
	HasLegalTimeWindow     bool

	PiecewiseRate   uint32 // 22 bits.
	HasPiecewiseRate bool

	SpliceType  uint8 // 4 bits.
	DTSNextAU   *ClockReference
	HasSplice   bool
}

// Mpeg2TsPacket is one fully-decoded 188-byte TS packet.
type Mpeg2TsPacket struct {
	Header          Header
	AdaptationField *AdaptationField
	PES             *PESPacket
	PSI             *PSIPacket
	DataBytes       []byte
}

// ParsePacket is the exported counterpart of parsePacket, for callers
// that need to parse a standalone packet outside of a Framer-driven
// stream.
func ParsePacket(buf []byte) (*Mpeg2TsPacket, error) {
	return parsePacket(buf)
}

// SerializePacket is the exported counterpart of serializePacket.
func SerializePacket(p *Mpeg2TsPacket) ([]byte, error) {
	return serializePacket(p)
}

// parsePacket parses exactly one 188-byte TS packet. Any structural
// failure is returned to the caller, which (per the framing policy) is
// expected to fall back to emitting the packet as Raw rather than abort
// the whole stream.
func parsePacket(buf []byte) (*Mpeg2TsPacket, error) {
	if len(buf) < MpegTsPacketSize {
		return nil, ErrPacketTooShort
	}
	buf = buf[:MpegTsPacketSize]
	if buf[0] != syncByte {
		return nil, ErrPacketMustStartWithSyncByte
	}

	p := &Mpeg2TsPacket{}

	header, err := parseHeader(buf[1:4])
	if err != nil {
		return nil, fmt.Errorf("mpegts: parsing header failed: %w", err)
	}
	p.Header = header

	offset := 4
	if header.HasAdaptationField {
		af, n, err := parseAdaptationField(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("mpegts: parsing adaptation field failed: %w", err)
		}
		if offset+n > MpegTsPacketSize {
			return nil, fmt.Errorf("mpegts: adaptation field overruns packet")
		}
		p.AdaptationField = af
		offset += n
	}

	if header.HasPayload {
		payload := buf[offset:]

		if header.PayloadUnitStartIndicator && len(payload) >= 3 {
			if payload[0] == 0x00 && payload[1] == 0x00 && payload[2] == 0x01 {
				pes, consumed, err := parsePESPacket(payload)
				if err != nil {
					return nil, fmt.Errorf("mpegts: parsing PES packet failed: %w", err)
				}
				p.PES = pes
				if consumed < len(payload) {
					p.DataBytes = append([]byte(nil), payload[consumed:]...)
				}
			} else {
				psi, consumed, err := parsePSIPacket(payload)
				if err != nil {
					return nil, fmt.Errorf("mpegts: parsing PSI packet failed: %w", err)
				}
				p.PSI = psi
				if consumed < len(payload) {
					p.DataBytes = append([]byte(nil), payload[consumed:]...)
				}
			}
		} else {
			p.DataBytes = append([]byte(nil), payload...)
		}
	}

	return p, nil
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < 3 {
		return Header{}, fmt.Errorf("mpegts: header needs 3 bytes, got %d", len(buf))
	}
	return Header{
		TransportErrorIndicator:    buf[0]&0x80 > 0,
		PayloadUnitStartIndicator:  buf[0]&0x40 > 0,
		TransportPriority:          buf[0]&0x20 > 0,
		PID:                        uint16(buf[0]&0x1f)<<8 | uint16(buf[1]),
		TransportScramblingControl: buf[2] >> 6 & 0x3,
		HasAdaptationField:         buf[2]&0x20 > 0,
		HasPayload:                 buf[2]&0x10 > 0,
		ContinuityCounter:          buf[2] & 0xf,
	}, nil
}

func writeHeader(buf []byte, h Header) error {
	if len(buf) < 4 {
		return fmt.Errorf("mpegts: header write needs 4 bytes, got %d", len(buf))
	}
	buf[0] = syncByte

	var b1 byte
	if h.TransportErrorIndicator {
		b1 |= 0x80
	}
	if h.PayloadUnitStartIndicator {
		b1 |= 0x40
	}
	if h.TransportPriority {
		b1 |= 0x20
	}
	b1 |= byte(h.PID>>8) & 0x1f
	buf[1] = b1
	buf[2] = byte(h.PID)

	var b3 byte
	b3 |= (h.TransportScramblingControl & 0x3) << 6
	if h.HasAdaptationField {
		b3 |= 0x20
	}
	if h.HasPayload {
		b3 |= 0x10
	}
	b3 |= h.ContinuityCounter & 0xf
	buf[3] = b3

	return nil
}

// parseAdaptationField parses the adaptation field starting right after
// the header and returns the number of bytes consumed (1 + Length).
func parseAdaptationField(buf []byte) (*AdaptationField, int, error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("mpegts: adaptation field needs at least 1 byte")
	}
	a := &AdaptationField{Length: int(buf[0])}
	if a.Length == 0 {
		return a, 1, nil
	}
	if len(buf) < 1+a.Length {
		return nil, 0, fmt.Errorf("mpegts: adaptation field truncated")
	}

	r := bitio.NewCountReader(bytes.NewReader(buf[1 : 1+a.Length]))

	a.DiscontinuityIndicator = r.TryReadBool()
	a.RandomAccessIndicator = r.TryReadBool()
	a.ElementaryStreamPriorityIndicator = r.TryReadBool()
	hasPCR := r.TryReadBool()
	hasOPCR := r.TryReadBool()
	a.SplicingPointFlag = r.TryReadBool()
	hasPrivateData := r.TryReadBool()
	hasExtension := r.TryReadBool()

	if hasPCR {
		pcr, err := parsePCR(r)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing PCR failed: %w", err)
		}
		a.PCR = pcr
	}
	if hasOPCR {
		opcr, err := parsePCR(r)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing OPCR failed: %w", err)
		}
		a.OPCR = opcr
	}
	if a.SplicingPointFlag {
		a.SpliceCountdown = int(int8(r.TryReadByte()))
	}
	if hasPrivateData {
		l := int(r.TryReadByte())
		if l > 0 {
			a.TransportPrivateData = make([]byte, l)
			r.TryRead(a.TransportPrivateData)
		}
	}
	if hasExtension {
		ext, err := parseAdaptationFieldExtension(r)
		if err != nil {
			return nil, 0, fmt.Errorf("mpegts: parsing adaptation field extension failed: %w", err)
		}
		a.Extension = ext
	}

	if err := r.TryError; err != nil {
		return nil, 0, fmt.Errorf("mpegts: reading adaptation field: %w", err)
	}

	return a, 1 + a.Length, nil
}

// parsePCR parses the 6-byte PCR/OPCR layout: 33-bit base, 6 reserved
// marker bits (0x3f), 9-bit extension.
func parsePCR(r *bitio.CountReader) (*ClockReference, error) {
	base := int64(r.TryReadBits(33))
	_ = r.TryReadBits(6) // Reserved, 0x3f.
	ext := int64(r.TryReadBits(9))
	if err := r.TryError; err != nil {
		return nil, err
	}
	return newClockReference(base, ext), nil
}

func writePCR(w *bitio.Writer, cr *ClockReference) {
	w.TryWriteBits(uint64(cr.Base), 33)
	w.TryWriteBits(0x3f, 6)
	w.TryWriteBits(uint64(cr.Extension), 9)
}

func parseAdaptationFieldExtension(r *bitio.CountReader) (*AdaptationFieldExtension, error) {
	e := &AdaptationFieldExtension{Length: int(r.TryReadByte())}
	if e.Length == 0 {
		return e, r.TryError
	}

	e.HasLegalTimeWindow = r.TryReadBool()
	e.HasPiecewiseRate = r.TryReadBool()
	e.HasSplice = r.TryReadBool()
	_ = r.TryReadBits(5) // Reserved.

	if e.HasLegalTimeWindow {
		e.LegalTimeWindowIsValid = r.TryReadBool()
		e.LegalTimeWindowOffset = uint16(r.TryReadBits(15))
	}
	if e.HasPiecewiseRate {
		_ = r.TryReadBits(2) // Reserved.
		e.PiecewiseRate = uint32(r.TryReadBits(22))
	}
	if e.HasSplice {
		e.SpliceType = uint8(r.TryReadBits(4))
		base := int64(r.TryReadBits(3))
		_ = r.TryReadBool() // Marker.
		base = base<<15 | int64(r.TryReadBits(15))
		_ = r.TryReadBool() // Marker.
		base = base<<15 | int64(r.TryReadBits(15))
		_ = r.TryReadBool() // Marker.
		e.DTSNextAU = newClockReference(base, 0)
	}

	return e, r.TryError
}

func writeAdaptationField(w *bitio.Writer, a *AdaptationField) error {
	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)

	bw.TryWriteBool(a.DiscontinuityIndicator)
	bw.TryWriteBool(a.RandomAccessIndicator)
	bw.TryWriteBool(a.ElementaryStreamPriorityIndicator)
	bw.TryWriteBool(a.PCR != nil)
	bw.TryWriteBool(a.OPCR != nil)
	bw.TryWriteBool(a.SplicingPointFlag)
	bw.TryWriteBool(len(a.TransportPrivateData) > 0)
	bw.TryWriteBool(a.Extension != nil)

	if a.PCR != nil {
		writePCR(bw, a.PCR)
	}
	if a.OPCR != nil {
		writePCR(bw, a.OPCR)
	}
	if a.SplicingPointFlag {
		bw.TryWriteByte(byte(int8(a.SpliceCountdown)))
	}
	if len(a.TransportPrivateData) > 0 {
		bw.TryWriteByte(uint8(len(a.TransportPrivateData)))
		bw.TryWrite(a.TransportPrivateData)
	}
	if a.Extension != nil {
		if err := writeAdaptationFieldExtension(bw, a.Extension); err != nil {
			return err
		}
	}

	if _, err := bw.Align(); err != nil {
		return fmt.Errorf("mpegts: aligning adaptation field: %w", err)
	}
	if err := bw.TryError; err != nil {
		return err
	}

	stuffed := a.Length - buf.Len()
	if stuffed < 0 {
		return fmt.Errorf("mpegts: adaptation field content (%d bytes) exceeds declared length %d", buf.Len(), a.Length)
	}

	w.TryWriteByte(uint8(a.Length))
	w.TryWrite(buf.Bytes())
	for i := 0; i < stuffed; i++ {
		w.TryWriteByte(0xff)
	}
	return w.TryError
}

// calcAdaptationFieldContentLength returns the byte length the adaptation
// field's optional sub-fields occupy, not counting the length byte
// itself or stuffing.
func calcAdaptationFieldContentLength(a *AdaptationField) int {
	n := 1 // Flags byte.
	if a.PCR != nil {
		n += 6
	}
	if a.OPCR != nil {
		n += 6
	}
	if a.SplicingPointFlag {
		n++
	}
	if len(a.TransportPrivateData) > 0 {
		n += 1 + len(a.TransportPrivateData)
	}
	if a.Extension != nil {
		n += 1 + a.Extension.Length
	}
	return n
}

func writeAdaptationFieldExtension(w *bitio.Writer, e *AdaptationFieldExtension) error {
	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)

	bw.TryWriteBool(e.HasLegalTimeWindow)
	bw.TryWriteBool(e.HasPiecewiseRate)
	bw.TryWriteBool(e.HasSplice)
	bw.TryWriteBits(0x1f, 5)

	if e.HasLegalTimeWindow {
		bw.TryWriteBool(e.LegalTimeWindowIsValid)
		bw.TryWriteBits(uint64(e.LegalTimeWindowOffset), 15)
	}
	if e.HasPiecewiseRate {
		bw.TryWriteBits(0x3, 2)
		bw.TryWriteBits(uint64(e.PiecewiseRate), 22)
	}
	if e.HasSplice {
		bw.TryWriteBits(uint64(e.SpliceType), 4)
		base := uint64(e.DTSNextAU.Base)
		bw.TryWriteBits(base>>30, 3)
		bw.TryWriteBool(true)
		bw.TryWriteBits(base>>15, 15)
		bw.TryWriteBool(true)
		bw.TryWriteBits(base, 15)
		bw.TryWriteBool(true)
	}

	if _, err := bw.Align(); err != nil {
		return fmt.Errorf("mpegts: aligning adaptation field extension: %w", err)
	}
	if err := bw.TryError; err != nil {
		return err
	}

	stuffed := e.Length - buf.Len()
	if stuffed < 0 {
		return fmt.Errorf("mpegts: adaptation field extension content (%d bytes) exceeds declared length %d", buf.Len(), e.Length)
	}

	w.TryWriteByte(uint8(e.Length))
	w.TryWrite(buf.Bytes())
	for i := 0; i < stuffed; i++ {
		w.TryWriteByte(0xff)
	}
	return w.TryError
}

func calcAdaptationFieldExtensionContentLength(e *AdaptationFieldExtension) int {
	n := 1 // Flags byte.
	if e.HasLegalTimeWindow {
		n += 2
	}
	if e.HasPiecewiseRate {
		n += 3
	}
	if e.HasSplice {
		n += 5
	}
	return n
}

// serializePacket writes p back to exactly MpegTsPacketSize bytes.
func serializePacket(p *Mpeg2TsPacket) ([]byte, error) {
	buf := make([]byte, MpegTsPacketSize)
	if err := writeHeader(buf, p.Header); err != nil {
		return nil, err
	}

	offset := 4
	if p.Header.HasAdaptationField {
		if p.AdaptationField == nil {
			return nil, fmt.Errorf("mpegts: header declares an adaptation field but none is set")
		}
		if p.AdaptationField.Length == 0 {
			p.AdaptationField.Length = calcAdaptationFieldContentLength(p.AdaptationField)
			if p.AdaptationField.Extension != nil && p.AdaptationField.Extension.Length == 0 {
				p.AdaptationField.Extension.Length = calcAdaptationFieldExtensionContentLength(p.AdaptationField.Extension)
			}
		}

		afBuf := &bytes.Buffer{}
		w := bitio.NewWriter(afBuf)
		if err := writeAdaptationField(w, p.AdaptationField); err != nil {
			return nil, fmt.Errorf("mpegts: writing adaptation field failed: %w", err)
		}
		if copy(buf[offset:], afBuf.Bytes()) < afBuf.Len() {
			return nil, fmt.Errorf("mpegts: adaptation field overruns packet")
		}
		offset += afBuf.Len()
	}

	if p.Header.HasPayload {
		payload := buf[offset:]
		var n int
		var err error
		switch {
		case p.PES != nil:
			n, err = writePESPacket(payload, p.PES)
		case p.PSI != nil:
			n, err = writePSIPacket(payload, p.PSI)
		default:
			n = copy(payload, p.DataBytes)
		}
		if err != nil {
			return nil, err
		}
		if (p.PES != nil || p.PSI != nil) && len(p.DataBytes) > 0 {
			n += copy(payload[n:], p.DataBytes)
		}
		offset += n
	}

	if offset > MpegTsPacketSize {
		return nil, fmt.Errorf("mpegts: serialized packet overruns 188 bytes (wrote %d)", offset)
	}
	return buf, nil
}
