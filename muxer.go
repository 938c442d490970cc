package mpegts

import (
	"errors"
	"fmt"
	"io"
)

// Layout constants for a freshly constructed Muxer, mirroring the
// teacher's single-program defaults.
const (
	MuxerStartPID           uint16 = 0x0100
	MuxerPMTStartPID        uint16 = 0x1000
	MuxerProgramNumberStart uint16 = 1
)

var (
	ErrMuxerPIDAlreadyExists = errors.New("mpegts: PID already exists")
	ErrMuxerPIDNotFound      = errors.New("mpegts: PID not found")
)

// MuxerElementaryStream is one stream the Muxer advertises in its PMT.
type MuxerElementaryStream struct {
	PID        uint16
	StreamType uint8
}

// MuxerOption configures a Muxer at construction time.
type MuxerOption func(*Muxer)

// WithPMTPID overrides the PMT's PID, default MuxerPMTStartPID.
func WithPMTPID(pid uint16) MuxerOption {
	return func(m *Muxer) { m.pmtPID = pid }
}

// WithProgramNumber overrides the single program's number, default
// MuxerProgramNumberStart.
func WithProgramNumber(n uint16) MuxerOption {
	return func(m *Muxer) { m.programNumber = n }
}

// Muxer builds a single program's PAT/PMT pair, keeping a per-table
// version_number the way the teacher's muxer.go tracks a per-table
// psiVersionCounter across regenerated sections: every GeneratePAT and
// GeneratePMT call bumps its table's version, and
// AddElementaryStream/RemoveElementaryStream bump the PMT's version too.
//
// Multi-program streams aren't supported, matching the teacher's own
// single-program muxer.
type Muxer struct {
	programNumber uint16
	pmtPID        uint16
	pcrPID        uint16
	nextPID       uint16

	streams []MuxerElementaryStream

	patVersion uint8
	pmtVersion uint8
}

// NewMuxer constructs a Muxer for one program.
func NewMuxer(opts ...MuxerOption) *Muxer {
	m := &Muxer{
		programNumber: MuxerProgramNumberStart,
		pmtPID:        MuxerPMTStartPID,
		nextPID:       MuxerStartPID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddElementaryStream registers a stream, assigning it the next free PID
// if es.PID is zero, and bumps the PMT version. If isPCRPID is set, the
// stream's PID also becomes the program's PCR_PID.
func (m *Muxer) AddElementaryStream(es MuxerElementaryStream, isPCRPID bool) (uint16, error) {
	if es.PID != 0 {
		for _, existing := range m.streams {
			if existing.PID == es.PID {
				return 0, fmt.Errorf("mpegts: adding elementary stream: %w", ErrMuxerPIDAlreadyExists)
			}
		}
	} else {
		for taken := true; taken; {
			es.PID = m.nextPID
			m.nextPID++
			taken = false
			for _, existing := range m.streams {
				if existing.PID == es.PID {
					taken = true
					break
				}
			}
		}
	}

	m.streams = append(m.streams, es)
	if isPCRPID || m.pcrPID == 0 {
		m.pcrPID = es.PID
	}
	m.pmtVersion++
	return es.PID, nil
}

// RemoveElementaryStream drops a stream by PID and bumps the PMT version.
func (m *Muxer) RemoveElementaryStream(pid uint16) error {
	for i, es := range m.streams {
		if es.PID == pid {
			m.streams = append(m.streams[:i:i], m.streams[i+1:]...)
			m.pmtVersion++
			return nil
		}
	}
	return fmt.Errorf("mpegts: removing elementary stream: %w", ErrMuxerPIDNotFound)
}

// GeneratePAT builds the program's single-entry PAT packet, bumping and
// embedding the PAT's version_number, with the CRC32 computed over the
// as-serialized section body.
func (m *Muxer) GeneratePAT() (*Mpeg2TsPacket, error) {
	m.patVersion = (m.patVersion + 1) % 32
	pat := &ProgramAssociationSection{
		VersionNumber:        m.patVersion,
		CurrentNextIndicator: true,
		Programs: []ProgramAssociationEntry{
			{ProgramNumber: m.programNumber, PID: m.pmtPID},
		},
	}
	return m.packetizePSI(0, pat, nil)
}

// GeneratePMT builds the program's PMT packet from its current stream
// list, bumping and embedding the PMT's version_number.
func (m *Muxer) GeneratePMT() (*Mpeg2TsPacket, error) {
	if m.pcrPID == 0 {
		return nil, fmt.Errorf("mpegts: generating PMT: no PCR_PID set")
	}
	m.pmtVersion = (m.pmtVersion + 1) % 32
	pmt := &ProgramMapSection{
		ProgramNumber:        m.programNumber,
		VersionNumber:        m.pmtVersion,
		CurrentNextIndicator: true,
		PCRPID:               m.pcrPID,
	}
	for _, es := range m.streams {
		pmt.StreamDescriptions = append(pmt.StreamDescriptions, StreamDescription{
			StreamType:    es.StreamType,
			ElementaryPID: es.PID,
		})
	}
	return m.packetizePSI(m.pmtPID, nil, pmt)
}

// packetizePSI wraps either pat or pmt (exactly one non-nil) into a
// single PSI-carrying Mpeg2TsPacket, computing and embedding its CRC32.
func (m *Muxer) packetizePSI(pid uint16, pat *ProgramAssociationSection, pmt *ProgramMapSection) (*Mpeg2TsPacket, error) {
	section := PSISection{}
	var bodyLen int
	switch {
	case pat != nil:
		section.Kind = PSISectionKindPAT
		section.PAT = pat
		body, err := serializeProgramAssociationSection(pat)
		if err != nil {
			return nil, err
		}
		pat.CRC32 = computeCRC32(body[:len(body)-4])
		bodyLen = len(body)
	case pmt != nil:
		section.Kind = PSISectionKindPMT
		section.PMT = pmt
		body, err := serializeProgramMapSection(pmt)
		if err != nil {
			return nil, err
		}
		pmt.CRC32 = computeCRC32(body[:len(body)-4])
		bodyLen = len(body)
	default:
		return nil, fmt.Errorf("mpegts: packetizing PSI: no section given")
	}

	psi := &PSIPacket{Sections: []PSISection{section}}

	// Fill the rest of the payload (after the 4-byte header, the
	// pointer_field and the 3-byte section header) with 0xff stuffing, so
	// a parser stops at the 0xff table_id terminator.
	stuffingLen := MpegTsPacketSize - 4 - 1 - 3 - bodyLen
	if stuffingLen < 0 {
		return nil, fmt.Errorf("mpegts: packetizing PSI: section of %d bytes does not fit one packet", 3+bodyLen)
	}
	stuffing := make([]byte, stuffingLen)
	for i := range stuffing {
		stuffing[i] = 0xff
	}

	p := &Mpeg2TsPacket{
		Header: Header{
			PID:                       pid,
			PayloadUnitStartIndicator: true,
			HasPayload:                true,
		},
		PSI:       psi,
		DataBytes: stuffing,
	}
	return p, nil
}

// WriteTables serializes a fresh PAT/PMT pair and writes them to w as two
// consecutive 188-byte packets, returning the byte count written.
func (m *Muxer) WriteTables(w io.Writer) (int, error) {
	pat, err := m.GeneratePAT()
	if err != nil {
		return 0, fmt.Errorf("mpegts: generating PAT: %w", err)
	}
	pmt, err := m.GeneratePMT()
	if err != nil {
		return 0, fmt.Errorf("mpegts: generating PMT: %w", err)
	}

	var written int
	for _, p := range []*Mpeg2TsPacket{pat, pmt} {
		buf, err := SerializePacket(p)
		if err != nil {
			return written, err
		}
		n, err := w.Write(buf)
		written += n
		if err != nil {
			return written, fmt.Errorf("mpegts: writing table packet: %w", err)
		}
	}
	return written, nil
}
