package mpegts

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// PSI table_id values that get first-class handling; anything else
// becomes an OtherPSISection.
const (
	tableIDProgramAssociation = 0x00
	tableIDProgramMap         = 0x02
	tableIDTerminator         = 0xff
)

// PSISectionKind tags which variant a PSISection holds.
type PSISectionKind int

const (
	PSISectionKindPAT PSISectionKind = iota
	PSISectionKindPMT
	PSISectionKindOther
)

// Descriptor is an opaque tag/length/data triple; the content of
// individual descriptor tags is not decoded further.
type Descriptor struct {
	Tag    uint8
	Length uint8
	Data   []byte
}

// ProgramAssociationEntry is one program_number/pid pair in a PAT.
// When ProgramNumber is 0, PID names the network PID; otherwise it
// names that program's program_map_pid.
type ProgramAssociationEntry struct {
	ProgramNumber uint16
	PID           uint16 // 13 bits.
}

// ProgramAssociationSection is a parsed PAT (table_id 0x00).
type ProgramAssociationSection struct {
	TransportStreamID    uint16
	VersionNumber        uint8 // 5 bits.
	CurrentNextIndicator bool
	SectionNumber        uint8
	LastSectionNumber    uint8
	Programs             []ProgramAssociationEntry
	CRC32                uint32

	// crcInput is the as-parsed section body excluding the trailing
	// crc_32, kept so VerifyCRC32 can check it without re-serializing.
	crcInput []byte
}

// VerifyCRC32 recomputes the CRC-32/MPEG-2 checksum over the as-parsed
// section body and reports whether it matches the stored CRC32. CRC32
// is otherwise treated as an opaque pass-through value (see crc32.go);
// this is strictly an opt-in check.
func (s *ProgramAssociationSection) VerifyCRC32() bool {
	return computeCRC32(s.crcInput) == s.CRC32
}

// StreamDescription is one elementary stream entry in a PMT.
type StreamDescription struct {
	StreamType    uint8
	ElementaryPID uint16 // 13 bits.
	Descriptors   []Descriptor
}

// ProgramMapSection is a parsed PMT (table_id 0x02).
type ProgramMapSection struct {
	ProgramNumber        uint16
	VersionNumber        uint8 // 5 bits.
	CurrentNextIndicator bool
	SectionNumber        uint8
	LastSectionNumber    uint8
	PCRPID               uint16 // 13 bits.
	ProgramDescriptors   []Descriptor
	StreamDescriptions   []StreamDescription
	CRC32                uint32

	crcInput []byte
}

// VerifyCRC32 recomputes the CRC-32/MPEG-2 checksum over the as-parsed
// section body and reports whether it matches the stored CRC32. This is
// strictly an opt-in check; CRC32 is otherwise an opaque pass-through.
func (s *ProgramMapSection) VerifyCRC32() bool {
	return computeCRC32(s.crcInput) == s.CRC32
}

// OtherPSISection is any section whose table_id isn't PAT or PMT; its
// body (everything the common header's section_length spans, including
// any trailing crc_32) is kept opaque.
type OtherPSISection struct {
	TableID uint8
	Data    []byte
}

// PSISection is one entry of a PSIPacket's section list.
type PSISection struct {
	Kind  PSISectionKind
	PAT   *ProgramAssociationSection
	PMT   *ProgramMapSection
	Other *OtherPSISection
}

// PSIPacket is the payload of a payload_unit_start_indicator packet
// whose first three bytes are not 00 00 01.
type PSIPacket struct {
	PointerField uint8
	// PointerFiller holds the PointerField bytes of stuffing between the
	// pointer_field and the first section, preserved verbatim so
	// serialization round-trips even when it isn't all 0xff.
	PointerFiller []byte
	Sections      []PSISection
}

// parsePSIPacket reads the pointer_field and then repeatedly parses
// sections until a table_id 0xff terminator or the buffer is
// exhausted. It returns the number of bytes consumed; bytes from the
// terminator onward belong to the enclosing packet's DataBytes.
func parsePSIPacket(payload []byte) (*PSIPacket, int, error) {
	if len(payload) < 1 {
		return nil, 0, fmt.Errorf("mpegts: PSI payload needs at least 1 byte")
	}
	p := &PSIPacket{PointerField: payload[0]}
	offset := 1 + int(p.PointerField)
	if offset > len(payload) {
		return nil, 0, fmt.Errorf("mpegts: PSI pointer_field %d overruns payload", p.PointerField)
	}
	p.PointerFiller = slices.Clone(payload[1:offset])

	for offset < len(payload) {
		tableID := payload[offset]
		if tableID == tableIDTerminator {
			break
		}

		section, n, err := parsePSISection(payload[offset:], tableID)
		if err != nil {
			return nil, 0, err
		}
		p.Sections = append(p.Sections, section)
		offset += n
	}

	return p, offset, nil
}

// parsePSISection parses one section's common header (table_id through
// section_length), then dispatches on tableID.
func parsePSISection(buf []byte, tableID uint8) (PSISection, int, error) {
	if len(buf) < 3 {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI section header needs at least 3 bytes, got %d", len(buf))
	}

	if buf[1]&0x80 == 0 {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI section_syntax_indicator is 0")
	}
	if buf[1]&0x40 != 0 {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI zero-bit is set")
	}
	if buf[1]&0x30 != 0x30 {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI reserved bits are not '11'")
	}
	if buf[1]&0x0c != 0 {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI section_length top 2 bits are not 0")
	}

	combined := uint64(buf[1])<<8 | uint64(buf[2])
	sectionLength := int(GetBits(combined, 0, 11))

	total := 3 + sectionLength
	if total > len(buf) {
		return PSISection{}, 0, fmt.Errorf("mpegts: PSI section_length %d overruns buffer", sectionLength)
	}
	body := buf[3:total]

	switch tableID {
	case tableIDProgramAssociation:
		pat, err := parseProgramAssociationSection(body)
		if err != nil {
			return PSISection{}, 0, fmt.Errorf("mpegts: parsing PAT: %w", err)
		}
		return PSISection{Kind: PSISectionKindPAT, PAT: pat}, total, nil
	case tableIDProgramMap:
		pmt, err := parseProgramMapSection(body)
		if err != nil {
			return PSISection{}, 0, fmt.Errorf("mpegts: parsing PMT: %w", err)
		}
		return PSISection{Kind: PSISectionKindPMT, PMT: pmt}, total, nil
	default:
		return PSISection{
			Kind: PSISectionKindOther,
			Other: &OtherPSISection{
				TableID: tableID,
				Data:    slices.Clone(body),
			},
		}, total, nil
	}
}

// parseSectionCommonFields parses the 5 bytes shared by PAT and PMT
// bodies: a 16-bit id, then reserved/version/current_next, then
// section_number and last_section_number.
func parseSectionCommonFields(body []byte) (id uint16, version uint8, cni bool, sectionNumber, lastSectionNumber uint8, err error) {
	if len(body) < 5 {
		return 0, 0, false, 0, 0, fmt.Errorf("mpegts: section common fields need 5 bytes, got %d", len(body))
	}
	id = uint16(body[0])<<8 | uint16(body[1])
	if body[2]&0xc0 != 0xc0 {
		return 0, 0, false, 0, 0, fmt.Errorf("mpegts: section reserved bits before version_number are not '11'")
	}
	version = (body[2] >> 1) & 0x1f
	cni = body[2]&0x01 != 0
	sectionNumber = body[3]
	lastSectionNumber = body[4]
	return id, version, cni, sectionNumber, lastSectionNumber, nil
}

func parseProgramAssociationSection(body []byte) (*ProgramAssociationSection, error) {
	if len(body) < 9 {
		return nil, fmt.Errorf("mpegts: PAT body needs at least 9 bytes, got %d", len(body))
	}
	tsid, version, cni, sn, lsn, err := parseSectionCommonFields(body)
	if err != nil {
		return nil, err
	}

	s := &ProgramAssociationSection{
		TransportStreamID:    tsid,
		VersionNumber:        version,
		CurrentNextIndicator: cni,
		SectionNumber:        sn,
		LastSectionNumber:    lsn,
	}

	entriesEnd := len(body) - 4
	for i := 5; i+4 <= entriesEnd; i += 4 {
		programNumber := uint16(body[i])<<8 | uint16(body[i+1])
		combined := uint64(body[i+2])<<8 | uint64(body[i+3])
		pid := uint16(GetBits(combined, 0, 12))
		s.Programs = append(s.Programs, ProgramAssociationEntry{ProgramNumber: programNumber, PID: pid})
	}

	s.CRC32 = uint32(body[len(body)-4])<<24 | uint32(body[len(body)-3])<<16 |
		uint32(body[len(body)-2])<<8 | uint32(body[len(body)-1])
	s.crcInput = slices.Clone(body[:len(body)-4])
	return s, nil
}

func parseProgramMapSection(body []byte) (*ProgramMapSection, error) {
	if len(body) < 9 {
		return nil, fmt.Errorf("mpegts: PMT body needs at least 9 bytes, got %d", len(body))
	}
	programNumber, version, cni, sn, lsn, err := parseSectionCommonFields(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 9 {
		return nil, fmt.Errorf("mpegts: PMT body truncated before PCR_PID/program_info_length")
	}

	pcrCombined := uint64(body[5])<<8 | uint64(body[6])
	pcrPID := uint16(GetBits(pcrCombined, 0, 12))

	if body[7]&0xf0 != 0xf0 {
		return nil, fmt.Errorf("mpegts: PMT reserved bits before program_info_length are not '1111'")
	}
	if body[7]&0x0c != 0 {
		return nil, fmt.Errorf("mpegts: PMT program_info_length top 2 bits are not 0")
	}
	piLenCombined := uint64(body[7])<<8 | uint64(body[8])
	programInfoLength := int(GetBits(piLenCombined, 0, 11))

	s := &ProgramMapSection{
		ProgramNumber:        programNumber,
		VersionNumber:        version,
		CurrentNextIndicator: cni,
		SectionNumber:        sn,
		LastSectionNumber:    lsn,
		PCRPID:               pcrPID,
	}

	offset := 9
	if offset+programInfoLength > len(body)-4 {
		return nil, fmt.Errorf("mpegts: PMT program_info_length %d overruns section", programInfoLength)
	}
	descs, err := parseDescriptors(body[offset : offset+programInfoLength])
	if err != nil {
		return nil, fmt.Errorf("mpegts: parsing PMT program descriptors: %w", err)
	}
	s.ProgramDescriptors = descs
	offset += programInfoLength

	streamsEnd := len(body) - 4
	for offset < streamsEnd {
		if offset+5 > streamsEnd {
			return nil, fmt.Errorf("mpegts: PMT stream description truncated")
		}
		streamType := body[offset]

		pidCombined := uint64(body[offset+1])<<8 | uint64(body[offset+2])
		elementaryPID := uint16(GetBits(pidCombined, 0, 12))

		if body[offset+3]&0xf0 != 0xf0 {
			return nil, fmt.Errorf("mpegts: PMT stream description reserved bits before es_info_length are not '1111'")
		}
		if body[offset+3]&0x0c != 0 {
			return nil, fmt.Errorf("mpegts: PMT es_info_length top 2 bits are not 0")
		}
		esInfoLenCombined := uint64(body[offset+3])<<8 | uint64(body[offset+4])
		esInfoLength := int(GetBits(esInfoLenCombined, 0, 11))

		offset += 5
		if offset+esInfoLength > streamsEnd {
			return nil, fmt.Errorf("mpegts: PMT es_info_length %d overruns section", esInfoLength)
		}
		descs, err := parseDescriptors(body[offset : offset+esInfoLength])
		if err != nil {
			return nil, fmt.Errorf("mpegts: parsing stream descriptors: %w", err)
		}
		s.StreamDescriptions = append(s.StreamDescriptions, StreamDescription{
			StreamType:    streamType,
			ElementaryPID: elementaryPID,
			Descriptors:   descs,
		})
		offset += esInfoLength
	}

	s.CRC32 = uint32(body[len(body)-4])<<24 | uint32(body[len(body)-3])<<16 |
		uint32(body[len(body)-2])<<8 | uint32(body[len(body)-1])
	s.crcInput = slices.Clone(body[:len(body)-4])
	return s, nil
}

// parseDescriptors walks an opaque tag/length/data loop until buf is
// exhausted.
func parseDescriptors(buf []byte) ([]Descriptor, error) {
	var out []Descriptor
	offset := 0
	for offset < len(buf) {
		if offset+2 > len(buf) {
			return nil, fmt.Errorf("mpegts: descriptor header truncated")
		}
		tag := buf[offset]
		length := buf[offset+1]
		offset += 2
		if offset+int(length) > len(buf) {
			return nil, fmt.Errorf("mpegts: descriptor length %d overruns buffer", length)
		}
		out = append(out, Descriptor{
			Tag:    tag,
			Length: length,
			Data:   slices.Clone(buf[offset : offset+int(length)]),
		})
		offset += int(length)
	}
	return out, nil
}

// writePSIPacket serializes p into payload, returning the bytes
// written.
func writePSIPacket(payload []byte, p *PSIPacket) (int, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("mpegts: PSI payload buffer too small")
	}
	payload[0] = p.PointerField
	offset := 1 + int(p.PointerField)
	if offset > len(payload) {
		return 0, fmt.Errorf("mpegts: PSI pointer_field overruns buffer")
	}
	if copy(payload[1:offset], p.PointerFiller) < int(p.PointerField) {
		return 0, fmt.Errorf("mpegts: PSI pointer filler shorter than pointer_field")
	}

	for _, section := range p.Sections {
		n, err := writePSISection(payload[offset:], section)
		if err != nil {
			return 0, err
		}
		offset += n
	}
	return offset, nil
}

func writePSISection(buf []byte, s PSISection) (int, error) {
	var tableID uint8
	var body []byte
	var err error

	switch s.Kind {
	case PSISectionKindPAT:
		tableID = tableIDProgramAssociation
		body, err = serializeProgramAssociationSection(s.PAT)
	case PSISectionKindPMT:
		tableID = tableIDProgramMap
		body, err = serializeProgramMapSection(s.PMT)
	default:
		tableID = s.Other.TableID
		body = s.Other.Data
	}
	if err != nil {
		return 0, err
	}

	if len(buf) < 3+len(body) {
		return 0, fmt.Errorf("mpegts: PSI section buffer too small")
	}
	buf[0] = tableID
	buf[1] = 0x80 | 0x30 | uint8(len(body)>>8)&0x0f
	buf[2] = uint8(len(body))
	copy(buf[3:], body)
	return 3 + len(body), nil
}

func serializeSectionCommonFields(id uint16, version uint8, cni bool, sectionNumber, lastSectionNumber uint8) []byte {
	b := make([]byte, 5)
	b[0] = uint8(id >> 8)
	b[1] = uint8(id)
	b[2] = 0xc0 | (version&0x1f)<<1
	if cni {
		b[2] |= 0x01
	}
	b[3] = sectionNumber
	b[4] = lastSectionNumber
	return b
}

func serializeProgramAssociationSection(s *ProgramAssociationSection) ([]byte, error) {
	body := serializeSectionCommonFields(s.TransportStreamID, s.VersionNumber, s.CurrentNextIndicator, s.SectionNumber, s.LastSectionNumber)
	for _, prog := range s.Programs {
		body = append(body, uint8(prog.ProgramNumber>>8), uint8(prog.ProgramNumber))
		pidHigh := 0xe0 | uint8(prog.PID>>8)&0x1f
		body = append(body, pidHigh, uint8(prog.PID))
	}
	body = append(body, uint8(s.CRC32>>24), uint8(s.CRC32>>16), uint8(s.CRC32>>8), uint8(s.CRC32))
	return body, nil
}

func serializeProgramMapSection(s *ProgramMapSection) ([]byte, error) {
	body := serializeSectionCommonFields(s.ProgramNumber, s.VersionNumber, s.CurrentNextIndicator, s.SectionNumber, s.LastSectionNumber)

	pcrHigh := 0xe0 | uint8(s.PCRPID>>8)&0x1f
	body = append(body, pcrHigh, uint8(s.PCRPID))

	descBytes, err := serializeDescriptors(s.ProgramDescriptors)
	if err != nil {
		return nil, err
	}
	piLenHigh := 0xf0 | uint8(len(descBytes)>>8)&0x0f
	body = append(body, piLenHigh, uint8(len(descBytes)))
	body = append(body, descBytes...)

	for _, sd := range s.StreamDescriptions {
		sdDescBytes, err := serializeDescriptors(sd.Descriptors)
		if err != nil {
			return nil, err
		}
		pidHigh := 0xe0 | uint8(sd.ElementaryPID>>8)&0x1f
		esInfoLenHigh := 0xf0 | uint8(len(sdDescBytes)>>8)&0x0f
		body = append(body, sd.StreamType, pidHigh, uint8(sd.ElementaryPID), esInfoLenHigh, uint8(len(sdDescBytes)))
		body = append(body, sdDescBytes...)
	}

	body = append(body, uint8(s.CRC32>>24), uint8(s.CRC32>>16), uint8(s.CRC32>>8), uint8(s.CRC32))
	return body, nil
}

func serializeDescriptors(descriptors []Descriptor) ([]byte, error) {
	var out []byte
	for _, d := range descriptors {
		length := d.Length
		if int(length) != len(d.Data) {
			length = uint8(len(d.Data))
		}
		out = append(out, d.Tag, length)
		out = append(out, d.Data...)
	}
	return out, nil
}
