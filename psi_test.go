package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPATRoundTripSevenPrograms(t *testing.T) {
	pat := &ProgramAssociationSection{
		TransportStreamID:    0x02a4,
		VersionNumber:        0x19,
		CurrentNextIndicator: true,
		Programs: []ProgramAssociationEntry{
			{ProgramNumber: 2, PID: 41},
			{ProgramNumber: 3, PID: 105},
			{ProgramNumber: 0x97, PID: 64},
			{ProgramNumber: 4, PID: 0xa9},
			{ProgramNumber: 5, PID: 0xc9},
			{ProgramNumber: 6, PID: 0xe9},
			{ProgramNumber: 7, PID: 0x129},
		},
		CRC32: 0xdeadbeef,
	}

	psi := &PSIPacket{
		Sections: []PSISection{{Kind: PSISectionKindPAT, PAT: pat}},
	}

	payload := make([]byte, MpegTsPacketSize-4)
	n, err := writePSIPacket(payload, psi)
	require.NoError(t, err)

	got, consumed, err := parsePSIPacket(payload[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	require.Len(t, got.Sections, 1)
	require.Equal(t, PSISectionKindPAT, got.Sections[0].Kind)

	gotPAT := got.Sections[0].PAT
	assert.Equal(t, pat.TransportStreamID, gotPAT.TransportStreamID)
	assert.Equal(t, pat.VersionNumber, gotPAT.VersionNumber)
	assert.True(t, gotPAT.CurrentNextIndicator)
	assert.Equal(t, pat.Programs, gotPAT.Programs)
	assert.Equal(t, pat.CRC32, gotPAT.CRC32)

	payload2 := make([]byte, MpegTsPacketSize-4)
	n2, err := writePSIPacket(payload2, got)
	require.NoError(t, err)
	assert.Equal(t, payload[:n], payload2[:n2])
}

func TestPMTRoundTripWithDescriptors(t *testing.T) {
	pmt := &ProgramMapSection{
		ProgramNumber:        1,
		VersionNumber:        2,
		CurrentNextIndicator: true,
		PCRPID:               256,
		ProgramDescriptors: []Descriptor{
			{Tag: 0x05, Length: 4, Data: []byte{0x48, 0x44, 0x4d, 0x56}},
		},
		StreamDescriptions: []StreamDescription{
			{
				StreamType:    0x1b,
				ElementaryPID: 257,
				Descriptors:   nil,
			},
			{
				StreamType:    0x0f,
				ElementaryPID: 258,
				Descriptors: []Descriptor{
					{Tag: 0x0a, Length: 3, Data: []byte{0x65, 0x6e, 0x67}},
				},
			},
		},
		CRC32: 0x12345678,
	}

	psi := &PSIPacket{Sections: []PSISection{{Kind: PSISectionKindPMT, PMT: pmt}}}

	payload := make([]byte, MpegTsPacketSize-4)
	n, err := writePSIPacket(payload, psi)
	require.NoError(t, err)

	got, _, err := parsePSIPacket(payload[:n])
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	gotPMT := got.Sections[0].PMT
	require.NotNil(t, gotPMT)
	assert.Equal(t, pmt.PCRPID, gotPMT.PCRPID)
	assert.Equal(t, pmt.ProgramDescriptors, gotPMT.ProgramDescriptors)
	assert.Equal(t, pmt.StreamDescriptions, gotPMT.StreamDescriptions)
	assert.Equal(t, pmt.CRC32, gotPMT.CRC32)
}

func TestPSISectionRejectsBadSyntaxIndicator(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00}
	_, _, err := parsePSISection(buf, tableIDProgramAssociation)
	assert.Error(t, err)
}

func TestPSISectionRejectsNonZeroReservedLengthBits(t *testing.T) {
	buf := []byte{0x00, 0xb0 | 0x0c, 0x00}
	_, _, err := parsePSISection(buf, tableIDProgramAssociation)
	assert.Error(t, err)
}

func TestPMTRejectsBadEsInfoLengthReservedBits(t *testing.T) {
	// Common fields (5) + PCR_PID (2) + program_info_length=0 (2) = 9 bytes,
	// then a stream description whose es_info_length reserved bits are wrong.
	body := append(serializeSectionCommonFields(1, 0, true, 0, 0), 0xe1, 0x00, 0xf0, 0x00)
	body = append(body, 0x1b, 0xe1, 0x01, 0x00 /* should have top nibble 1111 */, 0x00)
	body = append(body, 0x00, 0x00, 0x00, 0x00) // CRC placeholder.
	_, err := parseProgramMapSection(body)
	assert.Error(t, err)
}

func TestOtherPSISectionOpaquePassthrough(t *testing.T) {
	payload := []byte{0x00, 0x05, 0xb0, 0x03, 0xaa, 0xbb, 0xcc}
	got, n, err := parsePSIPacket(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, PSISectionKindOther, got.Sections[0].Kind)
	assert.Equal(t, uint8(0x05), got.Sections[0].Other.TableID)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, got.Sections[0].Other.Data)
}

func TestPATVerifyCRC32(t *testing.T) {
	body := append(serializeSectionCommonFields(1, 0, true, 0, 0), 0x00, 0x02, 0xe0, 0x10)
	crc := computeCRC32(body)
	full := append(body, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	s, err := parseProgramAssociationSection(full)
	require.NoError(t, err)
	assert.True(t, s.VerifyCRC32())

	s.CRC32 ^= 0xffffffff
	assert.False(t, s.VerifyCRC32())
}
