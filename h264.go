package mpegts

// H264FrameType is the coarse frame type reported by H264FrameTypeFromBuffer.
type H264FrameType int

// H264 frame types.
const (
	H264FrameTypeUnknown H264FrameType = iota
	H264FrameTypeI
	H264FrameTypeP
	H264FrameTypeB
	H264FrameTypeOther
)

func (t H264FrameType) String() string {
	switch t {
	case H264FrameTypeI:
		return "I"
	case H264FrameTypeP:
		return "P"
	case H264FrameTypeB:
		return "B"
	case H264FrameTypeOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// H264FrameTypeFromBuffer probes an H.264 elementary-stream payload for
// its coarse picture type, sliding a 7-byte window over three patterns in
// order of decreasing cheapness:
//
//  1. an Access Unit Delimiter NAL (nal_unit_type 9) carrying
//     primary_picture_type 0x10/0x30/0x50 -> I/P/B directly;
//  2. an IDR slice NAL (nal_unit_type 5) -> I;
//  3. a non-IDR slice NAL (nal_unit_type 1) -> decode the slice header's
//     first two Exp-Golomb fields and classify slice_type.
//
// The earliest match in the buffer wins; H264FrameTypeUnknown is returned
// if nothing matches.
func H264FrameTypeFromBuffer(buf []byte) H264FrameType {
	if len(buf) < 7 {
		return H264FrameTypeUnknown
	}

	var code uint64 = 0xffffffff
	data := buf
	for i := 0; i < 4 && i < len(data); i++ {
		code = (code << 8) | uint64(data[i])
	}
	data = data[min(4, len(buf)):]

	for i := 4; i < len(buf); i++ {
		code = (code << 8) | uint64(data[0])
		data = data[1:]

		switch {
		case code&0x00ffffffffffffff == 0x0000000001091000:
			return H264FrameTypeI
		case code&0x00ffffffffffffff == 0x0000000001093000:
			return H264FrameTypeP
		case code&0x00ffffffffffffff == 0x0000000001095000:
			return H264FrameTypeB
		case code&0x000000ffffffff00 == 0x0000000000010500:
			return H264FrameTypeI
		case code&0x000000ffffffff00 == 0x0000000000010100:
			// buf[i] is already the first byte of slice_header RBSP data;
			// the NAL header byte (0x01) sits at buf[i-1].
			return h264SliceHeaderFrameType(buf[i:])
		}
	}
	return H264FrameTypeUnknown
}

// h264SliceHeaderFrameType decodes the first_mb_in_slice and slice_type
// Exp-Golomb fields immediately following a non-IDR slice NAL header and
// classifies the result.
func h264SliceHeaderFrameType(nal []byte) H264FrameType {
	if len(nal) == 0 {
		return H264FrameTypeUnknown
	}

	bs := NewBitstream(nal)
	if _, err := bs.ReadGolombUint32(); err != nil { // first_mb_in_slice
		return H264FrameTypeUnknown
	}
	sliceType, err := bs.ReadGolombUint32()
	if err != nil {
		return H264FrameTypeUnknown
	}

	switch sliceType {
	case 0, 3, 5, 8:
		return H264FrameTypeP
	case 1, 6:
		return H264FrameTypeB
	case 2, 4, 7, 9:
		return H264FrameTypeI
	default:
		return H264FrameTypeOther
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
