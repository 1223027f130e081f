package section

// Header sizes and fixed field offsets.
const (
	ShortHeaderSize = 3  // table_id + flags/section_length
	LongHeaderSize  = 8  // short header + extended header
	SDTHeaderSize   = 11 // long header + original_network_id + reserved
	EITHeaderSize   = 14 // long header + tsid + onid + segment_last + last_table_id
	CRCSize         = 4  // trailing CRC_32

	MaxSectionLength  = 4093 // maximum section_length for private sections
	MaxSectionSize    = MaxSectionLength + ShortHeaderSize
	MinLongSectionLen = LongHeaderSize - ShortHeaderSize + CRCSize // section_length of an empty long section

	SegmentSize = 8 // sections per EIT segment
)

// Bit masks of the generic and extended headers.
const (
	SyntaxIndicatorMask  = 0x80 // byte 1, bit 7
	PrivateIndicatorMask = 0x40 // byte 1, bit 6
	ReservedBitsMask     = 0x30 // byte 1, bits 4-5
	SectionLengthMask    = 0x0fff
	VersionMask          = 0x1f // after shifting byte 5 right by one
	CurrentNextMask      = 0x01 // byte 5, bit 0
	VersionReservedMask  = 0xc0 // byte 5, bits 6-7
	DescriptorLengthMask = 0x0fff
)

// Offsets of the family specific fields.
const (
	offsetSDTOriginalNetworkID = 8
	offsetEITTransportStreamID = 8
	offsetEITOriginalNetworkID = 10
	offsetEITSegmentLast       = 12
	offsetEITLastTableID       = 13
)
