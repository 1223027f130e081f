package section

import (
	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/format"
)

// Builder encodes long-form or short-form sections field by field.
//
// The zero value is not usable; create one with NewBuilder or NewShortBuilder.
// Unless CRC is called, Bytes computes a valid CRC_32.
type Builder struct {
	hdr Header

	tsid        uint16
	onid        uint16
	segLast     uint8
	segLastSet  bool
	lastTableID format.TableID
	lastIDSet   bool

	payload []byte
	crc     uint32
	crcSet  bool
}

// NewBuilder creates a builder for a long-form section of tableID/ext with
// version 0, section 0 of 0 and current_next_indicator set.
func NewBuilder(tableID format.TableID, ext uint16) *Builder {
	return &Builder{
		hdr: Header{
			TableID:         tableID,
			SyntaxIndicator: true,
			TableIDExt:      ext,
			CurrentNext:     true,
		},
	}
}

// NewShortBuilder creates a builder for a short-form section such as TDT.
func NewShortBuilder(tableID format.TableID) *Builder {
	return &Builder{hdr: Header{TableID: tableID}}
}

// Version sets version_number; only the low 5 bits are encoded.
func (b *Builder) Version(v uint8) *Builder {
	b.hdr.Version = v & VersionMask
	return b
}

// Number sets section_number and last_section_number.
func (b *Builder) Number(sn, lsn uint8) *Builder {
	b.hdr.SectionNumber = sn
	b.hdr.LastSectionNumber = lsn

	return b
}

// CurrentNext sets current_next_indicator.
func (b *Builder) CurrentNext(v bool) *Builder {
	b.hdr.CurrentNext = v
	return b
}

// Private sets private_indicator.
func (b *Builder) Private(v bool) *Builder {
	b.hdr.PrivateIndicator = v
	return b
}

// TransportStreamID sets the EIT transport_stream_id field.
func (b *Builder) TransportStreamID(tsid uint16) *Builder {
	b.tsid = tsid
	return b
}

// OriginalNetworkID sets the SDT/EIT original_network_id field.
func (b *Builder) OriginalNetworkID(onid uint16) *Builder {
	b.onid = onid
	return b
}

// Segment sets the EIT segment_last_section_number and last_table_id fields.
// When never called, EIT sections use the section's own segment end bounded by
// last_section_number, and last_table_id equal to table_id.
func (b *Builder) Segment(segLast uint8, lastTableID format.TableID) *Builder {
	b.segLast, b.segLastSet = segLast, true
	b.lastTableID, b.lastIDSet = lastTableID, true

	return b
}

// Payload sets the table specific bytes placed before the CRC_32.
func (b *Builder) Payload(p []byte) *Builder {
	b.payload = p
	return b
}

// CRC forces the CRC_32 value written to the section.
func (b *Builder) CRC(crc uint32) *Builder {
	b.crc, b.crcSet = crc, true
	return b
}

// Bytes encodes the section.
func (b *Builder) Bytes() []byte {
	hdr := b.hdr
	if !hdr.SyntaxIndicator {
		out := make([]byte, ShortHeaderSize, ShortHeaderSize+len(b.payload))
		out = append(out, b.payload...)
		hdr.Length = uint16(len(out) - ShortHeaderSize)
		hdr.put(out)

		return out
	}

	fixed := LongHeaderSize
	switch {
	case hdr.TableID.IsSDT():
		fixed = SDTHeaderSize
	case hdr.TableID.IsEIT():
		fixed = EITHeaderSize
	}

	size := fixed + len(b.payload) + CRCSize
	out := make([]byte, size)
	hdr.Length = uint16(size - ShortHeaderSize)
	hdr.put(out)

	engine := endian.GetBigEndianEngine()
	switch {
	case hdr.TableID.IsSDT():
		engine.PutUint16(out[offsetSDTOriginalNetworkID:], b.onid)
		out[offsetSDTOriginalNetworkID+2] = 0xff
	case hdr.TableID.IsEIT():
		engine.PutUint16(out[offsetEITTransportStreamID:], b.tsid)
		engine.PutUint16(out[offsetEITOriginalNetworkID:], b.onid)
		out[offsetEITSegmentLast] = b.segmentLast()
		out[offsetEITLastTableID] = byte(b.lastTable())
	}
	copy(out[fixed:], b.payload)

	crc := b.crc
	if !b.crcSet {
		crc = CRC32(out[:size-CRCSize])
	}
	engine.PutUint32(out[size-CRCSize:], crc)

	return out
}

// Section encodes and parses the section.
func (b *Builder) Section() (*Section, error) {
	return Parse(b.Bytes(), WithShortSyntax())
}

// MustSection is like Section but panics on error.
func (b *Builder) MustSection() *Section {
	s, err := b.Section()
	if err != nil {
		panic(err)
	}

	return s
}

func (b *Builder) segmentLast() uint8 {
	if b.segLastSet {
		return b.segLast
	}

	end := b.hdr.SectionNumber | (SegmentSize - 1)
	if end > b.hdr.LastSectionNumber {
		end = b.hdr.LastSectionNumber
	}

	return end
}

func (b *Builder) lastTable() format.TableID {
	if b.lastIDSet {
		return b.lastTableID
	}

	return b.hdr.TableID
}
