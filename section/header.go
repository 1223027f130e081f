package section

import (
	"fmt"

	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

// Header is the generic section header plus, when SyntaxIndicator is set, the
// extended header shared by every long-form PSI/SI section.
type Header struct {
	// TableID identifies the table the section belongs to.
	TableID format.TableID // byte 0
	// SyntaxIndicator marks the long section syntax.
	SyntaxIndicator bool // byte 1, bit 7
	// PrivateIndicator is the private_indicator bit, carried through unchanged.
	PrivateIndicator bool // byte 1, bit 6
	// Length is section_length: the number of bytes after byte 2.
	Length uint16 // byte 1-2, 12 bits

	// The fields below are only meaningful for long-form sections.

	TableIDExt        uint16 // byte 3-4
	Version           uint8  // byte 5, bits 1-5
	CurrentNext       bool   // byte 5, bit 0
	SectionNumber     uint8  // byte 6
	LastSectionNumber uint8  // byte 7
}

// Size returns the encoded size of the header in bytes.
func (h *Header) Size() int {
	if h.SyntaxIndicator {
		return LongHeaderSize
	}

	return ShortHeaderSize
}

// Parse parses the header from the start of a section buffer.
//
// Parameters:
//   - data: Section bytes; at least 3 bytes, or 8 when the syntax indicator is set
//
// Returns:
//   - error: ErrSectionTooShort if data cannot hold the header, or
//     ErrSectionNumber if section_number exceeds last_section_number
func (h *Header) Parse(data []byte) error {
	if len(data) < ShortHeaderSize {
		return errs.ErrSectionTooShort
	}

	engine := endian.GetBigEndianEngine()
	h.TableID = format.TableID(data[0])
	h.SyntaxIndicator = data[1]&SyntaxIndicatorMask != 0
	h.PrivateIndicator = data[1]&PrivateIndicatorMask != 0
	h.Length = endian.Uint12(engine, data[1:3])

	if !h.SyntaxIndicator {
		h.TableIDExt, h.Version, h.CurrentNext = 0, 0, false
		h.SectionNumber, h.LastSectionNumber = 0, 0

		return nil
	}

	if len(data) < LongHeaderSize {
		return errs.ErrSectionTooShort
	}

	h.TableIDExt = engine.Uint16(data[3:5])
	h.Version = (data[5] >> 1) & VersionMask
	h.CurrentNext = data[5]&CurrentNextMask != 0
	h.SectionNumber = data[6]
	h.LastSectionNumber = data[7]

	if h.SectionNumber > h.LastSectionNumber {
		return fmt.Errorf("%w: %d > %d", errs.ErrSectionNumber, h.SectionNumber, h.LastSectionNumber)
	}

	return nil
}

// Bytes serializes the header. Reserved bits are set to one.
func (h *Header) Bytes() []byte {
	b := make([]byte, h.Size())
	h.put(b)

	return b
}

func (h *Header) put(b []byte) {
	engine := endian.GetBigEndianEngine()

	b[0] = byte(h.TableID)
	flags := uint16(ReservedBitsMask)<<8 | h.Length&SectionLengthMask
	if h.SyntaxIndicator {
		flags |= SyntaxIndicatorMask << 8
	}
	if h.PrivateIndicator {
		flags |= PrivateIndicatorMask << 8
	}
	engine.PutUint16(b[1:3], flags)

	if !h.SyntaxIndicator {
		return
	}

	engine.PutUint16(b[3:5], h.TableIDExt)
	b[5] = VersionReservedMask | (h.Version&VersionMask)<<1
	if h.CurrentNext {
		b[5] |= CurrentNextMask
	}
	b[6] = h.SectionNumber
	b[7] = h.LastSectionNumber
}
