package section

import (
	"fmt"
	"slices"

	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/options"
)

// Section is one validated PSI/SI section.
//
// Sections are immutable after Parse; the collectors in package table only
// read their fields and keep the pointer.
type Section struct {
	Header

	// CRC is the trailing CRC_32 of long-form sections, zero otherwise.
	CRC uint32

	// TransportStreamID is table_id_extension for SDT and the dedicated field for EIT.
	TransportStreamID uint16
	// OriginalNetworkID is only set for SDT and EIT sections.
	OriginalNetworkID uint16

	// SegmentLastSectionNumber and LastTableID are only set for EIT sections.
	SegmentLastSectionNumber uint8
	LastTableID              format.TableID

	raw []byte
}

// ParseConfig holds decoder settings.
type ParseConfig struct {
	VerifyCRC     bool
	AllowShortPSI bool
}

// ParseOption configures Parse.
type ParseOption = options.Option[*ParseConfig]

// WithCRCCheck makes Parse reject long-form sections whose CRC_32 does not match.
func WithCRCCheck() ParseOption {
	return options.NoError(func(c *ParseConfig) {
		c.VerifyCRC = true
	})
}

// WithShortSyntax accepts short-form sections for table ids that normally
// require the long syntax. Such sections carry no version or numbering.
func WithShortSyntax() ParseOption {
	return options.NoError(func(c *ParseConfig) {
		c.AllowShortPSI = true
	})
}

// Parse decodes and validates a complete section.
//
// Parameters:
//   - buf: Exactly one section, section_length+3 bytes
//   - opts: Decoder options
//
// Returns:
//   - *Section: Decoded section owning a private copy of buf
//   - error: ErrSectionTooShort, ErrSectionLength, ErrSyntaxIndicator,
//     ErrSectionNumber, ErrSegmentNumber or ErrCRCMismatch
func Parse(buf []byte, opts ...ParseOption) (*Section, error) {
	cfg := &ParseConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	s := &Section{}
	if err := s.Header.Parse(buf); err != nil {
		return nil, err
	}

	if int(s.Length)+ShortHeaderSize != len(buf) {
		return nil, fmt.Errorf("%w: section_length %d, buffer %d bytes", errs.ErrSectionLength, s.Length, len(buf))
	}

	if !s.SyntaxIndicator {
		if s.TableID.RequiresLongSyntax() && !cfg.AllowShortPSI {
			return nil, fmt.Errorf("%w: table %s", errs.ErrSyntaxIndicator, s.TableID)
		}
		s.raw = slices.Clone(buf)

		return s, nil
	}

	if s.Length < MinLongSectionLen {
		return nil, fmt.Errorf("%w: section_length %d", errs.ErrSectionLength, s.Length)
	}

	engine := endian.GetBigEndianEngine()
	s.CRC = engine.Uint32(buf[len(buf)-CRCSize:])

	switch {
	case s.TableID.IsSDT():
		if len(buf) < SDTHeaderSize+CRCSize {
			return nil, fmt.Errorf("%w: SDT section of %d bytes", errs.ErrSectionTooShort, len(buf))
		}
		s.TransportStreamID = s.TableIDExt
		s.OriginalNetworkID = engine.Uint16(buf[offsetSDTOriginalNetworkID:])
	case s.TableID.IsEIT():
		if len(buf) < EITHeaderSize+CRCSize {
			return nil, fmt.Errorf("%w: EIT section of %d bytes", errs.ErrSectionTooShort, len(buf))
		}
		s.TransportStreamID = engine.Uint16(buf[offsetEITTransportStreamID:])
		s.OriginalNetworkID = engine.Uint16(buf[offsetEITOriginalNetworkID:])
		s.SegmentLastSectionNumber = buf[offsetEITSegmentLast]
		s.LastTableID = format.TableID(buf[offsetEITLastTableID])

		seg, segLast := s.SectionNumber/SegmentSize, s.SegmentLastSectionNumber/SegmentSize
		if seg != segLast || s.SectionNumber%SegmentSize > s.SegmentLastSectionNumber%SegmentSize {
			return nil, fmt.Errorf("%w: section %d, segment_last_section_number %d",
				errs.ErrSegmentNumber, s.SectionNumber, s.SegmentLastSectionNumber)
		}
	}

	if cfg.VerifyCRC && !VerifyCRC(buf) {
		return nil, fmt.Errorf("%w: table %s ext 0x%04x section %d",
			errs.ErrCRCMismatch, s.TableID, s.TableIDExt, s.SectionNumber)
	}

	s.raw = slices.Clone(buf)

	return s, nil
}

// Raw returns the encoded section. The returned slice must not be modified.
func (s *Section) Raw() []byte {
	return s.raw
}

// Payload returns the table specific bytes between the fixed header fields
// and the CRC_32.
func (s *Section) Payload() []byte {
	if !s.SyntaxIndicator {
		return s.raw[ShortHeaderSize:]
	}

	start := LongHeaderSize
	switch {
	case s.TableID.IsSDT():
		start = SDTHeaderSize
	case s.TableID.IsEIT():
		start = EITHeaderSize
	}

	return s.raw[start : len(s.raw)-CRCSize]
}

// Segment returns the index of the 8-section segment the section belongs to.
func (s *Section) Segment() uint8 {
	return s.SectionNumber / SegmentSize
}

func (s *Section) String() string {
	if !s.SyntaxIndicator {
		return fmt.Sprintf("%s len=%d", s.TableID, s.Length)
	}

	return fmt.Sprintf("%s ext=0x%04x v=%d sec=%d/%d", s.TableID, s.TableIDExt, s.Version, s.SectionNumber, s.LastSectionNumber)
}
