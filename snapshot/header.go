package snapshot

import (
	"fmt"

	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

const (
	// HeaderSize is the fixed size of the snapshot header in bytes.
	HeaderSize = 16

	EndiannessMask  = 0x0002 // bit 1: 0 little-endian, 1 big-endian
	ReservedMask    = 0x000d // bits 0, 2 and 3 must be zero
	MagicNumberMask = 0xfff0 // bits 4-15

	// MagicV1 identifies version 1 of the snapshot format.
	MagicV1 = 0xd5b0

	// EntryHeaderSize is the length prefix written before every section.
	EntryHeaderSize = 2
)

// Header is the fixed-size header at the start of a snapshot.
//
//	offset 0-1   options: magic number and endianness (always little-endian)
//	offset 2     compression type of the payload
//	offset 3     reserved, zero
//	offset 4-7   number of sections
//	offset 8-11  uncompressed payload size
//	offset 12-15 checksum of the uncompressed payload
type Header struct {
	Options     uint16
	Compression format.CompressionType
	Count       uint32
	PayloadSize uint32
	Checksum    uint32
}

// NewHeader creates a little-endian version 1 header.
func NewHeader(compression format.CompressionType) Header {
	return Header{Options: MagicV1, Compression: compression}
}

// IsBigEndian reports whether the counters and entry prefixes are big-endian.
func (h Header) IsBigEndian() bool {
	return h.Options&EndiannessMask != 0
}

// WithBigEndian switches the header and entries to big-endian.
func (h *Header) WithBigEndian() {
	h.Options |= EndiannessMask
}

// Engine returns the byte order of the counters and entry prefixes.
func (h Header) Engine() endian.EndianEngine {
	if h.IsBigEndian() {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// Magic returns the magic number bits of Options.
func (h Header) Magic() uint16 {
	return h.Options & MagicNumberMask
}

// Validate checks the magic number, reserved bits and compression type.
func (h Header) Validate() error {
	if h.Magic() != MagicV1 {
		return fmt.Errorf("magic 0x%04x: %w", h.Magic(), errs.ErrInvalidSnapshot)
	}
	if h.Options&ReservedMask != 0 {
		return fmt.Errorf("reserved option bits 0x%04x: %w", h.Options&ReservedMask, errs.ErrInvalidSnapshot)
	}
	switch h.Compression {
	case format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4:
		return nil
	default:
		return fmt.Errorf("compression %s: %w", h.Compression, errs.ErrUnsupportedCompression)
	}
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be exactly 16 bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize, ErrInvalidSnapshot or ErrUnsupportedCompression
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	h.Options = endian.GetLittleEndianEngine().Uint16(data[0:2])
	h.Compression = format.CompressionType(data[2])

	engine := h.Engine()
	h.Count = engine.Uint32(data[4:8])
	h.PayloadSize = engine.Uint32(data[8:12])
	h.Checksum = engine.Uint32(data[12:16])

	return h.Validate()
}

// Bytes serializes the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	endian.GetLittleEndianEngine().PutUint16(b[0:2], h.Options)
	b[2] = byte(h.Compression)

	engine := h.Engine()
	engine.PutUint32(b[4:8], h.Count)
	engine.PutUint32(b[8:12], h.PayloadSize)
	engine.PutUint32(b[12:16], h.Checksum)

	return b
}
