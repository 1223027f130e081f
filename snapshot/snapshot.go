// Package snapshot serializes sets of sections into a compact, checksummed
// archive so that collected tables can be stored and restored.
//
// A snapshot is a 16-byte Header followed by the payload: every section's raw
// bytes prefixed with a 2-byte length, optionally compressed as a whole.
//
//	data, err := snapshot.Encode(tbl.Sections(), snapshot.WithCompression(format.CompressionZstd))
//	...
//	sections, err := snapshot.Decode(data)
package snapshot

import (
	"fmt"

	"github.com/arloliu/dvbsi/compress"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/hash"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/internal/pool"
	"github.com/arloliu/dvbsi/section"
)

// Config holds encoder and decoder settings.
type Config struct {
	Compression format.CompressionType
	BigEndian   bool
	VerifyCRC   bool
}

// Option configures Encode and Decode.
type Option = options.Option[*Config]

// WithCompression selects the payload codec used by Encode. Default: Zstd.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(c *Config) error {
		if _, err := compress.GetCodec(ct); err != nil {
			return err
		}
		c.Compression = ct

		return nil
	})
}

// WithBigEndian makes Encode write big-endian counters and length prefixes.
func WithBigEndian() Option {
	return options.NoError(func(c *Config) {
		c.BigEndian = true
	})
}

// WithSectionCRCCheck makes Decode reject sections whose CRC_32 does not match.
func WithSectionCRCCheck() Option {
	return options.NoError(func(c *Config) {
		c.VerifyCRC = true
	})
}

func newConfig(opts []Option) (*Config, error) {
	cfg := &Config{Compression: format.CompressionZstd}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Encode serializes sections in the given order.
//
// A payload the codec cannot shrink is stored uncompressed and the header
// records CompressionNone.
//
// Parameters:
//   - sections: Sections to store, usually a collector's Sections()
//   - opts: Compression and byte order options
//
// Returns:
//   - []byte: The snapshot, owned by the caller
//   - error: Option or codec error
func Encode(sections []*section.Section, opts ...Option) ([]byte, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	hdr := NewHeader(cfg.Compression)
	if cfg.BigEndian {
		hdr.WithBigEndian()
	}
	engine := hdr.Engine()

	buf := pool.GetSnapshotBuffer()
	defer pool.PutSnapshotBuffer(buf)

	for _, s := range sections {
		raw := s.Raw()
		buf.Grow(EntryHeaderSize + len(raw))
		buf.B = engine.AppendUint16(buf.B, uint16(len(raw)))
		buf.MustWrite(raw)
	}
	payload := buf.Bytes()

	hdr.Count = uint32(len(sections))
	hdr.PayloadSize = uint32(len(payload))
	hdr.Checksum = hash.Checksum32(payload)

	codec, err := compress.GetCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	packed, err := codec.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if len(packed) >= len(payload) {
		packed = payload
		hdr.Compression = format.CompressionNone
	}

	out := make([]byte, 0, HeaderSize+len(packed))
	out = append(out, hdr.Bytes()...)
	out = append(out, packed...)

	return out, nil
}

// Decode restores the sections of a snapshot in stored order.
//
// Parameters:
//   - data: A snapshot produced by Encode
//   - opts: Decoder options; WithSectionCRCCheck verifies every section
//
// Returns:
//   - []*section.Section: The decoded sections
//   - error: Header errors, ErrChecksumMismatch, ErrInvalidSnapshot, or a
//     section decoding error
func Decode(data []byte, opts ...Option) ([]*section.Section, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(hdr.Compression)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Decompress(data[HeaderSize:], int(hdr.PayloadSize))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	if hash.Checksum32(payload) != hdr.Checksum {
		return nil, errs.ErrChecksumMismatch
	}

	parseOpts := []section.ParseOption{section.WithShortSyntax()}
	if cfg.VerifyCRC {
		parseOpts = append(parseOpts, section.WithCRCCheck())
	}

	// every entry holds at least a length prefix and a short header
	maxCount := len(payload) / (EntryHeaderSize + section.ShortHeaderSize)
	if int64(hdr.Count) > int64(maxCount) {
		return nil, fmt.Errorf("header says %d sections, payload holds at most %d: %w", hdr.Count, maxCount, errs.ErrInvalidSnapshot)
	}

	engine := hdr.Engine()
	sections := make([]*section.Section, 0, min(int(hdr.Count), maxCount))
	for off := 0; off < len(payload); {
		if len(payload)-off < EntryHeaderSize {
			return nil, fmt.Errorf("truncated entry at %d: %w", off, errs.ErrInvalidSnapshot)
		}
		size := int(engine.Uint16(payload[off:]))
		off += EntryHeaderSize
		if len(payload)-off < size {
			return nil, fmt.Errorf("entry at %d overruns payload: %w", off, errs.ErrInvalidSnapshot)
		}

		s, err := section.Parse(payload[off:off+size], parseOpts...)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", len(sections), err)
		}
		sections = append(sections, s)
		off += size
	}

	if len(sections) != int(hdr.Count) {
		return nil, fmt.Errorf("%d sections, header says %d: %w", len(sections), hdr.Count, errs.ErrInvalidSnapshot)
	}

	return sections, nil
}

// ParseHeader parses the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrInvalidHeaderSize
	}

	var h Header
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
