package compress

import (
	"fmt"

	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

// MaxPayloadSize bounds the uncompressed payload of one snapshot. The largest
// table is a full EIT schedule: 16 tables of 256 sections of 4096 bytes for
// each of up to 4 services sharing a snapshot.
const MaxPayloadSize = 64 << 20

// Codec compresses snapshot payloads.
//
// Compress never modifies its input; its result is owned by the caller unless
// documented otherwise. Decompress is given the uncompressed size recorded
// in the snapshot header and fails when the data does not restore exactly
// that many bytes.
type Codec interface {
	Type() format.CompressionType
	Compress(payload []byte) ([]byte, error)
	Decompress(data []byte, size int) ([]byte, error)
}

var codecs = map[format.CompressionType]Codec{
	format.CompressionNone: NoneCodec{},
	format.CompressionZstd: ZstdCodec{},
	format.CompressionS2:   S2Codec{},
	format.CompressionLZ4:  LZ4Codec{},
}

// GetCodec returns the shared codec for compressionType.
//
// Parameters:
//   - compressionType: Type of compression (None, Zstd, S2, or LZ4)
//
// Returns:
//   - Codec: The codec, safe for concurrent use
//   - error: ErrUnsupportedCompression for unknown types
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := codecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("compression %s: %w", compressionType, errs.ErrUnsupportedCompression)
}

// checkSize validates the size announced by a snapshot header.
func checkSize(ct format.CompressionType, size int) error {
	if size < 0 || size > MaxPayloadSize {
		return fmt.Errorf("%s payload of %d bytes exceeds %d: %w", ct, size, MaxPayloadSize, errs.ErrInvalidSnapshot)
	}

	return nil
}

// checkRestored validates the length of a decompressed payload.
func checkRestored(ct format.CompressionType, got, size int) error {
	if got != size {
		return fmt.Errorf("%s payload restored %d bytes, header says %d: %w", ct, got, size, errs.ErrInvalidSnapshot)
	}

	return nil
}

// NoneCodec stores payloads unchanged.
type NoneCodec struct{}

var _ Codec = NoneCodec{}

// Type returns CompressionNone.
func (NoneCodec) Type() format.CompressionType { return format.CompressionNone }

// Compress returns payload itself; the result shares memory with the input.
func (NoneCodec) Compress(payload []byte) ([]byte, error) {
	return payload, nil
}

// Decompress returns data itself when it holds exactly size bytes.
func (c NoneCodec) Decompress(data []byte, size int) ([]byte, error) {
	if err := checkRestored(c.Type(), len(data), size); err != nil {
		return nil, err
	}

	return data, nil
}
