//go:build cgo && gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"

	"github.com/arloliu/dvbsi/format"
)

const zstdLevel = 9

// ZstdCodec compresses with Zstandard. This build links libzstd through
// gozstd.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// Type returns CompressionZstd.
func (ZstdCodec) Type() format.CompressionType { return format.CompressionZstd }

// Compress encodes payload as one Zstandard frame.
func (ZstdCodec) Compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, payload, zstdLevel), nil
}

// Decompress decodes a Zstandard frame of size bytes.
func (c ZstdCodec) Decompress(data []byte, size int) ([]byte, error) {
	if err := checkSize(c.Type(), size); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, checkRestored(c.Type(), 0, size)
	}

	payload, err := gozstd.Decompress(make([]byte, 0, size), data)
	if err != nil {
		return nil, fmt.Errorf("zstd frame: %w", err)
	}
	if err := checkRestored(c.Type(), len(payload), size); err != nil {
		return nil, err
	}

	return payload, nil
}
