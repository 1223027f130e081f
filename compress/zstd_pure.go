//go:build !cgo || !gozstd

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/dvbsi/format"
)

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxPayloadSize),
		)
		if err != nil {
			panic(fmt.Sprintf("create zstd decoder: %v", err))
		}

		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderCRC(false), // snapshots carry their own checksum
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			panic(fmt.Sprintf("create zstd encoder: %v", err))
		}

		return encoder
	},
}

// ZstdCodec compresses with Zstandard. This build uses the pure Go
// klauspost/compress implementation with pooled encoders and decoders.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// Type returns CompressionZstd.
func (ZstdCodec) Type() format.CompressionType { return format.CompressionZstd }

// Compress encodes payload as one Zstandard frame.
func (ZstdCodec) Compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	encoder, _ := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)

	return encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2)), nil
}

// Decompress decodes a Zstandard frame of size bytes. A decoder that failed
// on corrupt input is still reusable.
func (c ZstdCodec) Decompress(data []byte, size int) ([]byte, error) {
	if err := checkSize(c.Type(), size); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, checkRestored(c.Type(), 0, size)
	}

	decoder, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	payload, err := decoder.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd frame: %w", err)
	}
	if err := checkRestored(c.Type(), len(payload), size); err != nil {
		return nil, err
	}

	return payload, nil
}
