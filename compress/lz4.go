package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/dvbsi/format"
)

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec compresses with the LZ4 block format. Blocks do not record their
// uncompressed length; the snapshot header supplies it.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// Type returns CompressionLZ4.
func (LZ4Codec) Type() format.CompressionType { return format.CompressionLZ4 }

// Compress encodes payload as one LZ4 block with a pooled compressor.
func (LZ4Codec) Compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(payload)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(payload, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 block: %w", err)
	}

	return dst[:n], nil
}

// Decompress decodes an LZ4 block into a buffer of exactly size bytes.
func (c LZ4Codec) Decompress(data []byte, size int) ([]byte, error) {
	if err := checkSize(c.Type(), size); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, checkRestored(c.Type(), 0, size)
	}

	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, fmt.Errorf("lz4 block: %w", err)
	}
	if err := checkRestored(c.Type(), n, size); err != nil {
		return nil, err
	}

	return buf, nil
}
