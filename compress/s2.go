package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/dvbsi/format"
)

// S2Codec compresses with the "better" S2 encoder. Descriptor loops and
// event texts repeat at short distances, which the better mode picks up for
// little extra encoding time.
type S2Codec struct{}

var _ Codec = S2Codec{}

// Type returns CompressionS2.
func (S2Codec) Type() format.CompressionType { return format.CompressionS2 }

// Compress encodes payload as an S2 block.
func (S2Codec) Compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	return s2.EncodeBetter(nil, payload), nil
}

// Decompress decodes an S2 block after checking its embedded length against size.
func (c S2Codec) Decompress(data []byte, size int) ([]byte, error) {
	if err := checkSize(c.Type(), size); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, checkRestored(c.Type(), 0, size)
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("s2 block: %w", err)
	}
	if err := checkRestored(c.Type(), n, size); err != nil {
		return nil, err
	}

	return s2.Decode(make([]byte, size), data)
}
