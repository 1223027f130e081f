package section

import (
	"testing"

	"github.com/arloliu/dvbsi/endian"
	"github.com/stretchr/testify/require"
)

func TestCRC32(t *testing.T) {
	t.Run("check value", func(t *testing.T) {
		require.Equal(t, uint32(0x0376e6e7), CRC32([]byte("123456789")))
	})

	t.Run("empty input", func(t *testing.T) {
		require.Equal(t, uint32(0xffffffff), CRC32(nil))
	})

	t.Run("appended CRC verifies to zero", func(t *testing.T) {
		buf := []byte{0x16, 0x75, 0xa8, 0xf0, 0x2e, 0x79, 0x9b, 0x47}
		buf = endian.GetBigEndianEngine().AppendUint32(buf, CRC32(buf))
		require.Equal(t, uint32(0), CRC32(buf))
		require.True(t, VerifyCRC(buf))

		buf[0] ^= 0x01
		require.False(t, VerifyCRC(buf))
	})

	t.Run("too short", func(t *testing.T) {
		require.False(t, VerifyCRC([]byte{0x00, 0x00}))
	})
}
