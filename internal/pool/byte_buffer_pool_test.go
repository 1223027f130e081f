package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBuffer_Write(t *testing.T) {
	bb := NewByteBuffer(4)

	n, err := bb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), bb.Bytes())
	assert.GreaterOrEqual(t, bb.Cap(), 5)

	bb.MustWrite([]byte(" world"))
	assert.Equal(t, "hello world", string(bb.Bytes()))

	var out bytes.Buffer
	written, err := bb.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(11), written)
	assert.Equal(t, "hello world", out.String())
}

func TestByteBuffer_Discard(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte{1, 2, 3, 4, 5})

	bb.Discard(2)
	assert.Equal(t, []byte{3, 4, 5}, bb.Bytes())

	bb.Discard(0)
	assert.Equal(t, 3, bb.Len())

	bb.Discard(10)
	assert.Equal(t, 0, bb.Len())
	assert.Equal(t, 16, bb.Cap(), "Discard should keep the allocation")
}

func TestByteBuffer_Grow(t *testing.T) {
	t.Run("sufficient capacity", func(t *testing.T) {
		bb := NewByteBuffer(64)
		bb.Grow(32)
		assert.Equal(t, 64, bb.Cap())
	})

	t.Run("small buffer grows by default size", func(t *testing.T) {
		bb := NewByteBuffer(8)
		bb.MustWrite([]byte("abcdefgh"))
		bb.Grow(1)
		assert.Equal(t, 8+SectionBufferDefaultSize, bb.Cap())
		assert.Equal(t, []byte("abcdefgh"), bb.Bytes())
	})

	t.Run("large request", func(t *testing.T) {
		bb := NewByteBuffer(8)
		bb.Grow(100000)
		assert.GreaterOrEqual(t, bb.Cap(), 100000)
	})

	t.Run("large buffer grows by quarter", func(t *testing.T) {
		size := 8 * SectionBufferDefaultSize
		bb := NewByteBuffer(size)
		bb.B = bb.B[:size]
		bb.Grow(1)
		assert.Equal(t, size+size/4, bb.Cap())
	})
}

func TestByteBufferPool(t *testing.T) {
	p := NewByteBufferPool(32, 64)

	bb := p.Get()
	require.NotNil(t, bb)
	assert.Equal(t, 0, bb.Len())
	bb.MustWrite([]byte("data"))
	p.Put(bb)

	again := p.Get()
	assert.Equal(t, 0, again.Len(), "pooled buffers come back empty")

	// Oversized and nil buffers are not retained; Put must not panic.
	p.Put(NewByteBuffer(128))
	p.Put(nil)
}

func TestDefaultPools(t *testing.T) {
	sb := GetSectionBuffer()
	assert.GreaterOrEqual(t, sb.Cap(), 4096)
	PutSectionBuffer(sb)

	snap := GetSnapshotBuffer()
	assert.GreaterOrEqual(t, snap.Cap(), SnapshotBufferDefaultSize)
	PutSnapshotBuffer(snap)
}
