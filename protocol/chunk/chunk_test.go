package chunk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkID(t *testing.T) {
	c := NewChunk("mapper-1", 3, 42, false, nil)
	assert.Equal(t, "mapper-1-p00003-c00000042", c.ID)
	assert.Equal(t, 3, c.Partition)
	assert.Equal(t, 42, c.ChunkNumber)
	assert.False(t, c.IsLastChunk)

	eos := NewEOSChunk("mapper-1", 3, 43)
	assert.True(t, eos.IsLastChunk)
	assert.Empty(t, eos.Pairs)
}

func TestSerializeDeserializeChunk(t *testing.T) {
	original := NewChunk("job", 1, 7, false, []Pair{
		{Key: "B001", Value: `{"product/productId":"B001","value":"5"}`, Seq: 0},
		{Key: "", Value: `{"a":"tab\tinside"}`, Seq: 1 << 40},
		{Key: "unknown", Value: "", Seq: 9},
	})

	data, err := SerializeChunk(original)
	require.NoError(t, err)

	assert.Equal(t, uint32(len(data)), binary.BigEndian.Uint32(data[HeaderLengthSize:]))
	assert.Equal(t, byte(MessageType), data[HeaderLengthSize+TotalLengthSize])

	decoded, err := DeserializeChunk(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestSerializeEOSChunk(t *testing.T) {
	data, err := SerializeChunk(NewEOSChunk("job", 0, 12))
	require.NoError(t, err)

	decoded, err := DeserializeChunk(data)
	require.NoError(t, err)
	assert.True(t, decoded.IsLastChunk)
	assert.Nil(t, decoded.Pairs)
}

func TestDeserializeTruncated(t *testing.T) {
	data, err := SerializeChunk(NewChunk("job", 0, 1, false, []Pair{{Key: "k", Value: "v"}}))
	require.NoError(t, err)

	for _, n := range []int{0, 3, commonHeaderSize, len(data) - 1} {
		_, err := DeserializeChunk(data[:n])
		assert.ErrorIs(t, err, ErrTruncated, "length %d", n)
	}
}

func TestDeserializeWrongType(t *testing.T) {
	data, err := SerializeChunk(NewChunk("job", 0, 1, false, nil))
	require.NoError(t, err)
	data[HeaderLengthSize+TotalLengthSize] = 9

	_, err = DeserializeChunk(data)
	assert.ErrorIs(t, err, ErrMessageType)
}

func TestDeserializeLyingPairCount(t *testing.T) {
	data, err := SerializeChunk(NewChunk("job", 0, 1, false, nil))
	require.NoError(t, err)
	binary.BigEndian.PutUint32(data[len(data)-PairCountSize:], 1_000_000)

	_, err = DeserializeChunk(data)
	assert.ErrorIs(t, err, ErrTruncated)
}
