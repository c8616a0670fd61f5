package chunk

import (
	"fmt"
)

// Pair is one grouping-stage output: the product id, the raw record line and
// the position of that line in the job input.
type Pair struct {
	Key   string
	Value string
	Seq   uint64
}

// Chunk is a batch of pairs bound for one reduce partition.
type Chunk struct {
	ID          string
	Partition   int
	ChunkNumber int
	IsLastChunk bool
	Pairs       []Pair
}

// NewChunk builds a chunk whose ID is derived from the sender and number so
// a redelivered copy carries the same ID.
func NewChunk(senderID string, partition, chunkNumber int, isLastChunk bool, pairs []Pair) *Chunk {
	return &Chunk{
		ID:          fmt.Sprintf("%s-p%05d-c%08d", senderID, partition, chunkNumber),
		Partition:   partition,
		ChunkNumber: chunkNumber,
		IsLastChunk: isLastChunk,
		Pairs:       pairs,
	}
}

// NewEOSChunk builds the end-of-stream marker for a partition.
func NewEOSChunk(senderID string, partition, chunkNumber int) *Chunk {
	return NewChunk(senderID, partition, chunkNumber, true, nil)
}
