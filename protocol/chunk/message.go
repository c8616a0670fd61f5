package chunk

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

const (
	MessageType = 2

	HeaderLengthSize = 2
	TotalLengthSize  = 4
	MsgTypeIDSize    = 1

	IDLengthSize    = 2
	PartitionSize   = 4
	ChunkNumberSize = 8
	IsLastChunkSize = 1
	PairCountSize   = 4

	SeqSize         = 8
	FieldLengthSize = 4
)

var (
	ErrTruncated   = xerrors.New("truncated chunk message")
	ErrMessageType = xerrors.New("unexpected message type")
)

const commonHeaderSize = HeaderLengthSize + TotalLengthSize + MsgTypeIDSize

// SerializeChunk encodes c as
//
//	| header len (2) | total len (4) | msg type (1) | id len (2) | id |
//	| partition (4) | chunk number (8) | is last (1) | pair count (4) |
//	| pairs: seq (8) | key len (4) | key | value len (4) | value |
//
// with every integer big endian.
func SerializeChunk(c *Chunk) ([]byte, error) {
	if len(c.ID) > 0xFFFF {
		return nil, xerrors.Errorf("chunk id too long: %d bytes", len(c.ID))
	}
	headerLength := commonHeaderSize + IDLengthSize + len(c.ID) + PartitionSize + ChunkNumberSize + IsLastChunkSize + PairCountSize

	totalLength := headerLength
	for _, p := range c.Pairs {
		totalLength += SeqSize + FieldLengthSize + len(p.Key) + FieldLengthSize + len(p.Value)
	}
	if totalLength > 0x7FFFFFFF {
		return nil, xerrors.Errorf("chunk too large: %d bytes", totalLength)
	}

	buf := make([]byte, totalLength)
	offset := 0

	binary.BigEndian.PutUint16(buf[offset:], uint16(headerLength))
	offset += HeaderLengthSize

	binary.BigEndian.PutUint32(buf[offset:], uint32(totalLength))
	offset += TotalLengthSize

	buf[offset] = MessageType
	offset += MsgTypeIDSize

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(c.ID)))
	offset += IDLengthSize
	offset += copy(buf[offset:], c.ID)

	binary.BigEndian.PutUint32(buf[offset:], uint32(c.Partition))
	offset += PartitionSize

	binary.BigEndian.PutUint64(buf[offset:], uint64(c.ChunkNumber))
	offset += ChunkNumberSize

	if c.IsLastChunk {
		buf[offset] = 1
	}
	offset += IsLastChunkSize

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(c.Pairs)))
	offset += PairCountSize

	for _, p := range c.Pairs {
		binary.BigEndian.PutUint64(buf[offset:], p.Seq)
		offset += SeqSize

		binary.BigEndian.PutUint32(buf[offset:], uint32(len(p.Key)))
		offset += FieldLengthSize
		offset += copy(buf[offset:], p.Key)

		binary.BigEndian.PutUint32(buf[offset:], uint32(len(p.Value)))
		offset += FieldLengthSize
		offset += copy(buf[offset:], p.Value)
	}

	return buf, nil
}

type reader struct {
	data   []byte
	offset int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, xerrors.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.offset, len(r.data))
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) string32() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DeserializeChunk decodes a message produced by SerializeChunk.
func DeserializeChunk(data []byte) (*Chunk, error) {
	r := &reader{data: data}

	if _, err := r.uint16(); err != nil {
		return nil, err
	}
	total, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if int(total) != len(data) {
		return nil, xerrors.Errorf("%w: header says %d bytes, got %d", ErrTruncated, total, len(data))
	}
	msgType, err := r.take(MsgTypeIDSize)
	if err != nil {
		return nil, err
	}
	if msgType[0] != MessageType {
		return nil, xerrors.Errorf("%w: %d", ErrMessageType, msgType[0])
	}

	idLen, err := r.uint16()
	if err != nil {
		return nil, err
	}
	id, err := r.take(int(idLen))
	if err != nil {
		return nil, err
	}
	partition, err := r.uint32()
	if err != nil {
		return nil, err
	}
	chunkNumber, err := r.uint64()
	if err != nil {
		return nil, err
	}
	isLast, err := r.take(IsLastChunkSize)
	if err != nil {
		return nil, err
	}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}

	c := &Chunk{
		ID:          string(id),
		Partition:   int(partition),
		ChunkNumber: int(chunkNumber),
		IsLastChunk: isLast[0] == 1,
	}
	if count > 0 {
		// every pair needs at least its fixed-size fields
		if int(count) > (len(data)-r.offset)/(SeqSize+2*FieldLengthSize) {
			return nil, xerrors.Errorf("%w: %d pairs cannot fit", ErrTruncated, count)
		}
		c.Pairs = make([]Pair, 0, count)
	}
	for i := uint32(0); i < count; i++ {
		seq, err := r.uint64()
		if err != nil {
			return nil, err
		}
		key, err := r.string32()
		if err != nil {
			return nil, err
		}
		value, err := r.string32()
		if err != nil {
			return nil, err
		}
		c.Pairs = append(c.Pairs, Pair{Key: key, Value: value, Seq: seq})
	}
	return c, nil
}
