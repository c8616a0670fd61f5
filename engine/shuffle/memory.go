package shuffle

import (
	"context"
	"sync"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	"golang.org/x/xerrors"
)

// MemoryTransport keeps every partition in process memory.
type MemoryTransport struct {
	mu         sync.Mutex
	partitions [][]chunk.Pair
	sendClosed bool
	done       chan struct{}
}

func NewMemoryTransport(numPartitions int) *MemoryTransport {
	return &MemoryTransport{
		partitions: make([][]chunk.Pair, numPartitions),
		done:       make(chan struct{}),
	}
}

func (t *MemoryTransport) Send(_ context.Context, partition int, pairs []chunk.Pair) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sendClosed {
		return ErrSendClosed
	}
	if partition < 0 || partition >= len(t.partitions) {
		return xerrors.Errorf("%w: %d", ErrUnknownPartition, partition)
	}
	t.partitions[partition] = append(t.partitions[partition], pairs...)
	return nil
}

func (t *MemoryTransport) CloseSend(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sendClosed {
		t.sendClosed = true
		close(t.done)
	}
	return nil
}

func (t *MemoryTransport) Receive(ctx context.Context, partition int) ([]chunk.Pair, error) {
	if partition < 0 || partition >= len(t.partitions) {
		return nil, xerrors.Errorf("%w: %d", ErrUnknownPartition, partition)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	pairs := t.partitions[partition]
	t.partitions[partition] = nil
	return pairs, nil
}

func (t *MemoryTransport) Close() error {
	return nil
}
