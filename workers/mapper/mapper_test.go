package mapper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKey(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: `{"product/productId":"B001","value":"5"}`, want: "B001"},
		{line: `{"value":"5"}`, want: "unknown"},
		{line: `{"product/productId":42}`, want: "42"},
		{line: `{"product/productId":null}`, want: "unknown"},
		{line: `not json at all`, want: "unknown"},
		{line: ``, want: "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractKey(tt.line), tt.line)
		assert.Equal(t, tt.want, ExtractKey(tt.line), "deterministic for %s", tt.line)
	}
}

func TestMap(t *testing.T) {
	c := counters.MustNewRegistry(nil)
	var keys, values []string
	emit := func(key, value string) error {
		keys = append(keys, key)
		values = append(values, value)
		return nil
	}

	lines := []string{
		`{"product/productId":"B001","value":"5"}`,
		"   ",
		`not json at all`,
		`{"review/score":"1"}`,
		`[1,2,3]`,
	}
	for _, line := range lines {
		require.NoError(t, Map(line, emit, c))
	}

	assert.Equal(t, []string{"B001", "unknown"}, keys)
	assert.Equal(t, []string{lines[0], lines[3]}, values)
	assert.Equal(t, int64(2), c.Get(counters.MapperGroup, counters.MalformedJSON))
}

func TestMapCountsNullProductIDAsMalformed(t *testing.T) {
	c := counters.MustNewRegistry(nil)
	emitted := 0
	emit := func(string, string) error {
		emitted++
		return nil
	}

	require.NoError(t, Map(`{"product/productId":null,"review/text":"great"}`, emit, c))
	assert.Zero(t, emitted)
	assert.Equal(t, int64(1), c.Get(counters.MapperGroup, counters.MalformedJSON))
}

func TestMapPropagatesEmitErrors(t *testing.T) {
	boom := errors.New("full")
	err := Map(`{"product/productId":"B001"}`, func(string, string) error { return boom }, counters.MustNewRegistry(nil))
	assert.ErrorIs(t, err, boom)
}

func TestPartition(t *testing.T) {
	assert.Equal(t, 0, Partition("B001", 1))
	assert.Equal(t, 0, Partition("B001", 0))

	seen := map[int]bool{}
	for _, key := range []string{"B001", "B002", "B003", "B004", "unknown", "", "A very long product identifier"} {
		p := Partition(key, 4)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 4)
		assert.Equal(t, p, Partition(key, 4))
		seen[p] = true
	}
	assert.Greater(t, len(seen), 1)
}

type recordingWriter struct {
	mu    sync.Mutex
	pairs map[int][]chunk.Pair
	err   error
}

func (r *recordingWriter) Send(_ context.Context, partition int, pairs []chunk.Pair) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pairs == nil {
		r.pairs = map[int][]chunk.Pair{}
	}
	r.pairs[partition] = append(r.pairs[partition], pairs...)
	return nil
}

func TestWorkerRoutesPairsByPartition(t *testing.T) {
	batches := make(chan []Line, 2)
	batches <- []Line{
		{Seq: 0, Text: `{"product/productId":"B001","v":"1"}`},
		{Seq: 1, Text: `garbage`},
		{Seq: 2, Text: `{"product/productId":"B002","v":"2"}`},
	}
	batches <- []Line{{Seq: 3, Text: `{"product/productId":"B001","v":"3"}`}}
	close(batches)

	out := &recordingWriter{}
	c := counters.MustNewRegistry(nil)
	require.NoError(t, NewWorker(1, 3, batches, out, c).Run(context.Background()))

	total := 0
	for partition, pairs := range out.pairs {
		for _, p := range pairs {
			assert.Equal(t, partition, Partition(p.Key, 3))
		}
		total += len(pairs)
	}
	assert.Equal(t, 3, total)

	b001 := out.pairs[Partition("B001", 3)]
	var seqs []uint64
	for _, p := range b001 {
		if p.Key == "B001" {
			seqs = append(seqs, p.Seq)
		}
	}
	assert.Equal(t, []uint64{0, 3}, seqs)
	assert.Equal(t, int64(1), c.Get(counters.MapperGroup, counters.MalformedJSON))
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWorker(1, 2, make(chan []Line), &recordingWriter{}, counters.MustNewRegistry(nil)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerFailsOnSendError(t *testing.T) {
	boom := errors.New("broker gone")
	batches := make(chan []Line, 1)
	batches <- []Line{{Seq: 0, Text: `{"product/productId":"B001"}`}}
	close(batches)

	err := NewWorker(1, 2, batches, &recordingWriter{err: boom}, counters.MustNewRegistry(nil)).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
