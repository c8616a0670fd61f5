package shuffle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	messagemanager "github.com/KaiJun-SIT/Big-Data-amazon/shared/message_manager"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupPairsOrdersKeysAndValues(t *testing.T) {
	pairs := []chunk.Pair{
		{Key: "B002", Value: "b2-late", Seq: 9},
		{Key: "B001", Value: "b1-late", Seq: 7},
		{Key: "unknown", Value: "u", Seq: 3},
		{Key: "B002", Value: "b2-early", Seq: 1},
		{Key: "B001", Value: "b1-early", Seq: 0},
	}

	groups := GroupPairs(pairs)

	assert.Equal(t, []Group{
		{Key: "B001", Values: []string{"b1-early", "b1-late"}},
		{Key: "B002", Values: []string{"b2-early", "b2-late"}},
		{Key: "unknown", Values: []string{"u"}},
	}, groups)
	assert.Empty(t, GroupPairs(nil))
}

func TestMemoryTransport(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTransport(2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, tr.Send(ctx, i%2, []chunk.Pair{{Key: "k", Value: "v", Seq: uint64(i)}}))
		}(i)
	}
	wg.Wait()

	assert.ErrorIs(t, tr.Send(ctx, 5, nil), ErrUnknownPartition)
	require.NoError(t, tr.CloseSend(ctx))
	require.NoError(t, tr.CloseSend(ctx))
	assert.ErrorIs(t, tr.Send(ctx, 0, nil), ErrSendClosed)

	p0, err := tr.Receive(ctx, 0)
	require.NoError(t, err)
	p1, err := tr.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, p0, 2)
	assert.Len(t, p1, 2)
	require.NoError(t, tr.Close())
}

func TestMemoryTransportReceiveWaitsForCloseSend(t *testing.T) {
	tr := NewMemoryTransport(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// fakeBroker stands in for RabbitMQ: every queue is a buffered channel of
// deliveries acknowledged back to the broker.
type fakeBroker struct {
	mu        sync.Mutex
	queues    map[string]chan amqp.Delivery
	deleted   []string
	redeliver bool
	acks      int
	nacks     int
	tag       uint64
	closed    bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{queues: map[string]chan amqp.Delivery{}}
}

func (b *fakeBroker) queue(name string) chan amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan amqp.Delivery, 1024)
		b.queues[name] = q
	}
	return q
}

func (b *fakeBroker) publish(name, id string, body []byte) {
	q := b.queue(name)
	b.mu.Lock()
	b.tag++
	d := amqp.Delivery{Acknowledger: b, DeliveryTag: b.tag, MessageId: id, Body: body}
	b.mu.Unlock()
	q <- d
	if b.redeliver {
		d.Redelivered = true
		q <- d
	}
}

func (b *fakeBroker) Ack(uint64, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks++
	return nil
}

func (b *fakeBroker) Nack(uint64, bool, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nacks++
	return nil
}

func (b *fakeBroker) Reject(uint64, bool) error { return b.Nack(0, false, false) }

func (b *fakeBroker) NewProducer(name string) (QueueProducer, error) {
	return &fakeProducer{broker: b, name: name}, nil
}

func (b *fakeBroker) NewConsumer(name string) (QueueConsumer, error) {
	return &fakeConsumer{broker: b, name: name}, nil
}

func (b *fakeBroker) Close() error {
	b.closed = true
	return nil
}

type fakeProducer struct {
	broker *fakeBroker
	name   string
}

func (p *fakeProducer) DeclareQueue(bool, bool, bool, bool) middleware.MessageMiddlewareError {
	p.broker.queue(p.name)
	return 0
}

func (p *fakeProducer) Send(_ context.Context, id string, body []byte) middleware.MessageMiddlewareError {
	p.broker.publish(p.name, id, body)
	return 0
}

func (p *fakeProducer) Delete() middleware.MessageMiddlewareError {
	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()
	p.broker.deleted = append(p.broker.deleted, p.name)
	return 0
}

func (p *fakeProducer) Close() middleware.MessageMiddlewareError { return 0 }

type fakeConsumer struct {
	broker *fakeBroker
	name   string
}

func (c *fakeConsumer) StartConsuming(onMessage middleware.OnMessageCallback, done chan error) middleware.MessageMiddlewareError {
	go onMessage(c.broker.queue(c.name), done)
	return 0
}

func (c *fakeConsumer) Close() middleware.MessageMiddlewareError { return 0 }

func TestQueueName(t *testing.T) {
	assert.Equal(t, "job-1.shuffle.3", QueueName("job-1", 3))
}

func TestRabbitTransportRoundTrip(t *testing.T) {
	ctx := context.Background()
	broker := newFakeBroker()
	broker.redeliver = true
	processed := messagemanager.NewMessageManager()

	tr, err := NewRabbitTransportWithFactory(broker, "job-1", 2, processed)
	require.NoError(t, err)

	require.NoError(t, tr.Send(ctx, 0, []chunk.Pair{{Key: "B001", Value: "a", Seq: 0}}))
	require.NoError(t, tr.Send(ctx, 1, []chunk.Pair{{Key: "B002", Value: "b", Seq: 1}}))
	require.NoError(t, tr.Send(ctx, 0, []chunk.Pair{{Key: "B001", Value: "c", Seq: 2}}))
	require.NoError(t, tr.CloseSend(ctx))
	assert.ErrorIs(t, tr.Send(ctx, 0, nil), ErrSendClosed)

	p0, err := tr.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []chunk.Pair{{Key: "B001", Value: "a", Seq: 0}, {Key: "B001", Value: "c", Seq: 2}}, p0)

	p1, err := tr.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []chunk.Pair{{Key: "B002", Value: "b", Seq: 1}}, p1)

	assert.Equal(t, 5, processed.GetProcessedCount())
	require.NoError(t, tr.Close())
	assert.Zero(t, processed.GetProcessedCount())
	assert.ElementsMatch(t, []string{"job-1.shuffle.0", "job-1.shuffle.1"}, broker.deleted)
	assert.True(t, broker.closed)
	// duplicates of data chunks are acked too; the duplicate EOS is never read
	assert.Equal(t, 8, broker.acks)
}

func TestRabbitTransportRejectsCorruptChunks(t *testing.T) {
	broker := newFakeBroker()
	tr, err := NewRabbitTransportWithFactory(broker, "job-2", 1, messagemanager.NewMessageManager())
	require.NoError(t, err)

	broker.publish(QueueName("job-2", 0), "bogus", []byte{0, 1, 2})

	_, err = tr.Receive(context.Background(), 0)
	assert.ErrorIs(t, err, chunk.ErrTruncated)
	assert.Equal(t, 1, broker.nacks)
}

func TestRabbitTransportReceiveHonoursContext(t *testing.T) {
	broker := newFakeBroker()
	tr, err := NewRabbitTransportWithFactory(broker, "job-3", 1, messagemanager.NewMessageManager())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = tr.Receive(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = tr.Receive(ctx, 4)
	assert.ErrorIs(t, err, ErrUnknownPartition)
}
