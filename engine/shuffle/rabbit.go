package shuffle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	messagemanager "github.com/KaiJun-SIT/Big-Data-amazon/shared/message_manager"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware/workerqueue"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/xerrors"
)

const (
	rabbitComponent = "Rabbit Shuffle"

	connectRetries       = 5
	connectRetryInterval = 2 * time.Second
	consumerPrefetch     = 16
)

var ErrStreamClosed = xerrors.New("shuffle: queue closed before end of stream")

// QueueProducer publishes to one shuffle queue.
type QueueProducer interface {
	DeclareQueue(durable, autoDelete, exclusive, noWait bool) middleware.MessageMiddlewareError
	Send(ctx context.Context, messageID string, body []byte) middleware.MessageMiddlewareError
	Delete() middleware.MessageMiddlewareError
	Close() middleware.MessageMiddlewareError
}

// QueueConsumer reads one shuffle queue.
type QueueConsumer interface {
	StartConsuming(onMessage middleware.OnMessageCallback, done chan error) middleware.MessageMiddlewareError
	Close() middleware.MessageMiddlewareError
}

// QueueFactory opens producers and consumers for named queues.
type QueueFactory interface {
	NewProducer(queueName string) (QueueProducer, error)
	NewConsumer(queueName string) (QueueConsumer, error)
	Close() error
}

// QueueName is the shuffle queue of one partition of one job.
func QueueName(jobID string, partition int) string {
	return fmt.Sprintf("%s.shuffle.%d", jobID, partition)
}

type amqpQueueFactory struct {
	conn *amqp.Connection
}

func (f *amqpQueueFactory) NewProducer(queueName string) (QueueProducer, error) {
	ch, err := middleware.CreateMiddlewareChannel(f.conn, 1)
	if err != nil {
		return nil, err
	}
	return workerqueue.NewMessageMiddlewareQueue(queueName, ch), nil
}

func (f *amqpQueueFactory) NewConsumer(queueName string) (QueueConsumer, error) {
	ch, err := middleware.CreateMiddlewareChannel(f.conn, consumerPrefetch)
	if err != nil {
		return nil, err
	}
	return workerqueue.NewQueueConsumer(queueName, ch), nil
}

func (f *amqpQueueFactory) Close() error {
	return f.conn.Close()
}

type partitionProducer struct {
	mu          sync.Mutex
	producer    QueueProducer
	nextChunk   int
	closedForTx bool
}

// RabbitTransport ships every partition through its own RabbitMQ queue as
// serialized chunks terminated by an end-of-stream chunk.
type RabbitTransport struct {
	jobID     string
	factory   QueueFactory
	producers []*partitionProducer
	processed *messagemanager.MessageManager
}

// NewRabbitTransport connects to RabbitMQ and declares one queue per partition.
func NewRabbitTransport(ctx context.Context, cfg *middleware.ConnectionConfig, jobID string, numPartitions int) (*RabbitTransport, error) {
	conn, err := middleware.WaitForConnection(ctx, cfg, connectRetries, connectRetryInterval)
	if err != nil {
		return nil, err
	}
	logger.LogInfo(rabbitComponent, "Connected to %s", cfg.Redacted())

	t, err := NewRabbitTransportWithFactory(&amqpQueueFactory{conn: conn}, jobID, numPartitions, messagemanager.NewMessageManager())
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewRabbitTransportWithFactory builds the transport on top of factory.
func NewRabbitTransportWithFactory(factory QueueFactory, jobID string, numPartitions int, processed *messagemanager.MessageManager) (*RabbitTransport, error) {
	t := &RabbitTransport{
		jobID:     jobID,
		factory:   factory,
		processed: processed,
	}
	for p := 0; p < numPartitions; p++ {
		name := QueueName(jobID, p)
		producer, err := factory.NewProducer(name)
		if err != nil {
			t.closeProducers()
			return nil, xerrors.Errorf("failed to open producer for %s: %w", name, err)
		}
		if status := producer.DeclareQueue(false, false, false, false); status != 0 {
			producer.Close()
			t.closeProducers()
			return nil, xerrors.Errorf("failed to declare %s: %v", name, status)
		}
		t.producers = append(t.producers, &partitionProducer{producer: producer})
	}
	return t, nil
}

func (t *RabbitTransport) producer(partition int) (*partitionProducer, error) {
	if partition < 0 || partition >= len(t.producers) {
		return nil, xerrors.Errorf("%w: %d", ErrUnknownPartition, partition)
	}
	return t.producers[partition], nil
}

func (t *RabbitTransport) publish(ctx context.Context, pp *partitionProducer, c *chunk.Chunk) error {
	data, err := chunk.SerializeChunk(c)
	if err != nil {
		return err
	}
	if status := pp.producer.Send(ctx, c.ID, data); status != 0 {
		return xerrors.Errorf("failed to publish chunk %s: %v", c.ID, status)
	}
	return nil
}

func (t *RabbitTransport) Send(ctx context.Context, partition int, pairs []chunk.Pair) error {
	pp, err := t.producer(partition)
	if err != nil {
		return err
	}

	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closedForTx {
		return ErrSendClosed
	}
	c := chunk.NewChunk(t.jobID, partition, pp.nextChunk, false, pairs)
	if err := t.publish(ctx, pp, c); err != nil {
		return err
	}
	pp.nextChunk++
	return nil
}

// CloseSend publishes the end-of-stream chunk of every partition.
func (t *RabbitTransport) CloseSend(ctx context.Context) error {
	for partition, pp := range t.producers {
		pp.mu.Lock()
		if !pp.closedForTx {
			if err := t.publish(ctx, pp, chunk.NewEOSChunk(t.jobID, partition, pp.nextChunk)); err != nil {
				pp.mu.Unlock()
				return err
			}
			pp.nextChunk++
			pp.closedForTx = true
		}
		pp.mu.Unlock()
	}
	logger.LogDebug(rabbitComponent, "End of stream sent to %d partitions of job %s", len(t.producers), t.jobID)
	return nil
}

// Receive drains the partition queue up to its end-of-stream chunk.
// Redelivered chunks are acknowledged and skipped.
func (t *RabbitTransport) Receive(ctx context.Context, partition int) ([]chunk.Pair, error) {
	if _, err := t.producer(partition); err != nil {
		return nil, err
	}
	name := QueueName(t.jobID, partition)
	consumer, err := t.factory.NewConsumer(name)
	if err != nil {
		return nil, xerrors.Errorf("failed to open consumer for %s: %w", name, err)
	}
	defer consumer.Close()

	var pairs []chunk.Pair
	done := make(chan error, 1)

	onMessage := func(deliveries middleware.ConsumeChannel, done chan error) {
		for d := range deliveries {
			c, err := chunk.DeserializeChunk(d.Body)
			if err != nil {
				d.Nack(false, false)
				done <- xerrors.Errorf("bad chunk on %s: %w", name, err)
				return
			}

			if t.processed.IsProcessed(t.jobID, c.ID) {
				logger.LogDebug(rabbitComponent, "Skipping redelivered chunk %s", c.ID)
				d.Ack(false)
				continue
			}

			pairs = append(pairs, c.Pairs...)
			t.processed.MarkProcessed(t.jobID, c.ID)
			if err := d.Ack(false); err != nil {
				done <- xerrors.Errorf("failed to ack chunk %s: %w", c.ID, err)
				return
			}
			if c.IsLastChunk {
				done <- nil
				return
			}
		}
		done <- ErrStreamClosed
	}

	if status := consumer.StartConsuming(onMessage, done); status != 0 {
		return nil, xerrors.Errorf("failed to consume %s: %v", name, status)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, err
		}
	}
	logger.LogDebug(rabbitComponent, "Partition %d received %d pairs", partition, len(pairs))
	return pairs, nil
}

func (t *RabbitTransport) closeProducers() {
	for _, pp := range t.producers {
		pp.producer.Close()
	}
}

// Close deletes the job's queues and releases the connection.
func (t *RabbitTransport) Close() error {
	for _, pp := range t.producers {
		if status := pp.producer.Delete(); status != 0 {
			logger.LogWarn(rabbitComponent, "Could not delete shuffle queue: %v", status)
		}
	}
	t.closeProducers()
	t.processed.CleanJob(t.jobID)
	return t.factory.Close()
}
