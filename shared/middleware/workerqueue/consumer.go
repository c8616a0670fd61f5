package workerqueue

import (
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware"
)

const consumerComponent = "Queue Consumer"

// QueueConsumer reads one queue with manual acknowledgements.
type QueueConsumer struct {
	*middleware.MessageMiddlewareQueue
}

// NewQueueConsumer wraps channel for queueName.
func NewQueueConsumer(queueName string, channel middleware.MiddlewareChannel) *QueueConsumer {
	return &QueueConsumer{
		MessageMiddlewareQueue: &middleware.MessageMiddlewareQueue{
			QueueName: queueName,
			Channel:   channel,
		},
	}
}

// StartConsuming registers the consumer and runs onMessageCallback in its
// own goroutine. The callback reports its result on done.
func (m *QueueConsumer) StartConsuming(
	onMessageCallback middleware.OnMessageCallback,
	done chan error,
) middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return middleware.MessageMiddlewareDisconnectedError
	}

	deliveries, err := m.Channel.Consume(
		m.QueueName,
		m.ConsumerTag(),
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		logger.LogError(consumerComponent, "Failed to start consuming for queue '%s': %v", m.QueueName, err)
		return middleware.MessageMiddlewareMessageError
	}

	m.ConsumeChannel = deliveries

	go func() {
		logger.LogDebug(consumerComponent, "Starting consumer for queue '%s'", m.QueueName)
		onMessageCallback(deliveries, done)
	}()

	return 0
}

// StopConsuming cancels the consumer; the delivery channel is closed by the
// broker client afterwards.
func (m *QueueConsumer) StopConsuming() middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return middleware.MessageMiddlewareDisconnectedError
	}

	if m.ConsumeChannel == nil {
		return 0
	}

	if err := m.Channel.Cancel(m.ConsumerTag(), false); err != nil {
		logger.LogError(consumerComponent, "Failed to cancel consumer for queue '%s': %v", m.QueueName, err)
		return middleware.MessageMiddlewareMessageError
	}

	m.ConsumeChannel = nil
	logger.LogDebug(consumerComponent, "Consumer halted for queue '%s'", m.QueueName)
	return 0
}

// Close stops consuming and closes the channel.
func (m *QueueConsumer) Close() middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return 0
	}

	if m.ConsumeChannel != nil {
		if stopErr := m.StopConsuming(); stopErr != 0 {
			logger.LogError(consumerComponent, "Error stopping consumption during close for queue '%s': %v", m.QueueName, stopErr)
		}
	}

	if err := m.Channel.Close(); err != nil {
		logger.LogError(consumerComponent, "Close error for queue '%s': %v", m.QueueName, err)
		return middleware.MessageMiddlewareCloseError
	}

	m.Channel = nil
	return 0
}
