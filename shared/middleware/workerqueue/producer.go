package workerqueue

import (
	"context"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
)

const producerComponent = "Queue Producer"

// QueueMiddleware publishes to a single queue through the default exchange.
type QueueMiddleware struct {
	*middleware.MessageMiddlewareQueue
}

// NewMessageMiddlewareQueue wraps channel for queueName.
func NewMessageMiddlewareQueue(queueName string, channel middleware.MiddlewareChannel) *QueueMiddleware {
	return &QueueMiddleware{
		MessageMiddlewareQueue: &middleware.MessageMiddlewareQueue{
			QueueName: queueName,
			Channel:   channel,
		},
	}
}

// DeclareQueue declares the queue on the RabbitMQ server.
func (m *QueueMiddleware) DeclareQueue(
	durable bool,
	autoDelete bool,
	exclusive bool,
	noWait bool,
) middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return middleware.MessageMiddlewareDisconnectedError
	}

	_, err := m.Channel.QueueDeclare(
		m.QueueName,
		durable,
		autoDelete,
		exclusive,
		noWait,
		nil,
	)
	if err != nil {
		logger.LogError(producerComponent, "Failed to declare queue '%s': %v", m.QueueName, err)
		return middleware.MessageMiddlewareMessageError
	}

	logger.LogDebug(producerComponent, "Declared queue '%s' (durable: %t)", m.QueueName, durable)
	return 0
}

// newPublishing builds the message Send puts on the wire. Shuffle queues are
// transient and deleted with their job, so messages are transient too.
func newPublishing(messageID string, message []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    messageID,
		Body:         message,
	}
}

// Send publishes message as a binary payload.
func (m *QueueMiddleware) Send(ctx context.Context, messageID string, message []byte) middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return middleware.MessageMiddlewareDisconnectedError
	}

	err := m.Channel.PublishWithContext(
		ctx,
		"",
		m.QueueName,
		false,
		false,
		newPublishing(messageID, message),
	)
	if err != nil {
		logger.LogError(producerComponent, "Send to '%s' failed: %v", m.QueueName, err)
		return middleware.MessageMiddlewareMessageError
	}

	return 0
}

// Delete forces the remote deletion of the queue.
func (m *QueueMiddleware) Delete() middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return middleware.MessageMiddlewareDisconnectedError
	}

	_, err := m.Channel.QueueDelete(m.QueueName, false, false, false)
	if err != nil {
		logger.LogError(producerComponent, "Delete of '%s' failed: %v", m.QueueName, err)
		return middleware.MessageMiddlewareDeleteError
	}

	logger.LogDebug(producerComponent, "Queue '%s' deleted", m.QueueName)
	return 0
}

// Close disconnects the channel.
func (m *QueueMiddleware) Close() middleware.MessageMiddlewareError {
	if m.Channel == nil {
		return 0
	}

	if err := m.Channel.Close(); err != nil {
		logger.LogError(producerComponent, "Close error for queue '%s': %v", m.QueueName, err)
		return middleware.MessageMiddlewareCloseError
	}

	m.Channel = nil
	return 0
}
