package middleware

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageMiddlewareError is the status returned by queue operations. Zero
// means success.
type MessageMiddlewareError int

const (
	MessageMiddlewareMessageError MessageMiddlewareError = iota + 1
	MessageMiddlewareDisconnectedError
	MessageMiddlewareCloseError
	MessageMiddlewareDeleteError
)

func (e MessageMiddlewareError) String() string {
	switch e {
	case 0:
		return "ok"
	case MessageMiddlewareMessageError:
		return "message error"
	case MessageMiddlewareDisconnectedError:
		return "disconnected"
	case MessageMiddlewareCloseError:
		return "close error"
	case MessageMiddlewareDeleteError:
		return "delete error"
	default:
		return "unknown middleware error"
	}
}

type MiddlewareChannel = *amqp.Channel

type ConsumeChannel = <-chan amqp.Delivery

// OnMessageCallback drains deliveries and reports the outcome on done.
type OnMessageCallback func(deliveries ConsumeChannel, done chan error)

// MessageMiddlewareQueue is a named queue bound to one AMQP channel.
type MessageMiddlewareQueue struct {
	QueueName      string
	Channel        MiddlewareChannel
	ConsumeChannel ConsumeChannel
	consumerTag    string
}

// ConsumerTag returns the tag used when consuming from the queue.
func (q *MessageMiddlewareQueue) ConsumerTag() string {
	if q.consumerTag == "" {
		q.consumerTag = q.QueueName + ".consumer"
	}
	return q.consumerTag
}
