package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/xerrors"
)

// ConnectionConfig holds configuration for RabbitMQ connections
type ConnectionConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"user"`
	Password string `yaml:"pass"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

// DefaultConnectionConfig returns a default configuration for local RabbitMQ
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Username: "guest",
		Password: "guest",
		Host:     "localhost",
		Port:     5672,
		VHost:    "/",
	}
}

// BuildURL constructs a RabbitMQ URL from the configuration
func (c *ConnectionConfig) BuildURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.Username, c.Password, c.Host, c.Port, vhost)
}

// Redacted is BuildURL without the password, for logs.
func (c *ConnectionConfig) Redacted() string {
	if c.URL != "" {
		if u, err := amqp.ParseURI(c.URL); err == nil {
			u.Password = "xxxxx"
			return u.String()
		}
		return "amqp://<unparseable>"
	}
	redacted := *c
	redacted.Password = "xxxxx"
	return redacted.BuildURL()
}

// CreateConnection creates a new RabbitMQ connection
func CreateConnection(config *ConnectionConfig) (*amqp.Connection, error) {
	conn, err := amqp.Dial(config.BuildURL())
	if err != nil {
		return nil, xerrors.Errorf("failed to create RabbitMQ connection to %s: %w", config.Redacted(), err)
	}
	return conn, nil
}

// WaitForConnection dials until RabbitMQ answers, maxRetries runs out or ctx
// is cancelled.
func WaitForConnection(ctx context.Context, config *ConnectionConfig, maxRetries int, retryInterval time.Duration) (*amqp.Connection, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := CreateConnection(config)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.LogWarn("Middleware", "RabbitMQ not ready (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	return nil, xerrors.Errorf("failed to connect to RabbitMQ after %d retries: %w", maxRetries, lastErr)
}

// CreateMiddlewareChannel opens a channel on conn with QoS settings
func CreateMiddlewareChannel(conn *amqp.Connection, prefetch int) (MiddlewareChannel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, xerrors.Errorf("failed to create channel: %w", err)
	}

	// prefetch bounds how many unacked shuffle chunks sit in a reducer's memory
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, xerrors.Errorf("failed to set QoS: %w", err)
	}

	return ch, nil
}
