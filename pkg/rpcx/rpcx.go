// Package rpcx is the request/response RPC layer the services use to talk
// to each other over RabbitMQ. Each service owns one command queue;
// requests carry a command name in the message Type field and are
// correlated to replies through CorrelationId and a per-client reply
// queue. Bodies are JSON; responses are wrapped in an envelope carrying
// either data or a typed error.
package rpcx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultCallTimeout bounds every outbound call that has no earlier
// context deadline.
const DefaultCallTimeout = 3 * time.Second

// envelope is the wire shape of every RPC response.
type envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Conn is an established broker connection shared by the clients and
// servers of one process.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker and opens a channel. The connection is
// verified before returning so the caller can refuse to serve traffic
// without a ready channel.
func Dial(url string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rpcx: dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rpcx: open channel: %w", err)
	}

	return &Conn{conn: conn, ch: ch}, nil
}

// Channel opens a dedicated channel on the shared connection. Servers and
// clients each consume on their own channel.
func (c *Conn) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rpcx: open channel: %w", err)
	}
	return ch, nil
}

// Ping verifies the connection is still usable.
func (c *Conn) Ping(ctx context.Context) error {
	if c.conn.IsClosed() {
		return fmt.Errorf("rpcx: connection closed")
	}
	return ctx.Err()
}

func (c *Conn) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}
