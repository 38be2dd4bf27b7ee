package rpcx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Client issues commands against one remote service queue. It declares an
// exclusive reply queue and matches responses to in-flight calls by
// correlation id. Safe for concurrent use.
type Client struct {
	ch         *amqp.Channel
	queue      string // target service queue
	replyQueue string

	mu      sync.Mutex
	pending map[string]chan envelope
	closed  bool
}

// NewClient binds a client to the named service queue. The reply consumer
// is started immediately, so a returned client is ready for traffic.
func NewClient(conn *Conn, queue string) (*Client, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	reply, err := ch.QueueDeclare(
		"",    // broker-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rpcx: declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rpcx: consume reply queue: %w", err)
	}

	c := &Client{
		ch:         ch,
		queue:      queue,
		replyQueue: reply.Name,
		pending:    make(map[string]chan envelope),
	}
	go c.dispatch(deliveries)

	return c, nil
}

func (c *Client) dispatch(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var env envelope
		if err := json.Unmarshal(d.Body, &env); err != nil {
			env = envelope{Error: mustMarshalError(CodeInternal, "malformed rpc response")}
		}

		c.mu.Lock()
		ch, ok := c.pending[d.CorrelationId]
		delete(c.pending, d.CorrelationId)
		c.mu.Unlock()

		if ok {
			ch <- env
		}
	}

	// Consumer channel closed: fail everything still in flight.
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- envelope{Error: mustMarshalError(CodeInternal, "rpc connection lost")}
	}
	c.mu.Unlock()
}

// Call sends cmd with payload to the service queue and decodes the reply
// into out (which may be nil). The wait is bounded by the context deadline
// or DefaultCallTimeout, whichever comes first; on expiry a 504-class
// error is returned and no retry is attempted.
func (c *Client) Call(ctx context.Context, cmd string, payload, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rpcx: marshal %s payload: %w", cmd, err)
	}

	corrID := uuid.NewString()
	replyCh := make(chan envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return NewError(CodeInternal, "rpc connection lost")
	}
	c.pending[corrID] = replyCh
	c.mu.Unlock()

	err = c.ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Type:          cmd,
		CorrelationId: corrID,
		ReplyTo:       c.replyQueue,
		Body:          body,
	})
	if err != nil {
		c.forget(corrID)
		return fmt.Errorf("rpcx: publish %s: %w", cmd, err)
	}

	select {
	case <-ctx.Done():
		c.forget(corrID)
		return NewError(CodeTimeout, fmt.Sprintf("rpc call %s timed out", cmd))
	case env := <-replyCh:
		if env.Error != nil {
			return DecodeError(env.Error)
		}
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("rpcx: decode %s response: %w", cmd, err)
		}
		return nil
	}
}

// Notify publishes cmd fire-and-forget: no reply queue, no correlation,
// and failures are returned for the caller to log and ignore.
func (c *Client) Notify(ctx context.Context, cmd string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rpcx: marshal %s payload: %w", cmd, err)
	}

	return c.ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Type:        cmd,
		Body:        body,
	})
}

func (c *Client) forget(corrID string) {
	c.mu.Lock()
	delete(c.pending, corrID)
	c.mu.Unlock()
}

func (c *Client) Close() error { return c.ch.Close() }

func mustMarshalError(code int, msg string) json.RawMessage {
	raw, _ := json.Marshal(Error{Code: code, Message: msg})
	return raw
}
