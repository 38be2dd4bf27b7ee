package rpcx

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc handles one command. The returned value is marshalled into
// the response envelope; a returned *Error travels typed through the
// boundary, any other error is reported as a 500 without leaking its text.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Server consumes a service's command queue and dispatches by command
// name. All handlers must be registered before Serve is called.
type Server struct {
	conn     *Conn
	queue    string
	logger   *slog.Logger
	handlers map[string]HandlerFunc
}

func NewServer(conn *Conn, queue string, logger *slog.Logger) *Server {
	return &Server{
		conn:     conn,
		queue:    queue,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers a handler for cmd.
func (s *Server) Handle(cmd string, fn HandlerFunc) {
	s.handlers[cmd] = fn
}

// Serve declares the queue and consumes it until ctx is cancelled. Each
// delivery is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(s.queue, "", true, false, false, false, nil)
	if err != nil {
		return err
	}

	s.logger.Info("rpc server listening", "queue", s.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			go s.handle(ctx, ch, d)
		}
	}
}

func (s *Server) handle(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	fn, ok := s.handlers[d.Type]
	if !ok {
		s.logger.Warn("unknown rpc command", "cmd", d.Type)
		s.reply(ctx, ch, d, envelope{Error: mustMarshalError(CodeNotFound, "unknown command")})
		return
	}

	result, err := fn(ctx, d.Body)

	// Fire-and-forget commands have no reply address; errors are only logged.
	if err != nil {
		rerr := AsError(err)
		if rerr.Code == CodeInternal {
			s.logger.Error("rpc handler failed", "cmd", d.Type, "error", err)
		}
		s.reply(ctx, ch, d, envelope{Error: mustMarshal(rerr)})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("rpc response marshal failed", "cmd", d.Type, "error", err)
		s.reply(ctx, ch, d, envelope{Error: mustMarshalError(CodeInternal, "Internal Server Error")})
		return
	}

	s.reply(ctx, ch, d, envelope{Data: data})
}

func (s *Server) reply(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, env envelope) {
	if d.ReplyTo == "" {
		return
	}

	body, _ := json.Marshal(env)
	err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		s.logger.Error("rpc reply failed", "cmd", d.Type, "error", err)
	}
}

func mustMarshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
