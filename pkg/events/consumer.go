package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Consumer reads school events from a RabbitMQ topic exchange.
type Consumer struct {
	cfg    Config
	router *Router
	logger *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger for the Consumer.
func WithConsumerLogger(log *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewConsumer creates a consumer dispatching to handler.
func NewConsumer(cfg Config, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.router = NewRouter(handler, c.logger)
	return c
}

// Run consumes until ctx is cancelled, reconnecting after broker failures.
// It returns nil right away when the consumer is disabled.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.cfg.Enabled() {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Event consumption disabled", logger.Error(ErrConsumerDisabled))
		return nil
	}

	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.LogAttrs(ctx, slog.LevelError, "Event consumer stopped, reconnecting",
			logger.Error(err),
			logger.Duration(c.cfg.ReconnectInterval),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// consumeOnce runs one connection lifetime.
func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp091.Dial(c.cfg.URL)
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(ErrConnectFailed, err)
	}
	defer func() { _ = ch.Close() }()

	if err := c.declare(ch); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx,
		c.cfg.Queue,
		c.cfg.ConsumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Join(ErrTopologyFailed, err)
	}

	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	c.logger.LogAttrs(ctx, slog.LevelInfo, "Event consumer started",
		slog.String("exchange", c.cfg.Exchange),
		slog.String("queue", c.cfg.Queue),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) declare(ch *amqp091.Channel) error {
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return errors.Join(ErrTopologyFailed, err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Join(ErrTopologyFailed, fmt.Errorf("exchange %s: %w", c.cfg.Exchange, err))
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return errors.Join(ErrTopologyFailed, fmt.Errorf("queue %s: %w", c.cfg.Queue, err))
	}
	for _, key := range []string{EventKeyPattern, SendKey} {
		if err := ch.QueueBind(c.cfg.Queue, key, c.cfg.Exchange, false, nil); err != nil {
			return errors.Join(ErrTopologyFailed, fmt.Errorf("bind %s: %w", key, err))
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	msgCtx := ctx
	if c.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		msgCtx, cancel = context.WithTimeout(ctx, c.cfg.HandlerTimeout)
		defer cancel()
	}

	action := c.router.Route(msgCtx, msg.RoutingKey, msg.Body)

	var err error
	switch action {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Nack(false, false)
	}
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "Failed to settle message",
			logger.MessageID(msg.MessageId),
			slog.String("action", action.String()),
			logger.Error(err),
		)
	}
}
