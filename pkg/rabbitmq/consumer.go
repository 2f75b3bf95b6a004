package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"medbook/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/xid"
)

// Disposition is what a handler wants done with a delivery.
type Disposition int

const (
	// Ack removes the delivery from the queue.
	Ack Disposition = iota
	// Reject discards the delivery without requeue.
	Reject
	// Requeue negatively acknowledges the delivery and asks for redelivery.
	Requeue
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Reject:
		return "reject"
	case Requeue:
		return "requeue"
	default:
		return "unknown"
	}
}

// Handler processes one delivery. It must not ack/nack the delivery itself.
type Handler func(ctx context.Context, d amqp.Delivery) Disposition

// Settle applies the disposition to the delivery.
func Settle(d amqp.Delivery, disposition Disposition) error {
	switch disposition {
	case Ack:
		return d.Ack(false)
	case Reject:
		return d.Reject(false)
	case Requeue:
		return d.Nack(false, true)
	default:
		return fmt.Errorf("%w: %d", errUnknownDisposition, disposition)
	}
}

// DeclareFunc declares whatever the consumer needs on its own channel and
// returns the queue name to consume from.
type DeclareFunc func(ch *amqp.Channel) (string, error)

type ConsumerConfig struct {
	// Name prefixes the consumer tag.
	Name     string
	Queue    string
	Prefetch int
	// Declare is optional. When set it runs on every resubscribe and its
	// queue name overrides Queue.
	Declare DeclareFunc
}

type Consumer struct {
	conn *Connection
	cfg  ConsumerConfig
	log  *logger.Logger
}

func NewConsumer(conn *Connection, cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn: conn,
		cfg:  cfg,
		log:  log.Component("consumer").With("consumer", cfg.Name),
	}
}

// Run consumes until ctx is cancelled. Channel or connection loss is not an
// error: the consumer resubscribes after a backoff.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		subscribed, err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			attempt = 0
		}

		wait := c.conn.backoff(attempt)
		attempt++
		c.log.Warn("Consumer interrupted, resubscribing",
			"queue", c.cfg.Queue,
			"retry_in", wait,
			"error", err,
		)
		if sleepWithContext(ctx, wait) != nil {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler Handler) (bool, error) {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = ch.Close()
	}()

	queue := c.cfg.Queue
	if c.cfg.Declare != nil {
		if queue, err = c.cfg.Declare(ch); err != nil {
			return false, fmt.Errorf("failed to declare consumer topology: %w", err)
		}
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return false, fmt.Errorf("failed to set prefetch: %w", err)
	}

	tag := fmt.Sprintf("%s-%s", c.cfg.Name, xid.New())
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("failed to consume %q: %w", queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.log.Info("Consumer subscribed", "queue", queue, "tag", tag, "prefetch", c.cfg.Prefetch)

	err = c.serve(ctx, deliveries, closed, handler)
	if ctx.Err() != nil {
		if cancelErr := ch.Cancel(tag, false); cancelErr != nil && !errors.Is(cancelErr, amqp.ErrClosed) {
			c.log.Warn("Failed to cancel consumer", "tag", tag, "error", cancelErr)
		}
	}
	return true, err
}

// serve hands deliveries to handler one at a time and settles each before
// reading the next. A failed settle ends the subscription.
func (c *Consumer) serve(ctx context.Context, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return ErrDeliveriesClosed
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			disposition := handler(ctx, d)
			if err := Settle(d, disposition); err != nil {
				return fmt.Errorf("failed to %s delivery %d: %w", disposition, d.DeliveryTag, err)
			}
		}
	}
}
