package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"medbook/pkg/codec"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/xid"
)

// Publisher sends persistent JSON messages to one exchange and waits for the
// broker confirm. The default exchange ("") routes by queue name.
type Publisher struct {
	conn     *Connection
	exchange string
}

func NewPublisher(conn *Connection, exchange string) *Publisher {
	return &Publisher{
		conn:     conn,
		exchange: exchange,
	}
}

func (p *Publisher) Exchange() string {
	return p.exchange
}

// Publish returns only after the broker confirmed the message or the
// attempt failed. A single failed attempt is returned to the caller as is.
func (p *Publisher) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  codec.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    xid.New().String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("failed to enable publisher confirms: %w", err)
		}

		confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, msg)
		if err != nil {
			return fmt.Errorf("failed to publish to exchange %q: %w", p.exchange, err)
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for publish confirm: %w", err)
		}
		if !acked {
			return ErrPublishNacked
		}
		return nil
	})
}
