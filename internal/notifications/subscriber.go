package notifications

import (
	"context"
	"fmt"

	"medbook/pkg/codec"
	"medbook/pkg/kafka"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Callback receives every decoded notification.
type Callback func(ctx context.Context, n model.Notification) error

type Subscriber interface {
	Run(ctx context.Context) error
}

type rabbitSubscriber struct {
	consumer *rabbitmq.Consumer
	callback Callback
	log      *logger.Logger
}

// NewRabbitSubscriber consumes from a server-named exclusive queue bound to
// the exchange. The queue goes away with the channel.
func NewRabbitSubscriber(conn *rabbitmq.Connection, exchange string, callback Callback, log *logger.Logger) Subscriber {
	consumer := rabbitmq.NewConsumer(conn, rabbitmq.ConsumerConfig{
		Name:     "notifier",
		Prefetch: 16,
		Declare:  bindExclusiveQueue(exchange),
	}, log)

	return &rabbitSubscriber{
		consumer: consumer,
		callback: callback,
		log:      log.Component("subscriber"),
	}
}

type queueBinder interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func bindExclusiveQueue(exchange string) rabbitmq.DeclareFunc {
	return func(ch *amqp.Channel) (string, error) {
		return declareAndBind(ch, exchange)
	}
}

func declareAndBind(ch queueBinder, exchange string) (string, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("failed to declare subscriber queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind %q to %q: %w", q.Name, exchange, err)
	}
	return q.Name, nil
}

func (s *rabbitSubscriber) Run(ctx context.Context) error {
	return s.consumer.Run(ctx, s.handle)
}

func (s *rabbitSubscriber) handle(ctx context.Context, d amqp.Delivery) rabbitmq.Disposition {
	var n model.Notification
	if err := codec.Unmarshal(d.Body, &n); err != nil {
		s.log.Warn("Dropping malformed notification", "message_id", d.MessageId, "error", err)
		return rabbitmq.Reject
	}
	if err := s.callback(ctx, n); err != nil {
		s.log.Warn("Notification callback failed", "booking_id", n.BookingID, "error", err)
		return rabbitmq.Requeue
	}
	return rabbitmq.Ack
}

type messageConsumer interface {
	Start(ctx context.Context) error
	Close() error
}

type kafkaSubscriber struct {
	consumer messageConsumer
}

// NewKafkaSubscriber wraps a consumer built with Handler(callback).
func NewKafkaSubscriber(consumer messageConsumer) Subscriber {
	return &kafkaSubscriber{consumer: consumer}
}

// Handler adapts a Callback to the Kafka consumer. Undecodable values are
// permanent failures and are not retried.
func Handler(callback Callback) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var n model.Notification
		if err := msg.DecodeValue(&n); err != nil {
			return err
		}
		if err := callback(ctx, n); err != nil {
			return kafka.NewTransientError("notification callback failed", err)
		}
		return nil
	}
}

func (s *kafkaSubscriber) Run(ctx context.Context) error {
	defer func() {
		_ = s.consumer.Close()
	}()
	return s.consumer.Start(ctx)
}
