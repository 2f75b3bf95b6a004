package notifications

import (
	"context"
	"fmt"
	"time"

	"medbook/pkg/kafka"
	"medbook/pkg/logger"
	"medbook/pkg/metrics"
	"medbook/pkg/model"
	"medbook/pkg/rabbitmq"
)

const (
	SinkRabbitMQ = "rabbitmq"
	SinkKafka    = "kafka"

	EventBookingDecided = "booking.decided"
)

// Publisher broadcasts booking outcomes.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

type rabbitPublisher struct {
	publisher      *rabbitmq.Publisher
	publishTimeout time.Duration
}

// NewRabbitPublisher publishes to the fan-out exchange with an empty routing
// key and waits for the broker confirm.
func NewRabbitPublisher(conn *rabbitmq.Connection, exchange string, publishTimeout time.Duration) Publisher {
	return &rabbitPublisher{
		publisher:      rabbitmq.NewPublisher(conn, exchange),
		publishTimeout: publishTimeout,
	}
}

func (p *rabbitPublisher) Publish(ctx context.Context, n model.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	err := p.publisher.Publish(ctx, "", n)
	metrics.IncNotification(SinkRabbitMQ, err)
	if err != nil {
		return fmt.Errorf("failed to publish notification for %s: %w", n.BookingID, err)
	}
	return nil
}

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messageProducer
	source   string
}

// NewKafkaPublisher mirrors notifications to a topic keyed by booking id so
// every outcome for one booking lands on the same partition.
func NewKafkaPublisher(producer messageProducer, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

func (p *kafkaPublisher) Publish(ctx context.Context, n model.Notification) error {
	msg, err := kafka.NewMessage().
		WithKey(n.BookingID).
		WithValue(n).
		WithEventType(EventBookingDecided).
		WithSource(p.source).
		Build()
	if err != nil {
		return err
	}

	err = p.producer.Publish(ctx, msg)
	metrics.IncNotification(SinkKafka, err)
	return err
}

type multiPublisher struct {
	primary Publisher
	mirrors []Publisher
	log     *logger.Logger
}

// NewMultiPublisher returns primary unchanged when there are no mirrors.
// Only the primary's error is returned; mirror failures are logged.
func NewMultiPublisher(primary Publisher, log *logger.Logger, mirrors ...Publisher) Publisher {
	if len(mirrors) == 0 {
		return primary
	}
	return &multiPublisher{
		primary: primary,
		mirrors: mirrors,
		log:     log.Component("notifications"),
	}
}

func (p *multiPublisher) Publish(ctx context.Context, n model.Notification) error {
	if err := p.primary.Publish(ctx, n); err != nil {
		return err
	}
	for _, mirror := range p.mirrors {
		if err := mirror.Publish(ctx, n); err != nil {
			p.log.Warn("Notification mirror publish failed",
				"booking_id", n.BookingID,
				"status", n.Status,
				"error", err,
			)
		}
	}
	return nil
}
