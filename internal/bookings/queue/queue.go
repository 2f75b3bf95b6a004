package queue

import (
	"context"
	"fmt"
	"time"

	"medbook/pkg/model"
	"medbook/pkg/rabbitmq"
)

// WorkQueue hands booking work items to the worker pool.
type WorkQueue interface {
	Enqueue(ctx context.Context, item model.WorkItem) error
	Ping(ctx context.Context) error
}

type rabbitWorkQueue struct {
	conn           *rabbitmq.Connection
	publisher      *rabbitmq.Publisher
	queue          string
	publishTimeout time.Duration
}

// NewRabbitWorkQueue publishes through the default exchange, so the routing
// key is the queue name.
func NewRabbitWorkQueue(conn *rabbitmq.Connection, queueName string, publishTimeout time.Duration) WorkQueue {
	return &rabbitWorkQueue{
		conn:           conn,
		publisher:      rabbitmq.NewPublisher(conn, ""),
		queue:          queueName,
		publishTimeout: publishTimeout,
	}
}

func (q *rabbitWorkQueue) Enqueue(ctx context.Context, item model.WorkItem) error {
	ctx, cancel := context.WithTimeout(ctx, q.publishTimeout)
	defer cancel()

	if err := q.publisher.Publish(ctx, q.queue, item); err != nil {
		return fmt.Errorf("failed to enqueue booking %s: %w", item.BookingID, err)
	}
	return nil
}

func (q *rabbitWorkQueue) Ping(ctx context.Context) error {
	return q.conn.Ping(ctx)
}
