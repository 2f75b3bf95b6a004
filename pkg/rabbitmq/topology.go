package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Queue struct {
	Name    string
	Durable bool
}

type Exchange struct {
	Name    string
	Kind    string
	Durable bool
}

// Topology is declared on every (re)connect. Declarations are idempotent as
// long as the arguments do not change between runs.
type Topology struct {
	Queues    []Queue
	Exchanges []Exchange
}

// Declarer is the subset of *amqp.Channel used for declarations.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// BookingTopology is the durable work queue plus the fan-out notification
// exchange.
func BookingTopology(queue, exchange string) Topology {
	return Topology{
		Queues:    []Queue{{Name: queue, Durable: true}},
		Exchanges: []Exchange{{Name: exchange, Kind: amqp.ExchangeFanout, Durable: true}},
	}
}

func (t Topology) Declare(ch Declarer) error {
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, ex.Durable, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.Name, q.Durable, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", q.Name, err)
		}
	}
	return nil
}
