package worker

import (
	"context"
	"fmt"

	"medbook/pkg/logger"
	"medbook/pkg/rabbitmq"

	"golang.org/x/sync/errgroup"
)

type PoolConfig struct {
	Workers  int
	Prefetch int
	Queue    string
}

// Pool runs Workers independent consumers on the same queue, each on its
// own channel.
type Pool struct {
	conn    *rabbitmq.Connection
	cfg     PoolConfig
	handler rabbitmq.Handler
	log     *logger.Logger
}

func NewPool(conn *rabbitmq.Connection, cfg PoolConfig, handler rabbitmq.Handler, log *logger.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Pool{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		log:     log.Component("worker_pool"),
	}
}

func (p *Pool) consumerConfigs() []rabbitmq.ConsumerConfig {
	configs := make([]rabbitmq.ConsumerConfig, 0, p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		configs = append(configs, rabbitmq.ConsumerConfig{
			Name:     fmt.Sprintf("worker-%d", i+1),
			Queue:    p.cfg.Queue,
			Prefetch: p.cfg.Prefetch,
		})
	}
	return configs
}

// Run blocks until ctx is cancelled and every consumer finished its
// in-flight item.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("Starting worker pool",
		"workers", p.cfg.Workers,
		"prefetch", p.cfg.Prefetch,
		"queue", p.cfg.Queue,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, cc := range p.consumerConfigs() {
		consumer := rabbitmq.NewConsumer(p.conn, cc, p.log)
		g.Go(func() error {
			return consumer.Run(gctx, p.handler)
		})
	}

	err := g.Wait()
	p.log.Info("Worker pool stopped")
	return err
}
