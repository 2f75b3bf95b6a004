package kafka_middleware

import (
	"context"
	"time"

	"medbook/pkg/kafka"
	"medbook/pkg/metrics"
)

const (
	directionProduce = "produce"
	directionConsume = "consume"
)

// MetricsProducerMiddleware records produce latency and outcome
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.ObserveKafka(directionProduce, time.Since(start), err)
		return err
	}
}

// MetricsConsumerMiddleware records handler latency and outcome
func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.ObserveKafka(directionConsume, time.Since(start), err)
		return err
	}
}
