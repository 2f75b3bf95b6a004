package main

import (
	"context"
	"os"

	"medbook/internal/bookings/handler"
	"medbook/internal/bookings/queue"
	"medbook/internal/bookings/repository"
	"medbook/internal/bookings/service"
	"medbook/internal/notifications"
	"medbook/internal/sweeper"
	"medbook/internal/worker"
	"medbook/pkg/app"
	"medbook/pkg/config"
	"medbook/pkg/kafka"
	kafka_middleware "medbook/pkg/kafka/middleware"

	"github.com/spf13/pflag"
)

const ServiceName = "booking-worker"

func main() {
	flags := pflag.NewFlagSet(ServiceName, pflag.ExitOnError)
	workers := flags.IntP("workers", "w", 0, "number of concurrent consumers (overrides WORKER_COUNT)")
	sweepInterval := flags.Duration("sweep-interval", -1, "stale pending sweep interval, 0 disables (overrides SWEEP_INTERVAL)")
	_ = flags.Parse(os.Args[1:])

	cfg := config.Load(ServiceName)
	if *workers > 0 {
		cfg.WorkerCount = *workers
	}
	if *sweepInterval >= 0 {
		cfg.SweepInterval = *sweepInterval
	}

	cfg.SetStatusStore()
	cfg.SetRabbitMQ(context.Background())
	defer cfg.GracefulShutdown()

	bookingRepo := repository.NewBookingRepository(cfg)
	publisher, closePublisher := initPublisher(cfg)
	defer closePublisher()

	policy := worker.NewRandomPolicy(cfg.DecisionMinDelay, cfg.DecisionMaxDelay, cfg.DecisionSuccessRate)
	processor := worker.NewProcessor(bookingRepo, publisher, policy, cfg.DecisionTimeout, cfg.Log)
	pool := worker.NewPool(cfg.Client.RabbitMQ, worker.PoolConfig{
		Workers:  cfg.WorkerCount,
		Prefetch: cfg.WorkerPrefetch,
		Queue:    cfg.BookingQueue,
	}, processor.Handle, cfg.Log)

	workerApp := app.NewApplication(cfg)
	workerApp.SetHealthOnly(handler.NewHealthHandler(
		service.NewHealthChecker(bookingRepo, cfg.Client.RabbitMQ, cfg.Log),
		cfg.Log,
	))
	workerApp.AddRunner("worker_pool", pool.Run)

	if cfg.SweepInterval > 0 {
		workQueue := queue.NewRabbitWorkQueue(cfg.Client.RabbitMQ, cfg.BookingQueue, cfg.PublishTimeout)
		s := sweeper.New(bookingRepo, workQueue, sweeper.Config{
			Interval:   cfg.SweepInterval,
			StaleAfter: cfg.SweepStaleAfter,
			BatchSize:  cfg.SweepBatchSize,
		}, cfg.Log)
		workerApp.AddRunner("sweeper", s.Run)
	}

	workerApp.Run()
}

// initPublisher returns the RabbitMQ publisher, mirrored to Kafka when
// brokers are configured.
func initPublisher(cfg *config.Config) (notifications.Publisher, func()) {
	rabbit := notifications.NewRabbitPublisher(cfg.Client.RabbitMQ, cfg.NotificationExchange, cfg.PublishTimeout)
	if !cfg.Kafka.Enabled() {
		return rabbit, func() {}
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.NotificationTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if cfg.Kafka.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}
	cfg.Log.Info("Mirroring notifications to Kafka", "topic", producer.Topic())

	mirror := notifications.NewKafkaPublisher(producer, cfg.ServiceName)
	return notifications.NewMultiPublisher(rabbit, cfg.Log, mirror), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Warn("Failed to close Kafka producer", "error", err)
		}
	}
}
