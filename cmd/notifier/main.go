package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"medbook/internal/notifications"
	"medbook/pkg/config"
	"medbook/pkg/kafka"
	kafka_middleware "medbook/pkg/kafka/middleware"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/spf13/pflag"
)

const (
	ServiceName = "booking-notifier"

	SourceRabbitMQ = "rabbitmq"
	SourceKafka    = "kafka"
)

func main() {
	flags := pflag.NewFlagSet(ServiceName, pflag.ExitOnError)
	source := flags.StringP("source", "s", SourceRabbitMQ, "where to read notifications from: rabbitmq or kafka")
	_ = flags.Parse(os.Args[1:])

	cfg := config.Load(ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	callback := logNotification(cfg.Log)

	var subscriber notifications.Subscriber
	switch *source {
	case SourceRabbitMQ:
		cfg.SetRabbitMQ(ctx)
		subscriber = notifications.NewRabbitSubscriber(cfg.Client.RabbitMQ, cfg.NotificationExchange, callback, cfg.Log)
	case SourceKafka:
		subscriber = newKafkaSubscriber(cfg, callback)
	default:
		cfg.Log.Fatal("Unknown notification source", "source", *source)
	}
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Listening for booking notifications", "source", *source)
	if err := subscriber.Run(ctx); err != nil {
		cfg.Log.Error("Subscriber stopped with error", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}

func newKafkaSubscriber(cfg *config.Config, callback notifications.Callback) notifications.Subscriber {
	consumer, err := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.NotificationTopic,
		cfg.Kafka.ConsumerGroup,
		notifications.Handler(callback),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if cfg.Kafka.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	}
	return notifications.NewKafkaSubscriber(consumer)
}

func logNotification(log *logger.Logger) notifications.Callback {
	return func(_ context.Context, n model.Notification) error {
		log.Info("Booking notification",
			"booking_id", n.BookingID,
			"status", n.Status,
			"message", n.Message,
			"timestamp", n.Timestamp,
		)
		return nil
	}
}
