package main

import (
	"context"

	"medbook/internal/bookings/handler"
	"medbook/internal/bookings/queue"
	"medbook/internal/bookings/repository"
	"medbook/internal/bookings/service"
	"medbook/internal/bookings/validator"
	"medbook/pkg/app"
	"medbook/pkg/config"
)

const ServiceName = "booking-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStatusStore()
	cfg.SetRabbitMQ(context.Background())
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting booking API")
	bookingService := initServices(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(bookingService, cfg.Log),
		handler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewBookingRepository(cfg)
	workQueue := queue.NewRabbitWorkQueue(cfg.Client.RabbitMQ, cfg.BookingQueue, cfg.PublishTimeout)

	bookingService := service.NewBookingService(
		bookingRepo,
		workQueue,
		bookingValidator,
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"status_store", cfg.StatusStore,
		"queue", cfg.BookingQueue,
	)
	return bookingService
}
