package service

import (
	"context"
	"time"

	"medbook/pkg/contracts"
	"medbook/pkg/logger"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	healthProbeTimeout = 2 * time.Second
)

// HealthReport keeps the "redis" key whatever the status store backend is.
type HealthReport struct {
	Status   string `json:"status"`
	Redis    bool   `json:"redis"`
	RabbitMQ bool   `json:"rabbitmq"`
}

func (h HealthReport) Healthy() bool {
	return h.Status == StatusHealthy
}

type HealthChecker interface {
	Health(ctx context.Context) HealthReport
}

type healthChecker struct {
	store  contracts.Pinger
	broker contracts.Pinger
	log    *logger.Logger
}

func NewHealthChecker(store, broker contracts.Pinger, log *logger.Logger) HealthChecker {
	return &healthChecker{store: store, broker: broker, log: log}
}

// Health probes both dependencies concurrently.
func (c *healthChecker) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	storeErr := make(chan error, 1)
	go func() { storeErr <- c.store.Ping(ctx) }()
	brokerErr := c.broker.Ping(ctx)

	report := HealthReport{Status: StatusHealthy, Redis: true, RabbitMQ: true}
	if err := <-storeErr; err != nil {
		c.log.Warn("Status store health check failed", "error", err)
		report.Redis = false
		report.Status = StatusUnhealthy
	}
	if brokerErr != nil {
		c.log.Warn("RabbitMQ health check failed", "error", brokerErr)
		report.RabbitMQ = false
		report.Status = StatusUnhealthy
	}
	return report
}
