package common

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"medbook/internal/notifications"
	"medbook/pkg/client"
	"medbook/pkg/config"
	"medbook/pkg/model"
)

const defaultServerURL = "http://localhost:8000"

type IntegrationTestSuite struct {
	Config      *config.Config
	Bookings    *client.BookingClient
	ServiceName string

	mu            sync.Mutex
	notifications map[string][]model.Notification
	stop          context.CancelFunc
}

// NewIntegrationTestSuite talks to a running stack at TEST_SERVER_URL and
// subscribes to the notification exchange for the whole run.
func NewIntegrationTestSuite(t *testing.T, serviceName string) *IntegrationTestSuite {
	t.Helper()

	cfg := config.FromEnv(serviceName)
	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	s := &IntegrationTestSuite{
		Config:        cfg,
		Bookings:      client.NewBookingClient(serverURL),
		ServiceName:   serviceName,
		notifications: make(map[string][]model.Notification),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if err := s.Bookings.HTTP().WaitForHealthy(ctx, 60*time.Second); err != nil {
		cancel()
		t.Fatalf("API not ready: %v", err)
	}

	cfg.SetRabbitMQ(ctx)
	subscriber := notifications.NewRabbitSubscriber(cfg.Client.RabbitMQ, cfg.NotificationExchange, s.record, cfg.Log)
	go func() {
		_ = subscriber.Run(ctx)
	}()
	if err := cfg.Client.RabbitMQ.WaitReady(ctx); err != nil {
		cancel()
		t.Fatalf("RabbitMQ not ready: %v", err)
	}

	return s
}

func (s *IntegrationTestSuite) record(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.BookingID] = append(s.notifications[n.BookingID], n)
	return nil
}

// Notifications returns what was received so far for one booking.
func (s *IntegrationTestSuite) Notifications(bookingID string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notifications[bookingID]...)
}

// WaitForNotification polls until a notification for bookingID arrived.
func (s *IntegrationTestSuite) WaitForNotification(t *testing.T, bookingID string, timeout time.Duration) model.Notification {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := s.Notifications(bookingID); len(got) > 0 {
			return got[0]
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("no notification for booking %s within %s", bookingID, timeout)
	return model.Notification{}
}

func (s *IntegrationTestSuite) Teardown() {
	s.stop()
	s.Config.GracefulShutdown()
}
