package repository

import (
	"context"
	"time"

	"medbook/pkg/config"
	"medbook/pkg/model"
)

const (
	CollectionName = "bookings"
	KeyPrefix      = "booking:"

	defaultOpTimeout = 5 * time.Second
)

// BookingRepository is the status store. Records expire after the TTL given
// at creation; an expired record behaves exactly like a missing one.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking, ttl time.Duration) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// UpdateStatus moves a pending record at expectedVersion to a terminal
	// status and returns the stored result. It fails with ErrNotFound or
	// ErrVersionConflict and never touches the remaining TTL.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, message string, at time.Time) (*model.Booking, error)
	// FindStalePending lists pending records created before cutoff that
	// were not re-enqueued after cutoff either.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error)
	// MarkRequeued stamps requeued_at on a pending record at expectedVersion
	// that is still due (see FindStalePending). The version is not bumped.
	// It fails with ErrNotFound or ErrVersionConflict.
	MarkRequeued(ctx context.Context, id string, expectedVersion int64, cutoff, at time.Time) error
	Ping(ctx context.Context) error
}

// NewBookingRepository returns the backend selected by STATUS_STORE. The
// matching client must already be connected.
func NewBookingRepository(cfg *config.Config) BookingRepository {
	if cfg.StatusStore == config.StoreMongo {
		return NewMongoBookingRepository(cfg.Client.Mongo, cfg.MongoDatabaseName, defaultOpTimeout)
	}
	return NewRedisBookingRepository(cfg.Client.Redis, defaultOpTimeout)
}

// withTimeout bounds a single store call, keeping a tighter caller deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func key(id string) string {
	return KeyPrefix + id
}
