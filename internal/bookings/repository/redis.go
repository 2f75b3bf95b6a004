package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/pkg/codec"
	"medbook/pkg/model"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

type redisBookingRepository struct {
	client    *redis.Client
	opTimeout time.Duration
}

func NewRedisBookingRepository(client *redis.Client, opTimeout time.Duration) BookingRepository {
	return &redisBookingRepository{
		client:    client,
		opTimeout: opTimeout,
	}
}

func (r *redisBookingRepository) Create(ctx context.Context, booking *model.Booking, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	payload, err := codec.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to encode booking: %w", err)
	}

	if err := r.client.Set(ctx, key(booking.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *redisBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return decodeBooking(data)
}

// UpdateStatus is an optimistic transaction: WATCH the key, check status and
// version, then MULTI/EXEC a SET with KEEPTTL. A concurrent write aborts the
// EXEC and is reported as a version conflict.
func (r *redisBookingRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, message string, at time.Time) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	k := key(id)
	var updated *model.Booking

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return bookingserrors.ErrNotFound
			}
			return fmt.Errorf("failed to read booking: %w", err)
		}

		booking, err := decodeBooking(data)
		if err != nil {
			return err
		}
		if booking.Status != model.StatusPending || booking.Version != expectedVersion {
			return bookingserrors.ErrVersionConflict
		}

		booking.Status = status
		booking.Message = message
		booking.Version++
		booking.UpdatedAt = at.UTC()

		payload, err := codec.Marshal(booking)
		if err != nil {
			return fmt.Errorf("failed to encode booking: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, k, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		updated = booking
		return nil
	}

	err := r.client.Watch(ctx, txf, k)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, redis.TxFailedErr):
		return nil, bookingserrors.ErrVersionConflict
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrVersionConflict):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
}

// MarkRequeued uses the same WATCH transaction as UpdateStatus, so two
// sweepers racing on one record stamp it only once.
func (r *redisBookingRepository) MarkRequeued(ctx context.Context, id string, expectedVersion int64, cutoff, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return bookingserrors.ErrNotFound
			}
			return fmt.Errorf("failed to read booking: %w", err)
		}

		booking, err := decodeBooking(data)
		if err != nil {
			return err
		}
		if booking.Version != expectedVersion || !booking.DueForRequeue(cutoff) {
			return bookingserrors.ErrVersionConflict
		}

		requeuedAt := at.UTC()
		booking.RequeuedAt = &requeuedAt

		payload, err := codec.Marshal(booking)
		if err != nil {
			return fmt.Errorf("failed to encode booking: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, k, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, k)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return bookingserrors.ErrVersionConflict
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("failed to mark booking requeued: %w", err)
	}
}

// FindStalePending walks booking:* with SCAN, so it never blocks the server.
// Records that expire mid-scan are skipped.
func (r *redisBookingRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	var (
		stale  []*model.Booking
		cursor uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, KeyPrefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookings: %w", err)
		}

		if len(keys) > 0 {
			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to load bookings: %w", err)
			}
			for _, v := range values {
				s, ok := v.(string)
				if !ok {
					continue
				}
				booking, err := decodeBooking([]byte(s))
				if err != nil {
					continue
				}
				if booking.DueForRequeue(cutoff) {
					stale = append(stale, booking)
					if len(stale) >= limit {
						return stale, nil
					}
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return stale, nil
		}
	}
}

func (r *redisBookingRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func decodeBooking(data []byte) (*model.Booking, error) {
	var booking model.Booking
	if err := codec.Unmarshal(data, &booking); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	return &booking, nil
}
