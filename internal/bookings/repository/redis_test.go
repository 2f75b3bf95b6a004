package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/pkg/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisRepo(t *testing.T) (BookingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBookingRepository(client, time.Second), mr
}

func pendingBooking(id string, createdAt time.Time) *model.Booking {
	req := model.BookingRequest{PatientID: "PAC001", DoctorID: "DOC001", Datetime: "2025-06-01T10:00:00"}
	requested, _ := model.ParseRequestedTime(req.Datetime)
	return model.NewPendingBooking(id, req, requested, createdAt)
}

func TestRedisRepository_CreateAndFind(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	b := pendingBooking("b-1", time.Now())
	if err := repo.Create(ctx, b, 24*time.Hour); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if ttl := mr.TTL("booking:b-1"); ttl != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %s", ttl)
	}

	got, err := repo.FindByID(ctx, "b-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != model.StatusPending || got.Version != 1 || got.PatientID != "PAC001" {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.RequestedTime.Equal(b.RequestedTime) {
		t.Errorf("requested time changed: %s vs %s", got.RequestedTime, b.RequestedTime)
	}
}

func TestRedisRepository_NotFoundAndExpiry(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Create(ctx, pendingBooking("b-2", time.Now()), 24*time.Hour); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	mr.FastForward(24*time.Hour + time.Second)

	if _, err := repo.FindByID(ctx, "b-2"); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected expired record to be gone, got %v", err)
	}
}

func TestRedisRepository_UpdateStatus(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingBooking("b-3", time.Now()), 24*time.Hour); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	mr.FastForward(time.Hour)

	decidedAt := time.Now().Add(time.Minute)
	updated, err := repo.UpdateStatus(ctx, "b-3", 1, model.StatusConfirmed, model.MessageConfirmed, decidedAt)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.Status != model.StatusConfirmed || updated.Version != 2 || updated.Message != model.MessageConfirmed {
		t.Errorf("unexpected updated record %+v", updated)
	}

	if ttl := mr.TTL("booking:b-3"); ttl != 23*time.Hour {
		t.Errorf("update must keep the remaining TTL, got %s", ttl)
	}

	stored, _ := repo.FindByID(ctx, "b-3")
	if stored.Status != model.StatusConfirmed || stored.Version != 2 {
		t.Errorf("stored record not updated: %+v", stored)
	}
}

func TestRedisRepository_UpdateStatusConflicts(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	if _, err := repo.UpdateStatus(ctx, "missing", 1, model.StatusRejected, model.MessageRejected, time.Now()); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = repo.Create(ctx, pendingBooking("b-4", time.Now()), time.Hour)

	if _, err := repo.UpdateStatus(ctx, "b-4", 7, model.StatusRejected, model.MessageRejected, time.Now()); !errors.Is(err, bookingserrors.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict on stale version, got %v", err)
	}

	if _, err := repo.UpdateStatus(ctx, "b-4", 1, model.StatusRejected, model.MessageRejected, time.Now()); err != nil {
		t.Fatalf("first decision failed: %v", err)
	}

	// terminal states never change
	if _, err := repo.UpdateStatus(ctx, "b-4", 2, model.StatusConfirmed, model.MessageConfirmed, time.Now()); !errors.Is(err, bookingserrors.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict on terminal record, got %v", err)
	}
	stored, _ := repo.FindByID(ctx, "b-4")
	if stored.Status != model.StatusRejected {
		t.Errorf("terminal status changed to %s", stored.Status)
	}
}

func TestRedisRepository_ConcurrentDecisionsOneWinner(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()
	_ = repo.Create(ctx, pendingBooking("b-5", time.Now()), time.Hour)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.StatusConfirmed
			if i%2 == 0 {
				status = model.StatusRejected
			}
			_, err := repo.UpdateStatus(ctx, "b-5", 1, status, "decided", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, bookingserrors.ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 || conflicts != writers-1 {
		t.Errorf("expected exactly one winner, got winners=%d conflicts=%d", winners, conflicts)
	}
}

func TestRedisRepository_FindStalePending(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_ = repo.Create(ctx, pendingBooking(fmt.Sprintf("old-%d", i), now.Add(-time.Hour)), 24*time.Hour)
	}
	_ = repo.Create(ctx, pendingBooking("fresh", now), 24*time.Hour)
	_ = repo.Create(ctx, pendingBooking("decided", now.Add(-time.Hour)), 24*time.Hour)
	_, _ = repo.UpdateStatus(ctx, "decided", 1, model.StatusConfirmed, model.MessageConfirmed, now)

	stale, err := repo.FindStalePending(ctx, now.Add(-10*time.Minute), 100)
	if err != nil {
		t.Fatalf("FindStalePending() error = %v", err)
	}
	if len(stale) != 5 {
		t.Errorf("expected 5 stale records, got %d", len(stale))
	}
	for _, b := range stale {
		if b.ID == "fresh" || b.ID == "decided" {
			t.Errorf("unexpected record %s in stale list", b.ID)
		}
	}

	limited, _ := repo.FindStalePending(ctx, now.Add(-10*time.Minute), 2)
	if len(limited) != 2 {
		t.Errorf("expected limit of 2 to apply, got %d", len(limited))
	}
}

func TestRedisRepository_MarkRequeued(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-10 * time.Minute)

	_ = repo.Create(ctx, pendingBooking("b-1", now.Add(-time.Hour)), 24*time.Hour)
	mr.FastForward(time.Hour)

	if err := repo.MarkRequeued(ctx, "b-1", 1, cutoff, now); err != nil {
		t.Fatalf("MarkRequeued() error = %v", err)
	}
	if err := repo.MarkRequeued(ctx, "b-1", 1, cutoff, now); !errors.Is(err, bookingserrors.ErrVersionConflict) {
		t.Errorf("second stamp inside the window: expected ErrVersionConflict, got %v", err)
	}
	if ttl := mr.TTL("booking:b-1"); ttl != 23*time.Hour {
		t.Errorf("expected TTL to be kept at 23h, got %s", ttl)
	}

	if stale, _ := repo.FindStalePending(ctx, cutoff, 100); len(stale) != 0 {
		t.Errorf("requeued record listed again inside the window")
	}
	if stale, _ := repo.FindStalePending(ctx, now.Add(time.Minute), 100); len(stale) != 1 {
		t.Errorf("requeued record should be due again after the window")
	}

	got, _ := repo.FindByID(ctx, "b-1")
	if got.RequeuedAt == nil || got.Version != 1 {
		t.Errorf("expected requeued_at set and version untouched, got %+v", got)
	}

	// a decided record is never stamped
	_, _ = repo.UpdateStatus(ctx, "b-1", 1, model.StatusConfirmed, model.MessageConfirmed, now)
	if err := repo.MarkRequeued(ctx, "b-1", 2, now.Add(time.Minute), now); !errors.Is(err, bookingserrors.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict on a decided record, got %v", err)
	}
	if err := repo.MarkRequeued(ctx, "missing", 1, cutoff, now); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisRepository_Ping(t *testing.T) {
	repo, mr := newTestRedisRepo(t)

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	mr.Close()
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("expected ping failure after server shutdown")
	}
}
