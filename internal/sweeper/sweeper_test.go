package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medbook/internal/bookings/repository"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordingQueue struct {
	mu     sync.Mutex
	items  []model.WorkItem
	failAt int
}

func (q *recordingQueue) Enqueue(ctx context.Context, item model.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAt > 0 && len(q.items)+1 == q.failAt {
		return errors.New("broker down")
	}
	q.items = append(q.items, item)
	return nil
}

func (q *recordingQueue) Ping(ctx context.Context) error { return nil }

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func seedStore(t *testing.T) repository.BookingRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := repository.NewRedisBookingRepository(client, time.Second)

	ctx := context.Background()
	now := time.Now()
	req := model.BookingRequest{PatientID: "PAC001", DoctorID: "DOC001"}
	for _, id := range []string{"stale-1", "stale-2", "stale-3"} {
		if err := repo.Create(ctx, model.NewPendingBooking(id, req, now, now.Add(-time.Hour)), 24*time.Hour); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	_ = repo.Create(ctx, model.NewPendingBooking("fresh", req, now, now), 24*time.Hour)
	_ = repo.Create(ctx, model.NewPendingBooking("done", req, now, now.Add(-time.Hour)), 24*time.Hour)
	if _, err := repo.UpdateStatus(ctx, "done", 1, model.StatusConfirmed, model.MessageConfirmed, now); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	return repo
}

func TestSweep(t *testing.T) {
	q := &recordingQueue{}
	s := New(seedStore(t), q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 3 || q.len() != 3 {
		t.Fatalf("expected 3 re-enqueued items, got n=%d queued=%d", n, q.len())
	}
	for _, item := range q.items {
		if item.BookingID == "fresh" || item.BookingID == "done" {
			t.Errorf("unexpected item %s", item.BookingID)
		}
	}
}

func TestSweep_StopsOnEnqueueFailure(t *testing.T) {
	q := &recordingQueue{failAt: 2}
	s := New(seedStore(t), q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	n, err := s.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	if n != 1 {
		t.Errorf("expected 1 item before the failure, got %d", n)
	}
}

func (q *recordingQueue) perID() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int)
	for _, item := range q.items {
		counts[item.BookingID]++
	}
	return counts
}

func TestSweep_BackToBackEnqueuesOnce(t *testing.T) {
	q := &recordingQueue{}
	s := New(seedStore(t), q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	for pass := 0; pass < 3; pass++ {
		if _, err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("pass %d: Sweep() error = %v", pass, err)
		}
	}

	if q.len() != 3 {
		t.Fatalf("expected 3 items after repeated passes, got %d: %v", q.len(), q.perID())
	}
	for id, n := range q.perID() {
		if n != 1 {
			t.Errorf("%s enqueued %d times", id, n)
		}
	}
}

func TestSweep_RequeuesAgainAfterWindow(t *testing.T) {
	q := &recordingQueue{}
	s := New(seedStore(t), q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	start := time.Now()
	s.now = func() time.Time { return start }
	if n, _ := s.Sweep(context.Background()); n != 3 {
		t.Fatalf("first pass: expected 3, got %d", n)
	}

	s.now = func() time.Time { return start.Add(5 * time.Minute) }
	if n, _ := s.Sweep(context.Background()); n != 0 {
		t.Fatalf("inside the window: expected 0, got %d", n)
	}

	s.now = func() time.Time { return start.Add(11 * time.Minute) }
	if n, _ := s.Sweep(context.Background()); n != 3 {
		t.Fatalf("after the window: expected 3, got %d", n)
	}
}

func TestSweep_BatchesRotate(t *testing.T) {
	q := &recordingQueue{}
	s := New(seedStore(t), q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 2}, logger.Discard())

	var counts []int
	for pass := 0; pass < 3; pass++ {
		n, err := s.Sweep(context.Background())
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		counts = append(counts, n)
	}

	if counts[0] != 2 || counts[1] != 1 || counts[2] != 0 {
		t.Errorf("expected passes of 2, 1, 0 got %v", counts)
	}
	if len(q.perID()) != 3 {
		t.Errorf("every stale record should be reached, got %v", q.perID())
	}
}

func TestSweep_SkipsRecordDecidedAfterListing(t *testing.T) {
	q := &recordingQueue{}
	repo := seedStore(t)
	s := New(&decideOnList{BookingRepository: repo, id: "stale-2"}, q, Config{Interval: time.Minute, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 2 || q.perID()["stale-2"] != 0 {
		t.Errorf("decided record must not be re-enqueued, got n=%d %v", n, q.perID())
	}
}

// decideOnList confirms one booking right after the listing, as a worker would.
type decideOnList struct {
	repository.BookingRepository
	id string
}

func (d *decideOnList) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	stale, err := d.BookingRepository.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}
	_, err = d.BookingRepository.UpdateStatus(ctx, d.id, 1, model.StatusConfirmed, model.MessageConfirmed, time.Now())
	return stale, err
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	q := &recordingQueue{}
	s := New(seedStore(t), q, Config{Interval: 10 * time.Millisecond, StaleAfter: 10 * time.Minute, BatchSize: 100}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for q.len() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeper did not run, queued=%d", q.len())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// several more ticks inside the window add nothing
	time.Sleep(50 * time.Millisecond)
	if q.len() != 3 {
		t.Errorf("expected 3 items after repeated ticks, got %d", q.len())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
