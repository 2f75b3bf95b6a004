package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/internal/bookings/validator"
	"medbook/pkg/config"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/logger"
	"medbook/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	mu         sync.Mutex
	created    []*model.Booking
	createFunc func(ctx context.Context, b *model.Booking, ttl time.Duration) error
	findFunc   func(ctx context.Context, id string) (*model.Booking, error)
	pingFunc   func(ctx context.Context) error
}

func (m *mockBookingRepository) Create(ctx context.Context, b *model.Booking, ttl time.Duration) error {
	m.mu.Lock()
	m.created = append(m.created, b)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, b, ttl)
	}
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, message string, at time.Time) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) MarkRequeued(ctx context.Context, id string, version int64, cutoff, at time.Time) error {
	return nil
}

func (m *mockBookingRepository) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

type mockWorkQueue struct {
	mu          sync.Mutex
	items       []model.WorkItem
	enqueueFunc func(ctx context.Context, item model.WorkItem) error
	pingFunc    func(ctx context.Context) error
}

func (m *mockWorkQueue) Enqueue(ctx context.Context, item model.WorkItem) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()
	return nil
}

func (m *mockWorkQueue) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func newTestService(repo *mockBookingRepository, q *mockWorkQueue) *bookingService {
	log := logger.Discard()
	cfg := &config.Config{
		Log:        log,
		BookingTTL: 24 * time.Hour,
	}
	svc := NewBookingService(repo, q, validator.NewBookingValidator(log), cfg)
	return svc.(*bookingService)
}

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{PatientID: "PAC001", DoctorID: "DOC001", Datetime: "2025-06-01T10:00:00"}
}

// ────────────────────────────────────────────────
// Submit
// ────────────────────────────────────────────────

func TestSubmit_StoresPendingAndEnqueues(t *testing.T) {
	repo := &mockBookingRepository{}
	q := &mockWorkQueue{}
	svc := newTestService(repo, q)

	var gotTTL time.Duration
	repo.createFunc = func(ctx context.Context, b *model.Booking, ttl time.Duration) error {
		gotTTL = ttl
		return nil
	}

	resp, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if err := svc.validator.ValidateID(resp.ID); err != nil {
		t.Errorf("expected UUID id, got %q", resp.ID)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one stored record, got %d", len(repo.created))
	}
	stored := repo.created[0]
	if stored.ID != resp.ID || stored.Status != model.StatusPending || stored.Version != 1 {
		t.Errorf("unexpected stored record %+v", stored)
	}
	if gotTTL != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %s", gotTTL)
	}

	if len(q.items) != 1 {
		t.Fatalf("expected one work item, got %d", len(q.items))
	}
	item := q.items[0]
	if item.BookingID != resp.ID || item.PatientID != "PAC001" || item.DoctorID != "DOC001" {
		t.Errorf("unexpected work item %+v", item)
	}
	if !item.RequestedTime.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected requested time %s", item.RequestedTime)
	}
}

func TestSubmit_TrimsInput(t *testing.T) {
	repo := &mockBookingRepository{}
	q := &mockWorkQueue{}
	svc := newTestService(repo, q)

	req := &model.BookingRequest{PatientID: "  PAC001 ", DoctorID: "\tDOC001", Datetime: " 2025-06-01T10:00:00 "}
	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	stored := repo.created[0]
	if stored.PatientID != "PAC001" || stored.DoctorID != "DOC001" {
		t.Errorf("expected trimmed ids, got %q %q", stored.PatientID, stored.DoctorID)
	}
}

func TestSubmit_ValidationFailureTouchesNothing(t *testing.T) {
	repo := &mockBookingRepository{}
	q := &mockWorkQueue{}
	svc := newTestService(repo, q)

	_, err := svc.Submit(context.Background(), &model.BookingRequest{DoctorID: "DOC001", Datetime: "2025-06-01T10:00:00"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if details := apperrors.AsAppError(err).Details; details["patient_id"] == nil {
		t.Errorf("expected patient_id in details, got %v", details)
	}
	if len(repo.created) != 0 || len(q.items) != 0 {
		t.Errorf("invalid request must not be stored or enqueued")
	}
}

func TestSubmit_StoreFailure(t *testing.T) {
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, b *model.Booking, ttl time.Duration) error {
			return errors.New("connection refused")
		},
	}
	q := &mockWorkQueue{}
	svc := newTestService(repo, q)

	_, err := svc.Submit(context.Background(), validRequest())
	if !apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	if len(q.items) != 0 {
		t.Errorf("nothing should be enqueued when the store write fails")
	}
}

func TestSubmit_QueueFailureLeavesPendingRecord(t *testing.T) {
	repo := &mockBookingRepository{}
	q := &mockWorkQueue{
		enqueueFunc: func(ctx context.Context, item model.WorkItem) error {
			return errors.New("broker down")
		},
	}
	svc := newTestService(repo, q)

	_, err := svc.Submit(context.Background(), validRequest())
	if !apperrors.HasCode(err, apperrors.CodeQueueUnavailable) {
		t.Fatalf("expected QUEUE_UNAVAILABLE, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Errorf("pending record should stay in place, got %d records", len(repo.created))
	}
}

func TestSubmit_DistinctIDs(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockWorkQueue{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp, err := svc.Submit(context.Background(), validRequest())
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if seen[resp.ID] {
			t.Fatalf("duplicate id %s", resp.ID)
		}
		seen[resp.ID] = true
	}
}

// ────────────────────────────────────────────────
// GetByID
// ────────────────────────────────────────────────

func TestGetByID(t *testing.T) {
	const id = "0b9b7f0e-5d51-4a8b-9f3e-2f0c6f1e7a11"
	stored := &model.Booking{ID: id, Status: model.StatusConfirmed, Version: 2}

	tests := []struct {
		name     string
		id       string
		findFunc func(ctx context.Context, id string) (*model.Booking, error)
		wantCode string
	}{
		{
			name: "found",
			id:   id,
			findFunc: func(ctx context.Context, id string) (*model.Booking, error) {
				return stored, nil
			},
		},
		{
			name:     "missing",
			id:       id,
			findFunc: nil,
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "malformed id",
			id:       "nope",
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "empty id",
			id:       "",
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name: "store down",
			id:   id,
			findFunc: func(ctx context.Context, id string) (*model.Booking, error) {
				return nil, errors.New("i/o timeout")
			},
			wantCode: apperrors.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockBookingRepository{findFunc: tt.findFunc}, &mockWorkQueue{})

			got, err := svc.GetByID(context.Background(), tt.id)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Status != model.StatusConfirmed {
					t.Errorf("unexpected record %+v", got)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Health
// ────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	down := func(ctx context.Context) error { return errors.New("down") }

	tests := []struct {
		name      string
		storePing func(ctx context.Context) error
		queuePing func(ctx context.Context) error
		want      HealthReport
	}{
		{"all up", nil, nil, HealthReport{Status: StatusHealthy, Redis: true, RabbitMQ: true}},
		{"store down", down, nil, HealthReport{Status: StatusUnhealthy, Redis: false, RabbitMQ: true}},
		{"broker down", nil, down, HealthReport{Status: StatusUnhealthy, Redis: true, RabbitMQ: false}},
		{"both down", down, down, HealthReport{Status: StatusUnhealthy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(
				&mockBookingRepository{pingFunc: tt.storePing},
				&mockWorkQueue{pingFunc: tt.queuePing},
			)
			if got := svc.Health(context.Background()); got != tt.want {
				t.Errorf("Health() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
