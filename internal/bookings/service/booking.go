package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/internal/bookings/queue"
	"medbook/internal/bookings/repository"
	"medbook/internal/bookings/validator"
	"medbook/pkg/config"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/metrics"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"

	"github.com/google/uuid"
)

type BookingService interface {
	Submit(ctx context.Context, req *model.BookingRequest) (*model.SubmitResponse, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	HealthChecker
}

type bookingService struct {
	HealthChecker
	repo      repository.BookingRepository
	queue     queue.WorkQueue
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
	newID     func() string
}

func NewBookingService(
	repo repository.BookingRepository,
	workQueue queue.WorkQueue,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		HealthChecker: NewHealthChecker(repo, workQueue, cfg.Log),
		repo:          repo,
		queue:         workQueue,
		validator:     validator,
		cfg:           cfg,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Submit stores a pending record and enqueues it. If the enqueue fails the
// record is left in place and expires with its TTL.
func (s *bookingService) Submit(ctx context.Context, req *model.BookingRequest) (*model.SubmitResponse, error) {
	sanitizer.NormalizeBookingRequest(req)
	if err := s.validate(req); err != nil {
		metrics.IncBookingSubmitted("invalid")
		return nil, err
	}

	requested, err := model.ParseRequestedTime(req.Datetime)
	if err != nil {
		metrics.IncBookingSubmitted("invalid")
		return nil, apperrors.Validation("Validation failed", map[string]any{"datetime": err.Error()})
	}

	booking := model.NewPendingBooking(s.newID(), *req, requested, s.now())

	if err := s.repo.Create(ctx, booking, s.cfg.BookingTTL); err != nil {
		s.cfg.Log.Error("Failed to store pending booking", "booking_id", booking.ID, "error", err)
		metrics.IncBookingSubmitted("store_error")
		return nil, apperrors.StoreUnavailable(err)
	}

	if err := s.queue.Enqueue(ctx, booking.WorkItem()); err != nil {
		s.cfg.Log.Error("Failed to enqueue booking", "booking_id", booking.ID, "error", err)
		metrics.IncBookingSubmitted("queue_error")
		return nil, apperrors.QueueUnavailable(err)
	}

	metrics.IncBookingSubmitted("accepted")
	s.cfg.Log.Info("Booking accepted",
		"booking_id", booking.ID,
		"patient_id", booking.PatientID,
		"doctor_id", booking.DoctorID,
		"datetime", booking.RequestedTime,
	)

	return &model.SubmitResponse{ID: booking.ID, Status: booking.Status}, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	// ids are UUIDs; anything else cannot exist
	if err := s.validator.ValidateID(id); err != nil {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to read booking", "booking_id", id, "error", err)
		return nil, apperrors.StoreUnavailable(err)
	}

	return booking, nil
}

func (s *bookingService) validate(req *model.BookingRequest) error {
	if err := s.validator.ValidateRequest(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			details := make(map[string]any, len(validationErrs))
			for _, e := range validationErrs {
				details[e.Field] = e.Message
			}
			s.cfg.Log.Warn("Booking validation failed", "errors", validationErrs.Error())
			return apperrors.Validation("Validation failed", details)
		}
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}
