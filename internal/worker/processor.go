package worker

import (
	"context"
	"errors"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/internal/bookings/repository"
	"medbook/internal/notifications"
	"medbook/pkg/codec"
	"medbook/pkg/logger"
	"medbook/pkg/metrics"
	"medbook/pkg/model"
	"medbook/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Processor struct {
	repo            repository.BookingRepository
	publisher       notifications.Publisher
	policy          Policy
	decisionTimeout time.Duration
	log             *logger.Logger
	now             func() time.Time
}

func NewProcessor(
	repo repository.BookingRepository,
	publisher notifications.Publisher,
	policy Policy,
	decisionTimeout time.Duration,
	log *logger.Logger,
) *Processor {
	return &Processor{
		repo:            repo,
		publisher:       publisher,
		policy:          policy,
		decisionTimeout: decisionTimeout,
		log:             log.Component("processor"),
		now:             time.Now,
	}
}

// Handle is a rabbitmq.Handler. The item is processed on a context that is
// not cancelled by shutdown so an in-flight item runs to completion.
func (p *Processor) Handle(ctx context.Context, d amqp.Delivery) rabbitmq.Disposition {
	err := p.Process(context.WithoutCancel(ctx), d.Body)
	disposition := dispositionFor(err)

	if err != nil {
		p.log.Warn("Work item not completed",
			"delivery_tag", d.DeliveryTag,
			"redelivered", d.Redelivered,
			"disposition", disposition.String(),
			"error", err,
		)
	}
	metrics.IncWorkItem(disposition.String())
	return disposition
}

// Process runs one work item through decide, update and publish.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var item model.WorkItem
	if err := codec.Unmarshal(body, &item); err != nil {
		return poison("undecodable body", err)
	}
	if err := item.Validate(); err != nil {
		return poison("invalid work item", err)
	}
	log := p.log.With("booking_id", item.BookingID)

	booking, err := p.repo.FindByID(ctx, item.BookingID)
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		booking = nil
	case err != nil:
		return transient("load booking", err)
	}

	// redelivery of an item that was already decided
	if booking != nil && booking.Status.IsTerminal() {
		log.Info("Booking already decided, republishing outcome", "status", booking.Status)
		if err := p.publisher.Publish(ctx, booking.Notification()); err != nil {
			return transient("publish notification", err)
		}
		return nil
	}

	decision, err := p.decide(ctx, item)
	if err != nil {
		return transient("decide", err)
	}

	decidedAt := p.now().UTC()
	notification := model.Notification{
		BookingID: item.BookingID,
		Status:    decision.Status,
		Message:   decision.Message,
		Timestamp: decidedAt,
	}

	if booking == nil {
		log.Warn("Booking record missing, skipping status update", "status", decision.Status)
	} else {
		notification, err = p.store(ctx, booking, decision, decidedAt, notification)
		if err != nil {
			return err
		}
	}

	if err := p.publisher.Publish(ctx, notification); err != nil {
		return transient("publish notification", err)
	}

	log.Info("Booking decided", "status", notification.Status)
	return nil
}

func (p *Processor) decide(ctx context.Context, item model.WorkItem) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, p.decisionTimeout)
	defer cancel()

	start := time.Now()
	decision, err := p.policy.Decide(ctx, item)
	if err != nil {
		return Decision{}, err
	}
	metrics.ObserveDecision(string(decision.Status), time.Since(start))
	return decision, nil
}

// store applies the decision with a version check. When another worker got
// there first its outcome is adopted so every notification for a booking
// carries the same status.
func (p *Processor) store(ctx context.Context, booking *model.Booking, decision Decision, at time.Time, fallback model.Notification) (model.Notification, error) {
	updated, err := p.repo.UpdateStatus(ctx, booking.ID, booking.Version, decision.Status, decision.Message, at)
	switch {
	case err == nil:
		return updated.Notification(), nil
	case errors.Is(err, bookingserrors.ErrNotFound):
		p.log.Warn("Booking record expired before update", "booking_id", booking.ID)
		return fallback, nil
	case errors.Is(err, bookingserrors.ErrVersionConflict):
		return p.adopt(ctx, booking.ID, fallback)
	default:
		return model.Notification{}, transient("update status", err)
	}
}

func (p *Processor) adopt(ctx context.Context, id string, fallback model.Notification) (model.Notification, error) {
	current, err := p.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return fallback, nil
	case err != nil:
		return model.Notification{}, transient("reload booking", err)
	case !current.Status.IsTerminal():
		return model.Notification{}, transient("update status", bookingserrors.ErrVersionConflict)
	}

	p.log.Info("Lost decision race, adopting stored outcome",
		"booking_id", id,
		"status", current.Status,
		"version", current.Version,
	)
	return current.Notification(), nil
}
