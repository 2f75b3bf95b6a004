package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

const (
	MessageConfirmed = "Reserva confirmada exitosamente"
	MessageRejected  = "No hay disponibilidad para la fecha solicitada"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

func (s Status) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// BookingRequest is the intake payload.
type BookingRequest struct {
	PatientID string `json:"patient_id" validate:"required,max=64,opaque_ref"`
	DoctorID  string `json:"doctor_id" validate:"required,max=64,opaque_ref"`
	Datetime  string `json:"datetime" validate:"required,iso_datetime"`
}

// Booking is the record held in the status store under booking:<id>.
type Booking struct {
	ID            string    `json:"id" bson:"_id"`
	PatientID     string    `json:"patient_id" bson:"patient_id"`
	DoctorID      string    `json:"doctor_id" bson:"doctor_id"`
	RequestedTime time.Time `json:"datetime" bson:"datetime"`
	Status        Status    `json:"status" bson:"status"`
	Message       string    `json:"message,omitempty" bson:"message,omitempty"`
	Version       int64     `json:"version" bson:"version"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
	// RequeuedAt is set when a stale pending record was put back on the queue.
	RequeuedAt *time.Time `json:"requeued_at,omitempty" bson:"requeued_at,omitempty"`
}

// SubmitResponse is returned by POST /book.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// WorkItem is the body of a message on the booking_requests queue.
type WorkItem struct {
	BookingID     string    `json:"booking_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	RequestedTime ISOTime `json:"datetime"`
}

// ISOTime decodes any layout ParseRequestedTime accepts, so work items
// written without an offset still decode. It always encodes as RFC 3339.
type ISOTime struct {
	time.Time
}

func (t ISOTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

func (t *ISOTime) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return nil
	}
	value, err := strconv.Unquote(raw)
	if err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseRequestedTime(value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Notification is broadcast on the booking_notifications exchange.
type Notification struct {
	BookingID string    `json:"booking_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPendingBooking(id string, req BookingRequest, requested time.Time, now time.Time) *Booking {
	now = now.UTC()
	return &Booking{
		ID:            id,
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		RequestedTime: requested.UTC(),
		Status:        StatusPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DueForRequeue reports whether a pending record was created before cutoff
// and has not been re-enqueued since cutoff.
func (b *Booking) DueForRequeue(cutoff time.Time) bool {
	if b.Status != StatusPending || !b.CreatedAt.Before(cutoff) {
		return false
	}
	return b.RequeuedAt == nil || b.RequeuedAt.Before(cutoff)
}

func (b *Booking) WorkItem() WorkItem {
	return WorkItem{
		BookingID:     b.ID,
		PatientID:     b.PatientID,
		DoctorID:      b.DoctorID,
		RequestedTime: ISOTime{b.RequestedTime},
	}
}

// Notification describes the stored outcome. Only meaningful once terminal.
func (b *Booking) Notification() Notification {
	return Notification{
		BookingID: b.ID,
		Status:    b.Status,
		Message:   b.Message,
		Timestamp: b.UpdatedAt,
	}
}

func (w WorkItem) Validate() error {
	if strings.TrimSpace(w.BookingID) == "" {
		return fmt.Errorf("booking_id is required")
	}
	return nil
}

var requestedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseRequestedTime accepts ISO-8601 timestamps with or without an offset.
// Values without an offset are taken as UTC.
func ParseRequestedTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range requestedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q: expected ISO-8601", value)
}
