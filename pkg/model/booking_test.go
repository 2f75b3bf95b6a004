package model

import (
	"testing"
	"time"

	"medbook/pkg/codec"
)

func TestParseRequestedTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"naive seconds", "2025-06-01T10:00:00", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"naive minutes", "2025-06-01T10:00", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"naive fractional", "2025-06-01T10:00:00.250", time.Date(2025, 6, 1, 10, 0, 0, 250000000, time.UTC), false},
		{"space separator", "2025-06-01 10:00:00", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"utc zulu", "2025-06-01T10:00:00Z", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"with offset", "2025-06-01T12:00:00+02:00", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"surrounding spaces", "  2025-06-01T10:00:00  ", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), false},
		{"date only", "2025-06-01", time.Time{}, true},
		{"garbage", "tomorrow", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequestedTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRequestedTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseRequestedTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		valid    bool
	}{
		{StatusPending, false, true},
		{StatusConfirmed, true, true},
		{StatusRejected, true, true},
		{Status("cancelled"), false, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, want %v", tt.status, got, tt.valid)
		}
	}
}

func TestNewPendingBooking(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.FixedZone("X", 3600))
	requested := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	req := BookingRequest{PatientID: "PAC001", DoctorID: "DOC001", Datetime: "2025-06-01T10:00:00"}

	b := NewPendingBooking("b-1", req, requested, now)

	if b.Status != StatusPending {
		t.Errorf("expected pending, got %s", b.Status)
	}
	if b.Version != 1 {
		t.Errorf("expected version 1, got %d", b.Version)
	}
	if b.Message != "" {
		t.Errorf("pending record must not carry a message, got %q", b.Message)
	}
	if b.CreatedAt.Location() != time.UTC {
		t.Errorf("expected created_at in UTC")
	}

	item := b.WorkItem()
	if item.BookingID != "b-1" || item.PatientID != "PAC001" || item.DoctorID != "DOC001" || !item.RequestedTime.Equal(requested) {
		t.Errorf("unexpected work item: %+v", item)
	}
}

func TestWorkItem_Validate(t *testing.T) {
	if err := (WorkItem{BookingID: "b-1"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (WorkItem{BookingID: "   "}).Validate(); err == nil {
		t.Errorf("expected error for blank booking_id")
	}
}

func TestWorkItem_DecodeDatetimeLayouts(t *testing.T) {
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		datetime string
		want     time.Time
		wantErr  bool
	}{
		{name: "no offset", datetime: `"2025-06-01T10:00:00"`, want: want},
		{name: "fractional no offset", datetime: `"2025-06-01T10:00:00.000000"`, want: want},
		{name: "utc", datetime: `"2025-06-01T10:00:00Z"`, want: want},
		{name: "offset", datetime: `"2025-06-01T12:00:00+02:00"`, want: want},
		{name: "null", datetime: `null`},
		{name: "empty", datetime: `""`},
		{name: "garbage", datetime: `"tomorrow"`, wantErr: true},
		{name: "number", datetime: `1748772000`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"booking_id":"b-1","patient_id":"PAC001","doctor_id":"DOC001","datetime":` + tt.datetime + `}`)

			var item WorkItem
			err := codec.Unmarshal(body, &item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !item.RequestedTime.Equal(tt.want) {
				t.Errorf("RequestedTime = %v, want %v", item.RequestedTime, tt.want)
			}
		})
	}
}

func TestWorkItem_EncodesRFC3339(t *testing.T) {
	requested := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b := NewPendingBooking("b-1", BookingRequest{PatientID: "PAC001", DoctorID: "DOC001"}, requested, time.Now())

	body, err := codec.Marshal(b.WorkItem())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded struct {
		Datetime string `json:"datetime"`
	}
	if err := codec.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Datetime != "2025-06-01T10:00:00Z" {
		t.Errorf("datetime = %q", decoded.Datetime)
	}
}
