package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   NotFound("Booking"),
			expected: "NOT_FOUND: Booking not found",
		},
		{
			name:     "with underlying error",
			appErr:   StoreUnavailable(errors.New("dial tcp: connection refused")),
			expected: "STORE_UNAVAILABLE: Status store unavailable (caused by: dial tcp: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad json"), CodeInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("dup"), CodeConflict, http.StatusConflict},
		{"internal", Internal("oops", cause), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("RabbitMQ"), CodeUnavailable, http.StatusServiceUnavailable},
		{"store unavailable", StoreUnavailable(cause), CodeStoreUnavailable, http.StatusInternalServerError},
		{"queue unavailable", QueueUnavailable(cause), CodeQueueUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Booking", "b-1")

	if err.Details["id"] != "b-1" {
		t.Errorf("expected id 'b-1', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Booking" {
		t.Errorf("expected resource 'Booking', got %v", err.Details["resource"])
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("channel closed")
	appErr := QueueUnavailable(cause)

	if !errors.Is(appErr, cause) {
		t.Errorf("errors.Is should find the cause through Unwrap")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	wrapped := fmt.Errorf("handler: %w", appErr)
	regularErr := errors.New("regular error")

	if got := AsAppError(wrapped); got != appErr {
		t.Errorf("AsAppError() should unwrap to the same AppError")
	}

	got := AsAppError(regularErr)
	if got.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if got.Err != regularErr {
		t.Errorf("AsAppError() should keep the original error")
	}

	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should see through wrapping")
	}
	if IsAppError(regularErr) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", QueueUnavailable(errors.New("x")))

	if !HasCode(err, CodeQueueUnavailable) {
		t.Errorf("expected HasCode to match QUEUE_UNAVAILABLE")
	}
	if HasCode(err, CodeStoreUnavailable) {
		t.Errorf("did not expect HasCode to match STORE_UNAVAILABLE")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("plain errors carry no code")
	}
}
