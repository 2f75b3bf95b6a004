package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medbook/pkg/codec"
	apperrors "medbook/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFoundWithID("Booking", "x"), http.StatusNotFound, apperrors.CodeNotFound},
		{"validation", apperrors.Validation("bad", nil), http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"store unavailable", apperrors.StoreUnavailable(errors.New("down")), http.StatusInternalServerError, apperrors.CodeStoreUnavailable},
		{"queue unavailable", apperrors.QueueUnavailable(errors.New("down")), http.StatusInternalServerError, apperrors.CodeQueueUnavailable},
		{"code only", &apperrors.AppError{Code: apperrors.CodeConflict, Message: "dup"}, http.StatusConflict, apperrors.CodeConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := codec.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
			if body.Error == "" {
				t.Errorf("expected error message in body")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		PatientID string `json:"patient_id"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"patient_id":"PAC001"}`, false},
		{"unknown fields ignored", `{"patient_id":"PAC001","extra":1}`, false},
		{"empty body", ``, true},
		{"malformed", `{"patient_id":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}
