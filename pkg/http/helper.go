package http

import (
	"errors"
	"io"
	"net/http"

	"medbook/pkg/codec"
	apperrors "medbook/pkg/errors"
)

// DecodeJSON reads a single JSON document from the request body into v.
// Body size limits are enforced by the MaxRequestSize middleware.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperrors.InvalidInput("Request body is required")
	}

	if err := codec.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body is required")
		default:
			return apperrors.InvalidInput("Invalid request body")
		}
	}
	return nil
}
