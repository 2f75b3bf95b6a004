package middleware

import (
	"net/http"

	"medbook/pkg/codec"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", codec.ContentType)
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(errorBody{Error: msg})
}
