// Package httpjson writes JSON responses and the service's error envelope.
package httpjson

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope of every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Write encodes v with the given status. Encoding errors after the header is
// sent cannot be reported to the client and are dropped.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody carrying status as its code.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, ErrorBody{Error: ErrorDetail{Code: status, Message: message}})
}
