package httputils

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail is the inner object of an error response.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ErrorBody is the JSON envelope every error response uses.
type ErrorBody struct {
	Error   ErrorDetail    `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an error envelope. Details may be nil.
func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) error {
	return WriteJSON(w, status, ErrorBody{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
		Details: details,
	})
}
