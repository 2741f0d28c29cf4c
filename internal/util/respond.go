package util

import (
	"encoding/json"
	"net/http"
)

// HTTP header constants.
const (
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	HeaderAllow         = "Allow"
	HeaderXRequestID    = "X-Request-Id"
	HeaderAuthorization = "Authorization"
	HeaderCacheControl  = "Cache-Control"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// Envelope is the uniform JSON response body for both pipeline-level
// and handler-level responses.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RespondJSON writes an Envelope with the given status code.
func RespondJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.Header().Set(HeaderCacheControl, "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// RespondSuccess writes a success envelope.
func RespondSuccess(w http.ResponseWriter, status int, message string, data any) {
	RespondJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// RespondError writes a failure envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, Envelope{Success: false, Message: message})
}

// RespondValidationError writes a 422 failure envelope with per-field errors.
func RespondValidationError(w http.ResponseWriter, fields map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, Envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  fields,
	})
}
