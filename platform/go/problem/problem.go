// Package problem carries the RFC 7807 error body used by every HTTP handler.
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the media type for problem responses.
const ContentType = "application/problem+json"

// Stable problem type URIs.
const (
	TypeValidation = "https://caretrack.dev/problems/validation-error"
	TypeNotFound   = "https://caretrack.dev/problems/not-found"
	TypeConflict   = "https://caretrack.dev/problems/conflict"
	TypeForbidden  = "https://caretrack.dev/problems/forbidden"
	TypeInternal   = "https://caretrack.dev/problems/internal-error"
)

// Details is the wire body for error responses.
type Details struct {
	Type   *string              `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail *string              `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// Build assembles a Details value. Empty detail/problemType and nil field
// errors are omitted from the body.
func Build(title, detail, problemType string, status int, fieldErrors map[string][]string) Details {
	details := Details{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		details.Detail = &detail
	}
	if problemType != "" {
		details.Type = &problemType
	}
	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		details.Errors = &copied
	}

	return details
}

// Write serializes the Details to the response with the problem media type.
func Write(w http.ResponseWriter, details Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(details.Status)
	_ = json.NewEncoder(w).Encode(details)
}
