package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"Skymarshal/pkg/errors"
)

// WriteJSON writes a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// WriteError writes a standardized JSON error response. The user-facing
// message comes from the error's kind mapping; the underlying chain is
// logged, never returned.
func WriteError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	log.Printf("[API] %s: %v", kind, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatus(err))
	if encErr := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errors.UserMessage(err),
		"kind":    string(kind),
	}); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid request body")
	}
	return nil
}
