// Package response holds the JSON helpers shared by HTTP handlers and
// middleware.
package response

import (
	"encoding/json"
	"io"
	"net/http"
)

// WriteJSON encodes data as JSON without HTML escaping.
func WriteJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// WriteError sends {"error": code, "message": message} with the given status.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = WriteJSON(w, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteStatus sends data as JSON with the given status.
func WriteStatus(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return WriteJSON(w, data)
}

// WriteSuccess sends data as JSON with HTTP 200.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteStatus(w, http.StatusOK, data)
}
