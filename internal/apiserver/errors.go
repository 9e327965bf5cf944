package apiserver

import (
	"fmt"
	"net/http"

	"github.com/moolen/groundwork/internal/response"
)

// handleMethodNotAllowed handles 405 responses
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
}

// handleNotFound handles 404 responses
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	response.WriteError(w, http.StatusNotFound, "NOT_FOUND",
		fmt.Sprintf("Endpoint not found: %s", r.URL.Path))
}
