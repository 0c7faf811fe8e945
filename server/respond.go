package server

import (
	"encoding/json"
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps classified errors onto HTTP statuses for routes
// without a route-specific message contract. Internal detail stays in
// the logs, not the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.IsInvalid(err):
		writeMessage(w, http.StatusBadRequest, "Invalid request")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.WrapInvalid(err, "Server", "decodeJSON", "parse request body")
	}
	return nil
}
