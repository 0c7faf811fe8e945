package server

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/auth"
	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/health"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	summary, err := s.accounts.ApproveUser(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, fmt.Sprintf("User %s approved", summary.Username))
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "User not found")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	err := s.accounts.DeleteUser(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "User deleted successfully")
	case stderrors.Is(err, auth.ErrCannotDeleteAdmin):
		writeMessage(w, http.StatusForbidden, "Cannot delete admin")
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "User not found")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	aggregate := s.monitor.AggregateHealth("dataloggerd")
	status := http.StatusOK
	if aggregate.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, struct {
		Status     string                   `json:"status"`
		Components map[string]health.Status `json:"components"`
	}{
		Status:     aggregate.Status,
		Components: s.monitor.GetAll(),
	})
}
