package server

import (
	stderrors "errors"
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/auth"
	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Required fields missing")
		return
	}

	err := s.accounts.Register(r.Context(), req)
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "Registered successfully, pending approval")
	case stderrors.Is(err, errors.ErrAccountExists):
		writeMessage(w, http.StatusConflict, "User already exists")
	case errors.IsInvalid(err):
		writeMessage(w, http.StatusBadRequest, "Required fields missing")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	case stderrors.Is(err, errors.ErrAccountPending):
		writeMessage(w, http.StatusForbidden, "Account pending approval. Please contact an admin.")
	default:
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	}
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}

	err := s.accounts.ForgotPassword(r.Context(), req.Email)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Reset link sent to your email.")
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "Email not registered.")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Token expired or invalid")
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successful")
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.accounts.Profile(r.Context(), principalFrom(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update auth.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if _, err := s.accounts.UpdateProfile(r.Context(), principalFrom(r).UserID, update); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Profile updated successfully!")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "Current and new passwords are required.")
		return
	}

	err := s.accounts.ChangePassword(r.Context(), principalFrom(r).UserID,
		req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Password changed successfully.")
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid current password.")
	default:
		s.writeError(w, r, err)
	}
}
