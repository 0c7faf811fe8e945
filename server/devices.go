package server

import (
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	err := s.devices.Delete(r.Context(), serial)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Device deleted successfully")
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "Device not found")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	if _, err := s.devices.Get(r.Context(), serial); err != nil {
		if errors.IsNotFound(err) {
			writeMessage(w, http.StatusNotFound, "Device not found")
			return
		}
		s.writeError(w, r, err)
		return
	}

	folders, err := s.logs.Folders(r.Context(), serial)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	if _, err := s.devices.Get(r.Context(), serial); err != nil {
		if errors.IsNotFound(err) {
			writeMessage(w, http.StatusNotFound, "Device not found")
			return
		}
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "Folder name is required")
		return
	}

	folder, err := s.logs.CreateFolder(r.Context(), serial, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.logs.Files(r.Context(), r.PathValue("folderID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, files)
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "Folder not found")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Size     string `json:"size"`
		Modified string `json:"modified"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "File name is required")
		return
	}

	file, err := s.logs.AddFile(r.Context(), r.PathValue("folderID"),
		req.Name, req.Size, req.Modified)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, file)
	case errors.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "Folder not found")
	default:
		s.writeError(w, r, err)
	}
}
