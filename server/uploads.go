package server

import (
	"io"
	"net/http"
)

// maxUploadSize caps an uploaded log file at 32 MiB, well above the
// largest CSV a datalogger produces in one session.
const maxUploadSize = 32 << 20

// handleUploadLog stores an uploaded log file's content. Devices call
// this route directly after a session, the same way they call
// /api/live-data, so it takes no token. The response echoes the stored
// path so firmware can record where the upload landed.
func (s *Server) handleUploadLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file part in the request")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	if err := s.content.Put(r.Context(), header.Filename, data); err != nil {
		s.logger.Error("log upload failed", "file", header.Filename, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Storage upload failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Upload successful",
		"path":    header.Filename,
	})
}
