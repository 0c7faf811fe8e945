package ingest

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

const defaultMaxRequestSize = 1 << 20 // 1MB

// liveDataResponse is the body returned to the device on success.
type liveDataResponse struct {
	Message  string `json:"message"`
	DeviceID string `json:"device_id"`
	Serial   string `json:"serial"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// HTTPHandler serves POST /api/live-data.
type HTTPHandler struct {
	service        *Service
	logger         *slog.Logger
	maxRequestSize int64
}

// HTTPOption configures an HTTPHandler.
type HTTPOption func(*HTTPHandler)

// WithMaxRequestSize caps the accepted request body size.
func WithMaxRequestSize(n int64) HTTPOption {
	return func(h *HTTPHandler) {
		if n > 0 {
			h.maxRequestSize = n
		}
	}
}

// WithHTTPLogger sets the handler logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTPHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHTTPHandler wraps the ingestion service as an HTTP handler.
func NewHTTPHandler(service *Service, opts ...HTTPOption) *HTTPHandler {
	h := &HTTPHandler{
		service:        service,
		logger:         slog.Default(),
		maxRequestSize: defaultMaxRequestSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxRequestSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "failed to read request body"})
		return
	}
	if int64(len(body)) > h.maxRequestSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: "request body too large"})
		return
	}

	result, err := h.service.Ingest(r.Context(), body, "http")
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, liveDataResponse{
		Message:  "Data received and saved successfully",
		DeviceID: result.Device.ID,
		Serial:   result.Device.Serial,
		Status:   result.Device.Status,
	})
}

// writeError maps classified errors onto the wire contract the original
// firmware expects: 400 for anything the device sent wrong, 500 when
// storage failed and a retry may succeed.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrMissingDeviceID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Device_ID is required"})
	case errors.IsInvalid(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid payload"})
	default:
		h.logger.Error("live-data ingestion failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Error processing data"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
