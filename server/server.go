package server

import (
	"log/slog"
	"net/http"

	"github.com/Hardikdarji921/esp32-datalogger/auth"
	"github.com/Hardikdarji921/esp32-datalogger/health"
	"github.com/Hardikdarji921/esp32-datalogger/logfiles"
	"github.com/Hardikdarji921/esp32-datalogger/registry"
)

// Server holds the dependencies behind the REST API and builds the
// route table. It is not itself an http.Handler; call Routes.
type Server struct {
	devices  registry.Store
	logs     logfiles.Store
	content  logfiles.ContentStore
	accounts *auth.Service
	ingest   http.Handler
	ws       http.Handler
	monitor  *health.Monitor
	logger   *slog.Logger

	corsOrigins []string
}

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithCORSOrigins sets the origins allowed to call the API from a
// browser. "*" allows any origin.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithContentStore enables POST /api/upload-log, storing uploaded log
// file content in store.
func WithContentStore(store logfiles.ContentStore) ServerOption {
	return func(s *Server) { s.content = store }
}

// WithWebSocket mounts handler at GET /ws.
func WithWebSocket(handler http.Handler) ServerOption {
	return func(s *Server) { s.ws = handler }
}

// WithHealthMonitor exposes monitor at GET /healthz.
func WithHealthMonitor(monitor *health.Monitor) ServerOption {
	return func(s *Server) { s.monitor = monitor }
}

// New wires the API server. The ingest handler is mounted unmodified
// at POST /api/live-data so devices keep their existing firmware
// contract.
func New(devices registry.Store, logs logfiles.Store, accounts *auth.Service,
	ingest http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		devices:     devices,
		logs:        logs,
		accounts:    accounts,
		ingest:      ingest,
		logger:      slog.Default(),
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the route table with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Device ingestion, no token. The dataloggers only speak these routes.
	mux.Handle("POST /api/live-data", s.ingest)
	if s.content != nil {
		mux.HandleFunc("POST /api/upload-log", s.handleUploadLog)
	}

	// Account lifecycle.
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/reset-password", s.handleResetPassword)

	// Authenticated dashboard routes.
	mux.Handle("GET /api/profile", s.requireUser(s.handleGetProfile))
	mux.Handle("PUT /api/profile", s.requireUser(s.handleUpdateProfile))
	mux.Handle("POST /api/change-password", s.requireUser(s.handleChangePassword))
	mux.Handle("GET /api/devices", s.requireUser(s.handleListDevices))
	mux.Handle("GET /api/devices/{serial}/logs", s.requireUser(s.handleListFolders))
	mux.Handle("POST /api/devices/{serial}/logs", s.requireUser(s.handleCreateFolder))
	mux.Handle("GET /api/logs/{folderID}/files", s.requireUser(s.handleListFiles))
	mux.Handle("POST /api/logs/{folderID}/files", s.requireUser(s.handleAddFile))

	// Admin routes.
	mux.Handle("GET /api/admin/users", s.requireAdmin(s.handleListUsers))
	mux.Handle("POST /api/admin/approve/{id}", s.requireAdmin(s.handleApproveUser))
	mux.Handle("DELETE /api/admin/users/{id}", s.requireAdmin(s.handleDeleteUser))
	mux.Handle("DELETE /api/devices/{serial}", s.requireAdmin(s.handleDeleteDevice))

	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
	if s.monitor != nil {
		mux.HandleFunc("GET /healthz", s.handleHealth)
	}

	return s.withRequestID(s.withCORS(mux))
}
