package wsgate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hardikdarji921/esp32-datalogger/auth"
	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/hub"
	"github.com/Hardikdarji921/esp32-datalogger/metric"
)

// Authenticator resolves a bearer token to the account behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

// Config tunes viewer connections.
type Config struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the connection settings used when the caller
// does not supply any.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512 * 1024,
	}
}

// Gateway upgrades dashboard viewers to WebSocket and forwards hub
// events to them. It implements http.Handler.
type Gateway struct {
	fanout   *hub.Hub
	authn    Authenticator
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	serviceName string
	coreMetrics *metric.Metrics

	clientsMu sync.Mutex
	clients   map[*client]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics for viewer connections.
func WithMetrics(registry *metric.MetricsRegistry, serviceName string) Option {
	return func(g *Gateway) {
		if registry != nil {
			g.coreMetrics = registry.CoreMetrics()
			g.serviceName = serviceName
		}
	}
}

// New creates a gateway serving events from fanout to authenticated
// viewers.
func New(fanout *hub.Hub, authn Authenticator, cfg Config, opts ...Option) *Gateway {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}

	g := &Gateway{
		fanout: fanout,
		authn:  authn,
		cfg:    cfg,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from a different origin than the
			// ingest API, so origin checks happen via the token instead.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		serviceName: "wsgate",
		clients:     make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// bearerToken pulls the viewer's token from the Authorization header,
// the x-access-token header, or the token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
	}
	if token := r.Header.Get("x-access-token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP authenticates the viewer, subscribes it to its channel,
// and upgrades the connection. Replayed snapshots are written before
// any live event.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "Token is missing")
		return
	}
	principal, err := g.authn.Authenticate(r.Context(), token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "Token is invalid")
		return
	}

	channel := hub.GlobalChannel
	if serial := r.URL.Query().Get("device"); serial != "" {
		channel = hub.DeviceChannel(serial)
	}

	sub, replay, err := g.fanout.Subscribe(channel)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Service is shutting down")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		sub.Unsubscribe()
		g.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(conn, sub, g.cfg)
	if !g.track(c) {
		c.close()
		return
	}

	g.logger.Debug("viewer connected",
		"user_id", principal.UserID, "channel", channel, "remote", r.RemoteAddr)
	if g.coreMetrics != nil {
		g.coreMetrics.RecordSubscribers(g.serviceName, g.fanout.SubscriberCount())
	}

	g.wg.Add(3)
	go func() {
		defer g.wg.Done()
		c.writeLoop(replay)
		g.untrack(c)
	}()
	go func() {
		defer g.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer g.wg.Done()
		c.pingLoop()
	}()
}

// track registers a live client. Returns false when the gateway has
// already been closed.
func (g *Gateway) track(c *client) bool {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	if g.closed {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

func (g *Gateway) untrack(c *client) {
	g.clientsMu.Lock()
	delete(g.clients, c)
	count := len(g.clients)
	closed := g.closed
	g.clientsMu.Unlock()

	c.close()
	if g.coreMetrics != nil && !closed {
		g.coreMetrics.RecordSubscribers(g.serviceName, count)
	}
}

// ClientCount reports how many viewers are currently connected.
func (g *Gateway) ClientCount() int {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()
	return len(g.clients)
}

// Close disconnects every viewer and waits up to timeout for their
// goroutines to finish. New connections are rejected afterwards.
func (g *Gateway) Close(timeout time.Duration) error {
	g.clientsMu.Lock()
	if g.closed {
		g.clientsMu.Unlock()
		return nil
	}
	g.closed = true
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown,
			"Gateway", "Close", "wait for viewer goroutines")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
