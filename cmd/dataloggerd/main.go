// Package main implements the entry point for the datalogger service.
// It ingests telemetry from vehicle-mounted ESP32 dataloggers over HTTP
// and the NATS broker bridge, keeps the device registry in NATS KV, and
// serves the dashboard REST API and WebSocket feed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Hardikdarji921/esp32-datalogger/auth"
	"github.com/Hardikdarji921/esp32-datalogger/config"
	"github.com/Hardikdarji921/esp32-datalogger/health"
	"github.com/Hardikdarji921/esp32-datalogger/hub"
	"github.com/Hardikdarji921/esp32-datalogger/ingest"
	"github.com/Hardikdarji921/esp32-datalogger/logfiles"
	"github.com/Hardikdarji921/esp32-datalogger/metric"
	"github.com/Hardikdarji921/esp32-datalogger/natsclient"
	"github.com/Hardikdarji921/esp32-datalogger/registry"
	"github.com/Hardikdarji921/esp32-datalogger/server"
	"github.com/Hardikdarji921/esp32-datalogger/snapshot"
	"github.com/Hardikdarji921/esp32-datalogger/wsgate"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "dataloggerd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, cliCfg)

	if cliCfg.Validate {
		fmt.Println("Configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.Service.LogLevel, cfg.Service.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting datalogger service",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"http_address", cfg.HTTP.Address())

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	monitor := health.NewMonitor()
	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := connectNATS(signalCtx, cfg, monitor, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	app, err := buildApplication(cfg, natsClient, monitor, metricsRegistry, logger)
	if err != nil {
		return err
	}

	return app.run(signalCtx, cfg)
}

// applyCLIOverrides layers explicit CLI flags over the loaded config.
func applyCLIOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.LogLevel != "" {
		cfg.Service.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Service.LogFormat = cliCfg.LogFormat
	}
	if cliCfg.ShutdownTimeout > 0 {
		cfg.Service.ShutdownTimeout = config.Duration(cliCfg.ShutdownTimeout)
	}
}

func connectNATS(ctx context.Context, cfg *config.Config,
	monitor *health.Monitor, metricsRegistry *metric.MetricsRegistry) (*natsclient.Client, error) {

	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithMetrics(metricsRegistry),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
			} else {
				monitor.UpdateUnhealthy("nats", "connection lost")
			}
		}),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	natsClient, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	monitor.UpdateHealthy("nats", "connected")
	return natsClient, nil
}

// application holds the wired components that need lifecycle handling.
type application struct {
	bridge        *ingest.Bridge
	fanout        *hub.Hub
	gateway       *wsgate.Gateway
	httpServer    *http.Server
	metricsServer *metric.Server
	monitor       *health.Monitor
	logger        *slog.Logger
}

func buildApplication(cfg *config.Config, natsClient *natsclient.Client,
	monitor *health.Monitor, metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger) (*application, error) {

	logStore, err := logfiles.NewKVStore(natsClient, cfg.NATS.LogFileBucket)
	if err != nil {
		return nil, fmt.Errorf("create log store: %w", err)
	}
	logContent, err := logfiles.NewObjectContent(natsClient, cfg.NATS.LogContentBucket)
	if err != nil {
		return nil, fmt.Errorf("create log content store: %w", err)
	}

	devices, err := registry.NewKVStore(natsClient, cfg.NATS.DeviceBucket,
		registry.WithCascade(logStore.DeleteByDevice))
	if err != nil {
		return nil, fmt.Errorf("create device registry: %w", err)
	}

	userStore, err := auth.NewKVUserStore(natsClient, cfg.NATS.UserBucket)
	if err != nil {
		return nil, fmt.Errorf("create user store: %w", err)
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL.Std())
	if err != nil {
		return nil, fmt.Errorf("create token manager: %w", err)
	}
	accounts := auth.NewService(userStore, tokens,
		auth.WithResetTTL(cfg.Auth.ResetTokenTTL.Std()),
		auth.WithServiceLogger(logger),
		auth.WithMailer(&auth.LogMailer{Logger: logger}))

	snapshots, err := snapshot.New(cfg.Snapshot.Shards, snapshot.WithMetrics(metricsRegistry))
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	fanout := hub.New(snapshots,
		hub.WithQueueSize(cfg.Gateway.QueueSize),
		hub.WithMetrics(metricsRegistry, "hub"))

	ingestSvc := ingest.NewService(devices, snapshots, fanout,
		ingest.WithLogger(logger),
		ingest.WithMetrics(metricsRegistry),
		ingest.WithMirror(natsClient, cfg.NATS.TelemetryPrefix))

	bridge := ingest.NewBridge(natsClient, ingestSvc, fanout,
		cfg.NATS.IngestSubject, cfg.Ingest.Workers, cfg.Ingest.QueueSize,
		metricsRegistry, ingest.WithBridgeLogger(logger))

	gateway := wsgate.New(fanout, accounts, wsgate.Config{
		WriteTimeout:   cfg.Gateway.WriteTimeout.Std(),
		PingInterval:   cfg.Gateway.PingInterval.Std(),
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	}, wsgate.WithLogger(logger), wsgate.WithMetrics(metricsRegistry, "wsgate"))

	apiServer := server.New(devices, logStore, accounts,
		ingest.NewHTTPHandler(ingestSvc, ingest.WithHTTPLogger(logger)),
		server.WithLogger(logger),
		server.WithContentStore(logContent),
		server.WithWebSocket(gateway),
		server.WithHealthMonitor(monitor))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	}

	return &application{
		bridge:        bridge,
		fanout:        fanout,
		gateway:       gateway,
		httpServer:    httpServer,
		metricsServer: metricsServer,
		monitor:       monitor,
		logger:        logger,
	}, nil
}

// run starts the bridge and servers, then blocks until a shutdown
// signal or a fatal server error.
func (a *application) run(signalCtx context.Context, cfg *config.Config) error {
	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		a.logger.Info("Metrics server started", "address", a.metricsServer.Address())
	}

	if err := a.bridge.Start(signalCtx); err != nil {
		return fmt.Errorf("start broker bridge: %w", err)
	}
	a.monitor.UpdateHealthy("bridge", "consuming")

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "address", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	a.monitor.UpdateHealthy("http", "listening")

	select {
	case <-signalCtx.Done():
		a.logger.Info("Received shutdown signal")
	case err := <-serverErr:
		a.monitor.UpdateUnhealthy("http", "listener failed")
		return fmt.Errorf("http server: %w", err)
	}

	return a.shutdown(cfg.Service.ShutdownTimeout.Std())
}

// shutdown stops the outer surfaces first so no new work enters, then
// drains the ingestion pool and the fan-out hub.
func (a *application) shutdown(timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", "error", err)
	}
	if err := a.gateway.Close(timeout); err != nil {
		a.logger.Warn("WebSocket gateway shutdown error", "error", err)
	}
	if err := a.bridge.Stop(timeout); err != nil {
		a.logger.Warn("Broker bridge shutdown error", "error", err)
	}
	a.fanout.Close()

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.Warn("Metrics server shutdown error", "error", err)
		}
	}

	a.logger.Info("Shutdown complete")
	return nil
}
