package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "DATALOGGER"

// Duration wraps time.Duration so JSON config files can use human-readable
// values like "30s" or "24h" as well as raw nanoseconds.
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: invalid duration %q", claserr.ErrInvalidConfig, val)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	default:
		return fmt.Errorf("%w: duration must be a string or number, got %T", claserr.ErrInvalidConfig, v)
	}
	return nil
}

// MarshalJSON renders the duration as a string for readable config files.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete service configuration.
type Config struct {
	Service  ServiceConfig  `json:"service"`
	HTTP     HTTPConfig     `json:"http"`
	Metrics  MetricsConfig  `json:"metrics"`
	NATS     NATSConfig     `json:"nats"`
	Auth     AuthConfig     `json:"auth"`
	Ingest   IngestConfig   `json:"ingest"`
	Gateway  GatewayConfig  `json:"gateway"`
	Snapshot SnapshotConfig `json:"snapshot"`
}

// ServiceConfig identifies the process and its runtime behavior.
type ServiceConfig struct {
	Name            string   `json:"name"`
	LogLevel        string   `json:"log_level"`  // debug, info, warn, error
	LogFormat       string   `json:"log_format"` // json, text
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// HTTPConfig configures the ingest/gateway HTTP listener.
type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns the host:port listen address.
func (h HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// NATSConfig defines NATS connection and naming settings.
type NATSConfig struct {
	URL           string   `json:"url"`
	Name          string   `json:"name,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`

	DeviceBucket     string `json:"device_bucket"`
	UserBucket       string `json:"user_bucket"`
	LogFileBucket    string `json:"logfile_bucket"`
	LogContentBucket string `json:"log_content_bucket"` // object store for uploaded file content

	IngestSubject   string `json:"ingest_subject"`   // broker bridge consumes here
	TelemetryPrefix string `json:"telemetry_prefix"` // mirror publishes to <prefix>.<serial>
}

// AuthConfig configures token issuance and account policy.
type AuthConfig struct {
	Secret        string   `json:"secret"`
	TokenTTL      Duration `json:"token_ttl"`
	ResetTokenTTL Duration `json:"reset_token_ttl"`
}

// IngestConfig sizes the broker ingestion worker pool.
type IngestConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// GatewayConfig tunes websocket viewer connections.
type GatewayConfig struct {
	QueueSize      int      `json:"queue_size"` // per-viewer delivery queue depth
	WriteTimeout   Duration `json:"write_timeout"`
	PingInterval   Duration `json:"ping_interval"`
	MaxMessageSize int64    `json:"max_message_size"`
}

// SnapshotConfig sizes the in-memory snapshot cache.
type SnapshotConfig struct {
	Shards int `json:"shards"`
}

// Default returns the configuration used when no file or override supplies
// a value. Every field here keeps the service runnable against a local NATS.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "dataloggerd",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: Duration(30 * time.Second),
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			URL:              "nats://localhost:4222",
			Name:             "dataloggerd",
			MaxReconnects:    -1,
			ReconnectWait:    Duration(2 * time.Second),
			DeviceBucket:     "devices",
			UserBucket:       "users",
			LogFileBucket:    "logfiles",
			LogContentBucket: "device-logs",
			IngestSubject:    "datalogger.device.data",
			TelemetryPrefix:  "datalogger.telemetry",
		},
		Auth: AuthConfig{
			TokenTTL:      Duration(24 * time.Hour),
			ResetTokenTTL: Duration(15 * time.Minute),
		},
		Ingest: IngestConfig{
			Workers:   4,
			QueueSize: 1000,
		},
		Gateway: GatewayConfig{
			QueueSize:      64,
			WriteTimeout:   Duration(10 * time.Second),
			PingInterval:   Duration(30 * time.Second),
			MaxMessageSize: 512 * 1024,
		},
		Snapshot: SnapshotConfig{
			Shards: 32,
		},
	}
}

// Load reads the config file at path, layers it over the defaults, applies
// DATALOGGER_* environment overrides, and validates the result. An empty
// path skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read config failed: %w", err)
		}
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("config.Load: %w: %s", claserr.ErrInvalidConfig, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: %w: parse %s: %s", claserr.ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: apply env overrides failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envString reads a validated environment override into dst if set.
func envString(key string, dst *string) error {
	val := os.Getenv(EnvPrefix + "_" + key)
	if val == "" {
		return nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return err
	}
	*dst = val
	return nil
}

// applyEnvOverrides layers DATALOGGER_* environment variables over cfg.
// Only operational knobs are exposed; structural settings stay in the file.
func applyEnvOverrides(cfg *Config) error {
	stringVars := []struct {
		key string
		dst *string
	}{
		{"LOG_LEVEL", &cfg.Service.LogLevel},
		{"LOG_FORMAT", &cfg.Service.LogFormat},
		{"HTTP_HOST", &cfg.HTTP.Host},
		{"NATS_URL", &cfg.NATS.URL},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"AUTH_SECRET", &cfg.Auth.Secret},
	}
	for _, v := range stringVars {
		if err := envString(v.key, v.dst); err != nil {
			return err
		}
	}

	intVars := []struct {
		key string
		dst *int
	}{
		{"HTTP_PORT", &cfg.HTTP.Port},
		{"METRICS_PORT", &cfg.Metrics.Port},
	}
	for _, v := range intVars {
		val := os.Getenv(EnvPrefix + "_" + v.key)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_%s must be an integer, got %q",
				claserr.ErrInvalidConfig, EnvPrefix, v.key, val)
		}
		*v.dst = n
	}

	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("%w: service.name", claserr.ErrMissingConfig)
	}
	switch c.Service.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: service.log_level %q (must be debug, info, warn, or error)",
			claserr.ErrInvalidConfig, c.Service.LogLevel)
	}
	switch c.Service.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: service.log_format %q (must be json or text)",
			claserr.ErrInvalidConfig, c.Service.LogFormat)
	}

	if err := validatePort("http.port", c.HTTP.Port); err != nil {
		return err
	}
	if c.Metrics.Enabled {
		if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
			return err
		}
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url", claserr.ErrMissingConfig)
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("%w: nats.url %q must use the nats:// or tls:// scheme",
			claserr.ErrInvalidConfig, c.NATS.URL)
	}
	for name, val := range map[string]string{
		"nats.device_bucket":      c.NATS.DeviceBucket,
		"nats.user_bucket":        c.NATS.UserBucket,
		"nats.logfile_bucket":     c.NATS.LogFileBucket,
		"nats.log_content_bucket": c.NATS.LogContentBucket,
		"nats.ingest_subject":     c.NATS.IngestSubject,
		"nats.telemetry_prefix":   c.NATS.TelemetryPrefix,
	} {
		if val == "" {
			return fmt.Errorf("%w: %s", claserr.ErrMissingConfig, name)
		}
		if !isValidSubjectPart(val) {
			return fmt.Errorf("%w: %s %q is not valid for NATS subjects",
				claserr.ErrInvalidConfig, name, val)
		}
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("%w: auth.secret (set via file or %s_AUTH_SECRET)",
			claserr.ErrMissingConfig, EnvPrefix)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", claserr.ErrInvalidConfig)
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("%w: auth.reset_token_ttl must be positive", claserr.ErrInvalidConfig)
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: ingest.workers must be at least 1", claserr.ErrInvalidConfig)
	}
	if c.Ingest.QueueSize < 1 {
		return fmt.Errorf("%w: ingest.queue_size must be at least 1", claserr.ErrInvalidConfig)
	}

	if c.Gateway.QueueSize < 1 {
		return fmt.Errorf("%w: gateway.queue_size must be at least 1", claserr.ErrInvalidConfig)
	}
	if c.Gateway.WriteTimeout <= 0 {
		return fmt.Errorf("%w: gateway.write_timeout must be positive", claserr.ErrInvalidConfig)
	}
	if c.Gateway.PingInterval <= 0 {
		return fmt.Errorf("%w: gateway.ping_interval must be positive", claserr.ErrInvalidConfig)
	}

	if c.Snapshot.Shards < 1 {
		return fmt.Errorf("%w: snapshot.shards must be at least 1", claserr.ErrInvalidConfig)
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %s %d out of range (1-65535)", claserr.ErrInvalidConfig, name, port)
	}
	return nil
}

// isValidSubjectPart checks if a string is safe to embed in a NATS subject.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// SaveToFile writes the configuration to a JSON file with restrictive
// permissions. Useful for generating a starter config.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// String returns an indented JSON representation with secrets redacted.
func (c *Config) String() string {
	clone := *c
	if clone.NATS.Password != "" {
		clone.NATS.Password = "[REDACTED]"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "[REDACTED]"
	}
	if clone.Auth.Secret != "" {
		clone.Auth.Secret = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(&clone, "", "  ")
	return string(data)
}
