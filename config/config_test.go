package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "dataloggerd", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "devices", cfg.NATS.DeviceBucket)
	assert.Equal(t, "datalogger.device.data", cfg.NATS.IngestSubject)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Std())
	assert.Equal(t, 32, cfg.Snapshot.Shards)

	// Defaults alone are not valid: the auth secret has no safe default.
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, claserr.ErrMissingConfig)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvPrefix+"_AUTH_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.Auth.Secret)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvPrefix+"_AUTH_SECRET", "test-secret")

	path := writeConfigFile(t, map[string]any{
		"http": map[string]any{"port": 9999},
		"nats": map[string]any{
			"url":            "nats://broker:4222",
			"reconnect_wait": "5s",
		},
		"gateway": map[string]any{"queue_size": 128},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait.Std())
	assert.Equal(t, 128, cfg.Gateway.QueueSize)

	// Untouched sections keep their defaults
	assert.Equal(t, "devices", cfg.NATS.DeviceBucket)
	assert.Equal(t, 4, cfg.Ingest.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvPrefix+"_AUTH_SECRET", "test-secret")
	t.Setenv(EnvPrefix+"_HTTP_PORT", "7777")
	t.Setenv(EnvPrefix+"_NATS_URL", "nats://env-broker:4222")

	path := writeConfigFile(t, map[string]any{
		"http": map[string]any{"port": 9999},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.HTTP.Port)
	assert.Equal(t, "nats://env-broker:4222", cfg.NATS.URL)
}

func TestLoad_InvalidEnvInteger(t *testing.T) {
	t.Setenv(EnvPrefix+"_AUTH_SECRET", "test-secret")
	t.Setenv(EnvPrefix+"_HTTP_PORT", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, claserr.ErrInvalidConfig)
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http": `), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.Secret = "s3cret"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Service.LogLevel = "verbose" },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "missing nats url",
			mutate:  func(c *Config) { c.NATS.URL = "" },
			wantErr: claserr.ErrMissingConfig,
		},
		{
			name:    "wrong nats scheme",
			mutate:  func(c *Config) { c.NATS.URL = "http://localhost:4222" },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "bucket name with spaces",
			mutate:  func(c *Config) { c.NATS.DeviceBucket = "my devices" },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "zero ingest workers",
			mutate:  func(c *Config) { c.Ingest.Workers = 0 },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "negative token ttl",
			mutate:  func(c *Config) { c.Auth.TokenTTL = Duration(-time.Hour) },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "zero gateway queue",
			mutate:  func(c *Config) { c.Gateway.QueueSize = 0 },
			wantErr: claserr.ErrInvalidConfig,
		},
		{
			name:    "zero snapshot shards",
			mutate:  func(c *Config) { c.Snapshot.Shards = 0 },
			wantErr: claserr.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidationErrorsClassifyFatal(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = "s3cret"
	cfg.HTTP.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, claserr.ErrorFatal, claserr.Classify(err))
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "duration string", input: `"90s"`, want: 90 * time.Second},
		{name: "hours", input: `"24h"`, want: 24 * time.Hour},
		{name: "raw nanoseconds", input: `1000000000`, want: time.Second},
		{name: "garbage string", input: `"soon"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = "hunter2"
	cfg.NATS.Password = "hunter2"

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = "s3cret"
	cfg.HTTP.Port = 8123

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.HTTP.Port)
	assert.Equal(t, cfg.NATS.IngestSubject, loaded.NATS.IngestSubject)
}

func writeConfigFile(t *testing.T, content map[string]any) string {
	t.Helper()
	data, err := json.Marshal(content)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}
