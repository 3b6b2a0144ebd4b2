package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "drsorch.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	clampMonitor(&cfg.Monitor)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DRSORCH_PORT")
	setString(&cfg.Server.CORSOrigin, "DRSORCH_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DRSORCH_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DRSORCH_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DRSORCH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DRSORCH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DRSORCH_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Backend.URL, "DRSORCH_BACKEND_URL")
	setString(&cfg.Backend.APIKey, "DRSORCH_BACKEND_API_KEY")
	setDuration(&cfg.Backend.Timeout, "DRSORCH_BACKEND_TIMEOUT")
	setDuration(&cfg.Monitor.PollInterval, "DRSORCH_POLL_INTERVAL")
	setDuration(&cfg.Monitor.JobLogCacheTTL, "DRSORCH_JOB_LOG_CACHE_TTL")
	setInt64(&cfg.Monitor.CacheSizeMB, "DRSORCH_CACHE_SIZE_MB")
	setInt(&cfg.Recovery.MaxServersPerWave, "DRSORCH_MAX_SERVERS_PER_WAVE")
	setFloat64(&cfg.Recovery.FailedWaveCredit, "DRSORCH_FAILED_WAVE_CREDIT")
	setBool(&cfg.Recovery.DisallowCancelOnFinalWave, "DRSORCH_DISALLOW_CANCEL_ON_FINAL_WAVE")
	setString(&cfg.Logging.Level, "DRSORCH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DRSORCH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DRSORCH_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "DRSORCH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DRSORCH_BREAKER_TIMEOUT")
	setBool(&cfg.Telemetry.Enabled, "DRSORCH_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "DRSORCH_TELEMETRY_INSECURE")
}

// clampMonitor bounds the poll interval to the supported window.
func clampMonitor(m *Monitor) {
	if m.MinPollInterval <= 0 {
		m.MinPollInterval = 3 * time.Second
	}
	if m.MaxPollInterval < m.MinPollInterval {
		m.MaxPollInterval = m.MinPollInterval
	}
	if m.PollInterval < m.MinPollInterval {
		m.PollInterval = m.MinPollInterval
	}
	if m.PollInterval > m.MaxPollInterval {
		m.PollInterval = m.MaxPollInterval
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Recovery.MaxServersPerWave < 1 {
		return errors.New("recovery.max_servers_per_wave must be >= 1")
	}
	if cfg.Recovery.FailedWaveCredit < 0 || cfg.Recovery.FailedWaveCredit > 1 {
		return errors.New("recovery.failed_wave_credit must be in [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
