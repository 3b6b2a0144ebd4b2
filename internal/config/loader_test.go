package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Recovery.MaxServersPerWave != 100 {
		t.Errorf("expected max_servers_per_wave 100, got %d", cfg.Recovery.MaxServersPerWave)
	}
	if cfg.Recovery.FailedWaveCredit != 0.5 {
		t.Errorf("expected failed_wave_credit 0.5, got %v", cfg.Recovery.FailedWaveCredit)
	}
	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Monitor.PollInterval)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
postgres:
  max_conns: 20
recovery:
  max_servers_per_wave: 50
  disallow_cancel_on_final_wave: true
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://example.com" {
		t.Errorf("expected cors http://example.com, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Recovery.MaxServersPerWave != 50 {
		t.Errorf("expected max_servers_per_wave 50, got %d", cfg.Recovery.MaxServersPerWave)
	}
	if !cfg.Recovery.DisallowCancelOnFinalWave {
		t.Error("expected disallow_cancel_on_final_wave true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("DRSORCH_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("DRSORCH_PG_MAX_CONNS", "25")
	t.Setenv("DRSORCH_LOG_LEVEL", "warn")
	t.Setenv("DRSORCH_FAILED_WAVE_CREDIT", "0.25")
	t.Setenv("DRSORCH_BREAKER_TIMEOUT", "1m")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Recovery.FailedWaveCredit != 0.25 {
		t.Errorf("expected failed_wave_credit 0.25, got %v", cfg.Recovery.FailedWaveCredit)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
}

func TestClampMonitor(t *testing.T) {
	cfg := Defaults()
	cfg.Monitor.PollInterval = time.Second
	clampMonitor(&cfg.Monitor)
	if cfg.Monitor.PollInterval != 3*time.Second {
		t.Errorf("expected poll interval clamped to 3s, got %v", cfg.Monitor.PollInterval)
	}

	cfg.Monitor.PollInterval = time.Minute
	clampMonitor(&cfg.Monitor)
	if cfg.Monitor.PollInterval != 15*time.Second {
		t.Errorf("expected poll interval clamped to 15s, got %v", cfg.Monitor.PollInterval)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "empty backend URL",
			modify: func(c *Config) { c.Backend.URL = "" },
			errMsg: "backend.url is required",
		},
		{
			name:   "zero server quota",
			modify: func(c *Config) { c.Recovery.MaxServersPerWave = 0 },
			errMsg: "recovery.max_servers_per_wave must be >= 1",
		},
		{
			name:   "credit out of range",
			modify: func(c *Config) { c.Recovery.FailedWaveCredit = 1.5 },
			errMsg: "recovery.failed_wave_credit must be in [0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}
