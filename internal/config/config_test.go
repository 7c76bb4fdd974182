package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("default backend = %q", cfg.Store.Backend)
	}
	if cfg.Scheduler.TickIntervalSeconds != 3600 {
		t.Fatalf("default tick interval = %d", cfg.Scheduler.TickIntervalSeconds)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
}

func TestLoad_FileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.yaml")
	raw := `
server:
  port: 9090
store:
  backend: badger
  badger_path: /tmp/market-test
scheduler:
  tick_interval_seconds: 600
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "badger" || cfg.Store.BadgerPath != "/tmp/market-test" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Scheduler.TickIntervalSeconds != 600 {
		t.Fatalf("tick interval = %d", cfg.Scheduler.TickIntervalSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MARKET_HOST", "127.0.0.1")
	t.Setenv("MARKET_PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:7070" {
		t.Fatalf("addr = %q", cfg.Addr())
	}

	t.Setenv("MARKET_PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for bad MARKET_PORT")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "cassandra"
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	cfg = Default()
	cfg.Store.Backend = "badger"
	cfg.Store.BadgerPath = "  "
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for badger without path")
	}

	cfg = Default()
	cfg.Server.Port = 0
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for port 0")
	}

	cfg = Default()
	cfg.Scheduler.TickIntervalSeconds = 0
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for zero tick interval")
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
