package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_RCM_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":50052" {
		t.Fatalf("unexpected default address %q", cfg.Server.Address)
	}
	if cfg.Cache.Enabled || cfg.Cache.MemoTTL != 10*time.Minute {
		t.Fatalf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.Database.DSN != "" {
		t.Fatalf("database should default to in-memory records")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`server:
  address: ":6000"
policy:
  path: /etc/rcm/policy.yaml
  watch: true
cache:
  enabled: true
  addr: redis:6379
  memoTTL: 30s
database:
  dsn: postgres://localhost/rcm
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MIRADOR_RCM_SERVER_ADDRESS", ":7000")
	t.Setenv("MIRADOR_RCM_CACHE_MEMO_TTL", "1m")
	t.Setenv("MIRADOR_RCM_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Fatalf("env should override file address, got %q", cfg.Server.Address)
	}
	if !cfg.Policy.Watch || cfg.Policy.Path != "/etc/rcm/policy.yaml" {
		t.Fatalf("unexpected policy config %+v", cfg.Policy)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "redis:6379" || cfg.Cache.MemoTTL != time.Minute {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Cache.DialTimeout != 2*time.Second {
		t.Fatalf("defaults should survive partial files, got %v", cfg.Cache.DialTimeout)
	}
	if cfg.Database.DSN != "postgres://localhost/rcm" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if !cfg.Logging.JSON {
		t.Fatalf("expected json logging from env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
