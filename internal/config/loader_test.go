package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected path %q", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.Server.Addr != def.Server.Addr || cfg.Live.OpTimeout != def.Live.OpTimeout {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Live.ResetOnStart {
		t.Fatalf("expected reset_on_start to default to true")
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9000"
live:
  op_timeout: 2s
store:
  driver: mongo
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("EVENTLIFY_SERVER_ADDR", ":9100")
	t.Setenv("EVENTLIFY_AUTH_JWT_SECRET", "from-env")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Fatalf("env should override file, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("env should override default, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Live.OpTimeout != 2*time.Second {
		t.Fatalf("file should override default, got %v", cfg.Live.OpTimeout)
	}
	if cfg.Store.Driver != "mongo" {
		t.Fatalf("unexpected driver %q", cfg.Store.Driver)
	}
	if cfg.Live.ClientBuffer != Default().Live.ClientBuffer {
		t.Fatalf("missing keys should keep defaults, got %d", cfg.Live.ClientBuffer)
	}
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{
		Server: ServerConfig{Addr: ":1234"},
		Log:    LogConfig{Level: "debug"},
	})

	if cfg.Server.Addr != ":1234" || cfg.Log.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.ShutdownTimeout != Default().Server.ShutdownTimeout {
		t.Fatalf("zero values must not override")
	}
}
