package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadWritesAndReadsDefaults(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.MaxConnections != def.MaxConnections || cfg.AdminUser != def.AdminUser {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	content := "addr: \":6000\"\nmax_connections: 7\nadmin_user: queen\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":6000" || cfg.MaxConnections != 7 || cfg.AdminUser != "queen" {
		t.Fatalf("config file values not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.CredentialsPath != Default().CredentialsPath {
		t.Fatalf("default not kept for unset key: %+v", cfg)
	}
}
