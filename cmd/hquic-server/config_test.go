package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
address: "127.0.0.1:9443"
hosts: [example.test]
protocols: [h3, h3-29]
idle_timeout: 45s
keep_alive: 10
protocol_log: /tmp/events.hqlog
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Address != "127.0.0.1:9443" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if len(cfg.Protocols) != 2 || cfg.Protocols[0] != "h3" {
		t.Errorf("Protocols = %v", cfg.Protocols)
	}
	if time.Duration(cfg.IdleTimeout) != 45*time.Second {
		t.Errorf("IdleTimeout = %v, want 45s", time.Duration(cfg.IdleTimeout))
	}
	// Bare numbers are seconds
	if time.Duration(cfg.KeepAlive) != 10*time.Second {
		t.Errorf("KeepAlive = %v, want 10s", time.Duration(cfg.KeepAlive))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "address: \":5000\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Address != ":5000" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if len(cfg.Protocols) != 1 || cfg.Protocols[0] != "h3" {
		t.Errorf("Protocols = %v, want default [h3]", cfg.Protocols)
	}
	if time.Duration(cfg.IdleTimeout) != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want default 30s", time.Duration(cfg.IdleTimeout))
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "address: [unclosed"},
		{"bad duration", "idle_timeout: forever"},
		{"cert without key", "cert_file: server.pem"},
		{"empty protocols", "protocols: []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
