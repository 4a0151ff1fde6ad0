package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hquic-project/hquic-go/pkg/transport"
)

// Config holds the server configuration. Values from a config file are
// overridden by command-line flags.
type Config struct {
	// Address to listen on.
	Address string `yaml:"address"`

	// Hosts are the names placed in a generated certificate.
	Hosts []string `yaml:"hosts"`

	// CertFile and KeyFile are PEM files for a persistent credential.
	// Leave both empty to generate a self-signed credential on startup.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Protocols is the ordered ALPN identifier list.
	Protocols []string `yaml:"protocols"`

	// IdleTimeout closes connections with no activity.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// KeepAlive enables transport keepalives when non-zero.
	KeepAlive Duration `yaml:"keep_alive"`

	// ProtocolLog is the path for CBOR protocol events.
	ProtocolLog string `yaml:"protocol_log"`
}

// Duration is a time.Duration that unmarshals from YAML either as a
// Go duration string ("30s", "1m") or as a plain number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Address:     fmt.Sprintf(":%d", transport.DefaultPort),
		Hosts:       []string{"localhost", "127.0.0.1"},
		Protocols:   []string{transport.DefaultProtocol},
		IdleTimeout: Duration(30 * time.Second),
	}
}

// LoadConfig reads a YAML configuration file, filling unset fields with
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.CertFile != "" && cfg.KeyFile == "" || cfg.CertFile == "" && cfg.KeyFile != "" {
		return nil, fmt.Errorf("cert_file and key_file must be set together")
	}
	if len(cfg.Protocols) == 0 {
		return nil, fmt.Errorf("protocols must not be empty")
	}

	return cfg, nil
}

// applyFlags overrides file values with non-empty flag values.
func (c *Config) applyFlags(addr, certFile, keyFile, protocolLog string) {
	if addr != "" {
		c.Address = addr
	}
	if certFile != "" {
		c.CertFile = certFile
	}
	if keyFile != "" {
		c.KeyFile = keyFile
	}
	if protocolLog != "" {
		c.ProtocolLog = protocolLog
	}
}
