// Package config loads the ambient operational knobs a running hutz
// server needs that the distilled spec leaves to "configuration,
// packaging, example programs": timeouts, size limits, and the listen
// address, read from YAML with CLI flag overrides.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the knobs spec.md leaves external to the core:
// socket addressing, connection timeouts, and the size limits
// server.Processor enforces against the lexer's header buffer and the
// parsed Content-Length before reading a request body.
type ServerConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes"`
	MaxContentLength int64         `yaml:"max_content_length"`
	SnapshotPath     string        `yaml:"snapshot_path"`
	AdminAddr        string        `yaml:"admin_addr"`
	TLSCertFile      string        `yaml:"tls_cert_file"`
	TLSKeyFile       string        `yaml:"tls_key_file"`
}

// Default returns the configuration a fresh install runs with.
func Default() ServerConfig {
	return ServerConfig{
		ListenAddr:       ":8080",
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		MaxHeaderBytes:   1 << 16,
		MaxContentLength: 1 << 24,
		AdminAddr:        ":9090",
	}
}

// Load reads YAML configuration from path, falling back to Default for
// any field the file omits.
func Load(path string) (ServerConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// BindFlags registers CLI flag overrides for cfg's fields onto fs,
// mirroring the corpus's cobra/pflag command surfaces.
func BindFlags(fs *pflag.FlagSet, cfg *ServerConfig) {
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to listen on")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "per-connection read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-connection write timeout")
	fs.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", cfg.MaxHeaderBytes, "maximum header bytes accepted before aborting a request")
	fs.Int64Var(&cfg.MaxContentLength, "max-content-length", cfg.MaxContentLength, "maximum Content-Length accepted before aborting a request")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "optional bbolt path for resource registration snapshots")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "address serving /metrics and the websocket upgrade demo")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "optional TLS certificate file; enables TLS on the listen address")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "optional TLS private key file, required alongside tls-cert-file")
}
