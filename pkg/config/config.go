// Package config loads SMSC configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// SMSC_* environment variables. Command-line flags are applied last by the
// caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ZentaChain/zentalk-smsc/pkg/api"
	"github.com/ZentaChain/zentalk-smsc/pkg/logging"
	"github.com/ZentaChain/zentalk-smsc/pkg/network"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "SMSC"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete SMSC configuration
type Config struct {
	SIP     SIPConfig     `yaml:"sip"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`

	// HeartbeatInterval is how often statistics are logged; 0 disables it
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" split_words:"true"`
}

// SIPConfig configures the UDP listener
type SIPConfig struct {
	ListenAddr     string `yaml:"listen_addr" split_words:"true"`
	AdvertiseAddr  string `yaml:"advertise_addr" split_words:"true"`
	ReadBufferSize int    `yaml:"read_buffer_size" split_words:"true"`
	DefaultSender  string `yaml:"default_sender" split_words:"true"`
}

// APIConfig configures the HTTP control plane
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	EnableCORS bool   `yaml:"enable_cors" split_words:"true"`
}

// StorageConfig selects the backlog backend
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	relay := network.DefaultConfig()
	httpAPI := api.DefaultConfig()

	return &Config{
		SIP: SIPConfig{
			ListenAddr:     relay.ListenAddr,
			ReadBufferSize: relay.ReadBufferSize,
			DefaultSender:  relay.DefaultSender,
		},
		API: APIConfig{
			Enabled:    true,
			Port:       httpAPI.Port,
			EnableCORS: httpAPI.EnableCORS,
		},
		Storage: StorageConfig{
			Backend: storage.BackendMemory,
			DSN:     storage.DefaultSQLiteDSN,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
		HeartbeatInterval: time.Minute,
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// any) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := cfg.decodeYAML(file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays a YAML document onto cfg. Unknown keys are rejected.
func (c *Config) decodeYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(c)
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if err := validateListenAddr(c.SIP.ListenAddr); err != nil {
		return fmt.Errorf("%w: sip.listen_addr: %v", ErrInvalidConfig, err)
	}
	if c.SIP.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: sip.read_buffer_size must be positive", ErrInvalidConfig)
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return fmt.Errorf("%w: api.port %d out of range", ErrInvalidConfig, c.API.Port)
	}

	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: heartbeat_interval is negative", ErrInvalidConfig)
	}
	return nil
}

// validateListenAddr checks a host:port pair. Port 0 picks an ephemeral port.
func validateListenAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("bad port %q", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	return nil
}

// RelayConfig returns the relay server settings
func (c *Config) RelayConfig() *network.Config {
	return &network.Config{
		ListenAddr:     c.SIP.ListenAddr,
		AdvertiseAddr:  c.SIP.AdvertiseAddr,
		ReadBufferSize: c.SIP.ReadBufferSize,
		DefaultSender:  c.SIP.DefaultSender,
	}
}

// APIServerConfig returns the HTTP server settings
func (c *Config) APIServerConfig() *api.Config {
	httpAPI := api.DefaultConfig()
	httpAPI.Host = c.API.Host
	httpAPI.Port = c.API.Port
	httpAPI.EnableCORS = c.API.EnableCORS
	return httpAPI
}
