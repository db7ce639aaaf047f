// Package config handles configuration management for devhost.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Ports   PortsConfig   `mapstructure:"ports"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PortsConfig holds the allocation range and the statically reserved set.
type PortsConfig struct {
	Min      int   `mapstructure:"min"`
	Max      int   `mapstructure:"max"`
	Reserved []int `mapstructure:"reserved"`
}

// ProxyConfig holds the reverse-proxy registration directory.
type ProxyConfig struct {
	Dir string `mapstructure:"dir"`
}

// LedgerConfig holds the shared registration ledger location.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds the default dev-server command to supervise.
type ServerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultReservedPorts are never handed out: the fixed dev-server
// default and the screenshot-capture port used by the OG image pipeline.
var DefaultReservedPorts = []int{4400, 4455}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.devhost")
		v.AddConfigPath("/etc/devhost")
	}

	// Environment variable prefix: DEVHOST_PORTS_MIN, DEVHOST_PROXY_DIR, ...
	v.SetEnvPrefix("DEVHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Post-process configuration
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Port range defaults
	v.SetDefault("ports.min", 4400)
	v.SetDefault("ports.max", 5400)
	v.SetDefault("ports.reserved", DefaultReservedPorts)

	// Proxy registration directory default
	v.SetDefault("proxy.dir", "~/.devproxy")

	// Ledger defaults
	v.SetDefault("ledger.path", "~/.devhost/ledger.json")

	// Dev-server defaults
	v.SetDefault("server.command", "npm")
	v.SetDefault("server.args", []string{"run", "dev"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	var err error

	cfg.Proxy.Dir, err = expandPath(cfg.Proxy.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve proxy dir: %w", err)
	}

	cfg.Ledger.Path, err = expandPath(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve ledger path: %w", err)
	}

	return nil
}

// expandPath expands a leading ~ and resolves to an absolute path.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Abs(path)
}

// ReservedSet returns the reserved ports as a lookup set.
func (p *PortsConfig) ReservedSet() map[int]bool {
	set := make(map[int]bool, len(p.Reserved))
	for _, port := range p.Reserved {
		set[port] = true
	}
	return set
}

// Contains reports whether port lies within the configured inclusive range.
func (p *PortsConfig) Contains(port int) bool {
	return port >= p.Min && port <= p.Max
}

// GetConfigDir returns the user config directory for devhost.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".devhost"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
