package config

import (
	"github.com/northpeak-studio/devhost/internal/domain"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validatePorts(&cfg.Ports); err != nil {
		return err
	}

	if cfg.Proxy.Dir == "" {
		return domain.NewValidationError("proxy.dir", "must not be empty")
	}

	if cfg.Ledger.Path == "" {
		return domain.NewValidationError("ledger.path", "must not be empty")
	}

	return nil
}

func validatePorts(cfg *PortsConfig) error {
	if cfg.Min < 1024 || cfg.Min > 65535 {
		return domain.NewValidationError("ports.min", "must be between 1024 and 65535")
	}
	if cfg.Max < 1024 || cfg.Max > 65535 {
		return domain.NewValidationError("ports.max", "must be between 1024 and 65535")
	}
	if cfg.Min >= cfg.Max {
		return domain.NewValidationError("ports.min", "must be less than ports.max")
	}
	return nil
}
