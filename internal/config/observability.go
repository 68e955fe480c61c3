package config

import "fmt"

// ObservabilityConfig controls the optional New Relic integration. Disabled
// by default; when enabled a license key is mandatory.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled"`
	LicenseKey  string `koanf:"license_key"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

// DefaultObservabilityConfig returns the disabled configuration.
func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{Enabled: false}
}

// Validate checks internal consistency.
func (o *ObservabilityConfig) Validate() error {
	if o.Enabled && o.LicenseKey == "" {
		return fmt.Errorf("observability enabled but license key is empty")
	}
	return nil
}
