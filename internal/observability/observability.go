// Package observability wires the optional New Relic application.
package observability

import (
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/harborlog/docsink/internal/config"
)

// NewApplication builds the New Relic application, or returns nil when
// observability is disabled.
func NewApplication(cfg *config.ObservabilityConfig) (*newrelic.Application, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.ServiceName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigEnabled(true),
		func(c *newrelic.Config) {
			c.Labels = map[string]string{"environment": cfg.Environment}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("new relic application: %w", err)
	}
	return app, nil
}
