package config

import (
	"fmt"
	"net"
)

// DefaultTelemetryAddress is the default listen address for the
// Prometheus metrics endpoint.
const DefaultTelemetryAddress = "localhost:8888"

// Telemetry contains configuration for the metrics exporter.
type Telemetry struct {
	// Enabled controls whether the Prometheus endpoint is served.
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled,omitempty"`

	// Address is the host:port the metrics endpoint listens on.
	Address string `yaml:"address,omitempty" mapstructure:"address,omitempty"`
}

// Validate validates the telemetry configuration.
func (t *Telemetry) Validate() error {
	if !t.Enabled || t.Address == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(t.Address); err != nil {
		return fmt.Errorf("telemetry address must be host:port, got %s: %w", t.Address, err)
	}

	return nil
}
