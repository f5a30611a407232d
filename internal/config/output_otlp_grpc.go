package config

import (
	"fmt"
	"time"
)

// Default OTLP gRPC output values applied when the configuration leaves
// them unset.
const (
	DefaultOTLPGrpcHost               = "localhost"
	DefaultOTLPGrpcPort               = 4317
	DefaultOTLPGrpcWorkers            = 1
	DefaultOTLPGrpcBatchTimeout       = 5 * time.Second
	DefaultOTLPGrpcMaxExportBatchSize = 512
)

// OTLPGrpcOutputConfig contains configuration for OTLP gRPC output
type OTLPGrpcOutputConfig struct {
	// Host is the target host for OTLP gRPC connections
	Host string `yaml:"host,omitempty" mapstructure:"host,omitempty"`
	// Port is the target port for OTLP gRPC connections
	Port int `yaml:"port,omitempty" mapstructure:"port,omitempty"`
	// Workers is the number of worker goroutines for OTLP gRPC output
	Workers int `yaml:"workers,omitempty" mapstructure:"workers,omitempty"`
	// BatchTimeout is the timeout for batching log records
	BatchTimeout time.Duration `yaml:"batchTimeout,omitempty" mapstructure:"batchTimeout,omitempty"`
	// MaxExportBatchSize is the maximum batch size for export
	MaxExportBatchSize int `yaml:"maxExportBatchSize,omitempty" mapstructure:"maxExportBatchSize,omitempty"`
	// Insecure uses insecure transport credentials (no TLS)
	Insecure bool `yaml:"insecure,omitempty" mapstructure:"insecure,omitempty"`

	TLS `yaml:",inline"`
}

// Validate validates the OTLP gRPC output configuration
func (c *OTLPGrpcOutputConfig) Validate() error {
	if err := ValidateHost(c.Host); err != nil {
		return fmt.Errorf("OTLP gRPC output host validation failed: %w", err)
	}

	if err := ValidatePort(c.Port); err != nil {
		return fmt.Errorf("OTLP gRPC output port validation failed: %w", err)
	}

	if c.Workers < 0 {
		return fmt.Errorf("OTLP gRPC output workers cannot be negative, got %d", c.Workers)
	}

	if c.BatchTimeout < 0 {
		return fmt.Errorf("OTLP gRPC output batch timeout cannot be negative, got %v", c.BatchTimeout)
	}

	if c.MaxExportBatchSize < 0 {
		return fmt.Errorf("OTLP gRPC output max export batch size cannot be negative, got %d", c.MaxExportBatchSize)
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("OTLP gRPC output TLS validation failed: %w", err)
	}

	return nil
}
