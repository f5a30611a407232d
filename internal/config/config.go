// Package config contains the top level configuration structures and logic
package config

import (
	"fmt"
	"time"
)

// Config is the configuration for logforge.
type Config struct {
	// Logging configuration for the logger
	Logging Logging `yaml:"logging,omitempty" mapstructure:"logging,omitempty"`
	// Telemetry configuration for the metrics exporter
	Telemetry Telemetry `yaml:"telemetry,omitempty" mapstructure:"telemetry,omitempty"`
	// Pool configuration for the generation worker pool
	Pool Pool `yaml:"pool,omitempty" mapstructure:"pool,omitempty"`
	// Sources is the set of configured event sources
	Sources []Source `yaml:"sources,omitempty" mapstructure:"sources,omitempty"`
	// Replay configuration for historical playback
	Replay Replay `yaml:"replay,omitempty" mapstructure:"replay,omitempty"`
	// Output configuration
	Output Output `yaml:"output,omitempty" mapstructure:"output,omitempty"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("duplicate source name: %s", src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	if err := c.Replay.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	return nil
}

// NewConfig returns a new config
func NewConfig() *Config {
	return &Config{}
}

// ApplyDefaults applies default values to the configuration
func (c *Config) ApplyDefaults() {
	// Apply logging defaults
	if c.Logging.Type == "" {
		c.Logging.Type = LoggingTypeStdout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}

	// Apply telemetry defaults
	if c.Telemetry.Address == "" {
		c.Telemetry.Address = DefaultTelemetryAddress
	}

	// Apply pool defaults
	if c.Pool.Workers == 0 {
		c.Pool.Workers = DefaultPoolWorkers
	}
	if c.Pool.QueueSize == 0 {
		c.Pool.QueueSize = DefaultPoolQueueSize
	}
	if c.Pool.Backpressure == "" {
		c.Pool.Backpressure = BackpressureBlock
	}
	if c.Pool.EnqueueTimeout == 0 {
		c.Pool.EnqueueTimeout = DefaultPoolEnqueueTimeout
	}

	// Apply replay defaults
	if c.Replay.Speed == 0 {
		c.Replay.Speed = 1
	}

	// Apply output defaults
	if c.Output.Type == "" {
		c.Output.Type = OutputTypeNop
	}
	if c.Output.TCP.Workers == 0 {
		c.Output.TCP.Workers = 1
	}
	if c.Output.UDP.Workers == 0 {
		c.Output.UDP.Workers = 1
	}
	if c.Output.OTLPGrpc.Host == "" {
		c.Output.OTLPGrpc.Host = DefaultOTLPGrpcHost
	}
	if c.Output.OTLPGrpc.Port == 0 {
		c.Output.OTLPGrpc.Port = DefaultOTLPGrpcPort
	}
	if c.Output.OTLPGrpc.Workers == 0 {
		c.Output.OTLPGrpc.Workers = DefaultOTLPGrpcWorkers
	}
	if c.Output.OTLPGrpc.BatchTimeout == 0 {
		c.Output.OTLPGrpc.BatchTimeout = DefaultOTLPGrpcBatchTimeout
	}
	if c.Output.OTLPGrpc.MaxExportBatchSize == 0 {
		c.Output.OTLPGrpc.MaxExportBatchSize = DefaultOTLPGrpcMaxExportBatchSize
	}
}

// Default pool values applied when the configuration leaves them unset.
const (
	DefaultPoolWorkers        = 4
	DefaultPoolQueueSize      = 64
	DefaultPoolEnqueueTimeout = 5 * time.Second
)
