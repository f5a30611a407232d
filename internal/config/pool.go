package config

import (
	"fmt"
	"time"
)

// Backpressure policies for the generation worker pool.
const (
	// BackpressureBlock waits for queue space, bounded by the enqueue timeout.
	BackpressureBlock = "block"
	// BackpressureDropOldest evicts the oldest queued task to make room.
	BackpressureDropOldest = "drop-oldest"
)

// Pool contains configuration for the generation worker pool.
type Pool struct {
	// Enabled routes batch production through the pool. When false,
	// batches are rendered inline on the scheduler tick.
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled,omitempty"`

	// Workers is the number of pool worker goroutines.
	Workers int `yaml:"workers,omitempty" mapstructure:"workers,omitempty"`

	// QueueSize is the task queue capacity.
	QueueSize int `yaml:"queueSize,omitempty" mapstructure:"queueSize,omitempty"`

	// Backpressure selects the behavior when the queue is full. One of:
	// block|drop-oldest.
	Backpressure string `yaml:"backpressure,omitempty" mapstructure:"backpressure,omitempty"`

	// EnqueueTimeout bounds the wait for queue space under the block policy.
	EnqueueTimeout time.Duration `yaml:"enqueueTimeout,omitempty" mapstructure:"enqueueTimeout,omitempty"`
}

// Validate validates the pool configuration.
func (p *Pool) Validate() error {
	if p.Workers < 0 {
		return fmt.Errorf("pool workers cannot be negative, got %d", p.Workers)
	}

	if p.QueueSize < 0 {
		return fmt.Errorf("pool queue size cannot be negative, got %d", p.QueueSize)
	}

	switch p.Backpressure {
	case "", BackpressureBlock, BackpressureDropOldest:
	default:
		return fmt.Errorf("invalid pool backpressure policy: %s, must be one of: block, drop-oldest", p.Backpressure)
	}

	if p.EnqueueTimeout < 0 {
		return fmt.Errorf("pool enqueue timeout cannot be negative, got %v", p.EnqueueTimeout)
	}

	return nil
}
