package config

import (
	"fmt"
	"time"
)

// Replay contains configuration for historical playback.
type Replay struct {
	// Enabled starts a replay session at service startup.
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled,omitempty"`

	// File is the path to the newline-delimited JSON archive.
	File string `yaml:"file,omitempty" mapstructure:"file,omitempty"`

	// Speed is the playback speed multiplier.
	Speed float64 `yaml:"speed,omitempty" mapstructure:"speed,omitempty"`

	// Loop restarts playback from the beginning after the last event.
	Loop bool `yaml:"loop,omitempty" mapstructure:"loop,omitempty"`

	// Sources restricts playback to these source names.
	Sources []string `yaml:"sources,omitempty" mapstructure:"sources,omitempty"`

	// Categories restricts playback to these categories.
	Categories []string `yaml:"categories,omitempty" mapstructure:"categories,omitempty"`

	// Levels restricts playback to these severity levels.
	Levels []string `yaml:"levels,omitempty" mapstructure:"levels,omitempty"`

	// From excludes events with original timestamps before it.
	From time.Time `yaml:"from,omitempty" mapstructure:"from,omitempty"`

	// To excludes events with original timestamps after it.
	To time.Time `yaml:"to,omitempty" mapstructure:"to,omitempty"`
}

// Validate validates the replay configuration.
func (r *Replay) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.File == "" {
		return fmt.Errorf("replay file cannot be empty when replay is enabled")
	}

	if r.Speed < 0 {
		return fmt.Errorf("replay speed must be positive, got %v", r.Speed)
	}

	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("replay time range is inverted: to %v before from %v", r.To, r.From)
	}

	return nil
}
