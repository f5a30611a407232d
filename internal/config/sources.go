package config

import (
	"fmt"

	"github.com/logforge/logforge/event"
)

// Source contains configuration for one event source.
type Source struct {
	// Name uniquely identifies the source.
	Name string `yaml:"name" mapstructure:"name"`

	// Category groups related sources (firewall, ids, auth, ...).
	Category string `yaml:"category,omitempty" mapstructure:"category,omitempty"`

	// Enabled controls whether the source produces events.
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled,omitempty"`

	// Frequency is the target rate in events per minute.
	Frequency float64 `yaml:"frequency,omitempty" mapstructure:"frequency,omitempty"`

	// Templates is the set of templates events are rendered from.
	Templates []SourceTemplate `yaml:"templates,omitempty" mapstructure:"templates,omitempty"`
}

// SourceTemplate configures one event template.
type SourceTemplate struct {
	// Level is the severity for rendered events. Empty means INFO.
	Level string `yaml:"level,omitempty" mapstructure:"level,omitempty"`

	// Message is the message body, possibly containing placeholders
	// such as {{IP_ADDRESS}}, {{USER}}, {{HOSTNAME}} and {{PORT}}.
	Message string `yaml:"message" mapstructure:"message"`

	// IPs overrides the candidate IP addresses for {{IP_ADDRESS}}.
	IPs []string `yaml:"ips,omitempty" mapstructure:"ips,omitempty"`

	// Users overrides the candidate account names for {{USER}}.
	Users []string `yaml:"users,omitempty" mapstructure:"users,omitempty"`

	// Hostnames overrides the candidate hostnames for {{HOSTNAME}}.
	Hostnames []string `yaml:"hostnames,omitempty" mapstructure:"hostnames,omitempty"`

	// Ports overrides the candidate ports for {{PORT}}.
	Ports []int `yaml:"ports,omitempty" mapstructure:"ports,omitempty"`
}

// Validate validates the source configuration.
func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	if s.Frequency <= 0 {
		return fmt.Errorf("source %s frequency must be positive, got %v", s.Name, s.Frequency)
	}

	if s.Enabled && len(s.Templates) == 0 {
		return fmt.Errorf("enabled source %s must have at least one template", s.Name)
	}

	for i, tpl := range s.Templates {
		if tpl.Message == "" {
			return fmt.Errorf("source %s template %d: message cannot be empty", s.Name, i)
		}
	}

	return nil
}

// Spec converts the configuration into the immutable spec the scheduler
// consumes.
func (s *Source) Spec() event.SourceSpec {
	templates := make([]event.Template, 0, len(s.Templates))
	for _, tpl := range s.Templates {
		templates = append(templates, event.Template{
			Level:     tpl.Level,
			Message:   tpl.Message,
			IPs:       tpl.IPs,
			Users:     tpl.Users,
			Hostnames: tpl.Hostnames,
			Ports:     tpl.Ports,
		})
	}

	return event.SourceSpec{
		Name:      s.Name,
		Category:  s.Category,
		Enabled:   s.Enabled,
		Frequency: s.Frequency,
		Templates: templates,
	}
}
