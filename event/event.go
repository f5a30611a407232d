// Package event defines the event model shared by the live generation
// and replay scheduling paths.
package event

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Severity levels recognized by templates and filters.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// ReplayTag marks an event as a replayed copy of a historical event.
type ReplayTag struct {
	Replay            bool      `json:"replay"`
	OriginalTimestamp time.Time `json:"originalTimestamp"`
	Speed             float64   `json:"replaySpeed"`
}

// Event is a single generated or replayed log event.
type Event struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Category  string     `json:"category,omitempty"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
	Replay    *ReplayTag `json:"replay,omitempty"`
}

// Encode encodes the event as a single JSON document.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Decode decodes a single JSON document into an event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// SourceSpec describes one configured event source. A spec is immutable
// after load; configuration updates replace it wholesale.
type SourceSpec struct {
	// Name uniquely identifies the source.
	Name string
	// Category groups related sources (firewall, ids, auth, ...).
	Category string
	// Enabled controls whether the source produces events.
	Enabled bool
	// Frequency is the target rate in events per minute.
	Frequency float64
	// Templates is the set of templates events are rendered from.
	Templates []Template
}

// Validate checks that the spec can drive event production.
func (s SourceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if s.Frequency <= 0 {
		return fmt.Errorf("source %s: frequency must be positive, got %v", s.Name, s.Frequency)
	}
	if s.Enabled && len(s.Templates) == 0 {
		return fmt.Errorf("source %s: enabled source must have at least one template", s.Name)
	}
	return nil
}

// New renders a new event from one of the spec's templates. The template
// is chosen at random; callers needing deterministic output should use
// Template.Render directly.
func New(spec SourceSpec, tpl Template) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    spec.Name,
		Category:  spec.Category,
		Level:     tpl.level(),
		Message:   tpl.render(),
	}
}
