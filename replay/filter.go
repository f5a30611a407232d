package replay

import "time"

// Filter restricts which historical events are played back. All set
// criteria are AND-combined; an empty criterion matches everything.
type Filter struct {
	// Sources matches the event's source name.
	Sources []string
	// Categories matches the event's category.
	Categories []string
	// Levels matches the event's severity level.
	Levels []string
	// From excludes events with original timestamps before it.
	From time.Time
	// To excludes events with original timestamps after it.
	To time.Time
}

// Matches reports whether the historical event passes every set criterion.
func (f *Filter) Matches(he HistoricalEvent) bool {
	if !contains(f.Sources, he.Payload.Source) {
		return false
	}
	if !contains(f.Categories, he.Payload.Category) {
		return false
	}
	if !contains(f.Levels, he.Payload.Level) {
		return false
	}
	if !f.From.IsZero() && he.OriginalTimestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && he.OriginalTimestamp.After(f.To) {
		return false
	}
	return true
}

// contains reports set membership, with the empty set matching all.
func contains(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
