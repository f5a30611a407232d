package replay

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/logforge/logforge/event"
	"go.uber.org/zap"
)

// maxArchiveLineSize bounds a single archived event line.
const maxArchiveLineSize = 1024 * 1024

// HistoricalEvent is one archived event together with its original
// timestamp, on which all replay timing is computed.
type HistoricalEvent struct {
	OriginalTimestamp time.Time
	Payload           event.Event
}

// TimeRange bounds a historical load. Zero values are unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Covers reports whether the timestamp falls inside the range.
func (r TimeRange) Covers(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

// Store reads archived events. Implementations must return events
// carrying their original timestamps; sort order is re-verified by the
// scheduler, not assumed.
type Store interface {
	LoadEvents(ctx context.Context, tr TimeRange) ([]HistoricalEvent, error)
}

// FileStore reads newline-delimited JSON archives written by the sinks.
type FileStore struct {
	logger *zap.Logger
	path   string
}

// NewFileStore creates a store reading from the archive at path.
func NewFileStore(logger *zap.Logger, path string) (*FileStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if path == "" {
		return nil, fmt.Errorf("archive path cannot be empty")
	}

	return &FileStore{
		logger: logger.Named("replay-store"),
		path:   path,
	}, nil
}

// LoadEvents reads the whole archive, skipping malformed lines and
// events outside the time range.
func (f *FileStore) LoadEvents(ctx context.Context, tr TimeRange) ([]HistoricalEvent, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", f.path, err)
	}
	defer file.Close()

	var events []HistoricalEvent
	var malformed int

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArchiveLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load cancelled: %w", err)
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := event.Decode(line)
		if err != nil {
			malformed++
			continue
		}

		if !tr.Covers(ev.Timestamp) {
			continue
		}

		events = append(events, HistoricalEvent{
			OriginalTimestamp: ev.Timestamp,
			Payload:           ev,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s: %w", f.path, err)
	}

	if malformed > 0 {
		f.logger.Warn("Skipped malformed archive lines",
			zap.String("path", f.path),
			zap.Int("count", malformed))
	}

	f.logger.Info("Loaded historical events",
		zap.String("path", f.path),
		zap.Int("count", len(events)))

	return events, nil
}
