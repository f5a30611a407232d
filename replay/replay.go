// Package replay reconstructs the relative timing of an archived event
// sequence and plays it back onto a synthetic replay clock at an
// arbitrary speed multiplier, with optional looping and filtering.
package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/output"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// State is the playback lifecycle state.
type State string

const (
	// StateIdle means no replay session exists.
	StateIdle State = "idle"
	// StateLoading means events are being loaded and filtered.
	StateLoading State = "loading"
	// StatePlaying means the playback loop is delivering events.
	StatePlaying State = "playing"
	// StateCompleted means playback reached the end of the sequence.
	StateCompleted State = "completed"
	// StateAborted means playback was stopped before completion.
	StateAborted State = "aborted"
)

const (
	// MinEventGap floors the computed delay between consecutive replay
	// deliveries when original timestamps are duplicated or out of
	// order, guaranteeing forward progress without a delivery storm.
	MinEventGap = 10 * time.Millisecond

	// minStepWait is the smallest wait scheduled between steps.
	minStepWait = time.Millisecond

	// loopPause separates loop iterations, giving downstream consumers
	// a visible loop boundary.
	loopPause = 500 * time.Millisecond

	// DefaultSpeed is the playback speed multiplier when none is set.
	DefaultSpeed = 1.0

	deliveryTimeout = 5 * time.Second
)

// Options configures a replay session.
type Options struct {
	// Speed is the playback speed multiplier. 2.0 plays twice as fast
	// as the original recording. Zero means DefaultSpeed.
	Speed float64

	// Loop restarts playback from the beginning after the last event,
	// re-anchoring the replay clock.
	Loop bool

	// Filter restricts which historical events are played. Nil plays
	// everything.
	Filter *Filter

	// TimeRange is pushed down to the store to bound the initial load.
	TimeRange TimeRange
}

// Status is a point-in-time view of the replay session.
type Status struct {
	State           State   `json:"state"`
	IsReplaying     bool    `json:"isReplaying"`
	TotalEvents     int     `json:"totalEvents"`
	CurrentIndex    int     `json:"currentIndex"`
	ProgressPercent float64 `json:"progressPercent"`
	Speed           float64 `json:"speed"`
	Loop            bool    `json:"loop"`
}

// Scheduler owns one replay session at a time and drives a single
// serialized playback loop.
type Scheduler struct {
	logger *zap.Logger
	store  Store
	sink   output.Writer
	meter  metric.Meter

	mu     sync.Mutex
	state  State
	events []HistoricalEvent
	cursor int
	speed  float64
	loop   bool
	cancel context.CancelFunc
	done   chan struct{}

	// Metrics
	eventsReplayed metric.Int64Counter
	deliveryErrors metric.Int64Counter
}

// NewScheduler creates a replay scheduler reading from store and
// delivering to sink.
func NewScheduler(logger *zap.Logger, store Store, sink output.Writer) (*Scheduler, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}

	meter := otel.Meter("logforge-replay-scheduler")

	eventsReplayed, err := meter.Int64Counter(
		"logforge.replay.events.replayed",
		metric.WithDescription("Total number of events delivered by replay"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events replayed counter: %w", err)
	}

	deliveryErrors, err := meter.Int64Counter(
		"logforge.replay.delivery.errors",
		metric.WithDescription("Total number of sink delivery errors during replay"),
	)
	if err != nil {
		return nil, fmt.Errorf("create delivery errors counter: %w", err)
	}

	return &Scheduler{
		logger:         logger.Named("replay-scheduler"),
		store:          store,
		sink:           sink,
		meter:          meter,
		state:          StateIdle,
		eventsReplayed: eventsReplayed,
		deliveryErrors: deliveryErrors,
	}, nil
}

// Start loads, filters and sorts the historical sequence, then begins
// playback. Start fails without entering Playing when the session is
// already active, the load fails, or the filtered set is empty.
func (s *Scheduler) Start(ctx context.Context, opts Options) error {
	speed := opts.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	if speed < 0 {
		return fmt.Errorf("speed must be positive, got %v", speed)
	}

	s.mu.Lock()
	if s.state == StateLoading || s.state == StatePlaying {
		s.mu.Unlock()
		return fmt.Errorf("replay already in progress")
	}
	s.state = StateLoading
	s.mu.Unlock()

	events, err := s.load(ctx, opts)
	if err != nil {
		s.setState(StateIdle)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.events = events
	s.cursor = 0
	s.speed = speed
	s.loop = opts.Loop
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StatePlaying
	s.mu.Unlock()

	s.logger.Info("Starting replay",
		zap.Int("total_events", len(events)),
		zap.Float64("speed", speed),
		zap.Bool("loop", opts.Loop),
	)

	go s.run(runCtx)
	return nil
}

// load reads the archive, applies filters and verifies sort order.
func (s *Scheduler) load(ctx context.Context, opts Options) ([]HistoricalEvent, error) {
	loaded, err := s.store.LoadEvents(ctx, opts.TimeRange)
	if err != nil {
		return nil, fmt.Errorf("load historical events: %w", err)
	}

	events := loaded
	if opts.Filter != nil {
		events = make([]HistoricalEvent, 0, len(loaded))
		for _, he := range loaded {
			if opts.Filter.Matches(he) {
				events = append(events, he)
			}
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("no historical events matched the replay filters")
	}

	// Sort order is verified, not assumed. Stable keeps same-timestamp
	// events in archive order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OriginalTimestamp.Before(events[j].OriginalTimestamp)
	})

	return events, nil
}

// Stop aborts playback. Once Stop returns, no further deliveries occur
// and any in-flight delivery has settled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info("Replay stopped")
}

// Status reports the last-known session state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.events)
	progress := 0.0
	if total > 0 {
		progress = float64(s.cursor) / float64(total) * 100
	}
	if s.state == StateCompleted {
		progress = 100
	}

	return Status{
		State:           s.state,
		IsReplaying:     s.state == StatePlaying,
		TotalEvents:     total,
		CurrentIndex:    s.cursor,
		ProgressPercent: progress,
		Speed:           s.speed,
		Loop:            s.loop,
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) advanceCursor(cursor int) {
	s.mu.Lock()
	s.cursor = cursor
	s.mu.Unlock()
}

// run is the playback loop. It is an explicit cancellable timer loop;
// each iteration delivers the event at the cursor and schedules the
// next step from the time-scaled gap between original timestamps.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	// Anchor both clocks at the start of the session. Loop restarts
	// re-anchor so delivered timestamps keep increasing.
	replayStart := time.Now()
	originStart := s.events[0].OriginalTimestamp
	cursor := 0

	// Fires immediately for the first event.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateAborted)
			return
		case <-timer.C:
		}

		he := s.events[cursor]
		s.deliver(ctx, he, replayStart, originStart)

		cursor++
		s.advanceCursor(cursor)

		if cursor >= len(s.events) {
			if !s.loop {
				s.setState(StateCompleted)
				s.logger.Info("Replay completed", zap.Int("events", len(s.events)))
				return
			}

			// Loop boundary: brief pause, then restart with both
			// clocks re-anchored.
			select {
			case <-ctx.Done():
				s.setState(StateAborted)
				return
			case <-time.After(loopPause):
			}

			cursor = 0
			s.advanceCursor(cursor)
			replayStart = time.Now()
			s.logger.Debug("Replay loop restarting")
			timer.Reset(0)
			continue
		}

		timer.Reset(s.nextDelay(he, s.events[cursor]))
	}
}

// deliver rewrites the event onto the replay clock, tags it and writes
// it to the sink. Delivery failures are counted and never stop playback.
func (s *Scheduler) deliver(ctx context.Context, he HistoricalEvent, replayStart time.Time, originStart time.Time) {
	elapsedOriginal := he.OriginalTimestamp.Sub(originStart)
	elapsedReplay := time.Duration(float64(elapsedOriginal) / s.speed)

	ev := he.Payload
	ev.Timestamp = replayStart.Add(elapsedReplay)
	ev.Replay = &event.ReplayTag{
		Replay:            true,
		OriginalTimestamp: he.OriginalTimestamp,
		Speed:             s.speed,
	}

	writeCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	err := s.sink.Write(writeCtx, ev)
	cancel()
	if err != nil {
		s.deliveryErrors.Add(context.Background(), 1, replayAttrs)
		s.logger.Error("Failed to deliver replayed event",
			zap.String("event_id", ev.ID),
			zap.Error(err))
		return
	}
	s.eventsReplayed.Add(context.Background(), 1, replayAttrs)
}

// nextDelay computes the time-scaled wait before the next event. A
// non-positive gap (duplicate or out-of-order original timestamps) is
// floored to MinEventGap.
func (s *Scheduler) nextDelay(current, next HistoricalEvent) time.Duration {
	gap := next.OriginalTimestamp.Sub(current.OriginalTimestamp)
	delay := time.Duration(float64(gap) / s.speed)
	if delay <= 0 {
		return MinEventGap
	}
	if delay < minStepWait {
		return minStepWait
	}
	return delay
}

var replayAttrs = metric.WithAttributeSet(
	attribute.NewSet(
		attribute.String("component", "replay_scheduler"),
	),
)
