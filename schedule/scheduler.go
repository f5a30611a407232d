package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/output"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	// DefaultGenerateTimeout bounds a single tick's batch production on
	// the worker pool. A pool that does not respond within this window
	// is treated as failed for that tick.
	DefaultGenerateTimeout = 5 * time.Second

	// DefaultDeliveryTimeout bounds a single sink delivery.
	DefaultDeliveryTimeout = 5 * time.Second
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPool routes batch production through a worker pool instead of
// rendering inline on the tick goroutine.
func WithPool(pool *Pool) SchedulerOption {
	return func(s *Scheduler) {
		s.pool = pool
	}
}

// Scheduler drives periodic event production for any number of
// independently configured sources. Each source runs its own tick loop
// sized by SelectBatchPlan; sources share nothing but the sink.
type Scheduler struct {
	logger *zap.Logger
	sink   output.Writer
	pool   *Pool
	meter  metric.Meter

	mu      sync.Mutex
	runners map[string]*sourceRunner

	// Metrics
	eventsGenerated metric.Int64Counter
	deliveryErrors  metric.Int64Counter
	generateErrors  metric.Int64Counter
}

type sourceState struct {
	spec event.SourceSpec
	plan BatchPlan
}

type sourceRunner struct {
	state    atomic.Pointer[sourceState]
	updateCh chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
}

// NewScheduler creates a frequency scheduler delivering to the given sink.
func NewScheduler(logger *zap.Logger, sink output.Writer, opts ...SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}

	meter := otel.Meter("logforge-frequency-scheduler")

	eventsGenerated, err := meter.Int64Counter(
		"logforge.scheduler.events.generated",
		metric.WithDescription("Total number of events generated"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events generated counter: %w", err)
	}

	deliveryErrors, err := meter.Int64Counter(
		"logforge.scheduler.delivery.errors",
		metric.WithDescription("Total number of sink delivery errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create delivery errors counter: %w", err)
	}

	generateErrors, err := meter.Int64Counter(
		"logforge.scheduler.generate.errors",
		metric.WithDescription("Total number of batch generation errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generate errors counter: %w", err)
	}

	s := &Scheduler{
		logger:          logger.Named("frequency-scheduler"),
		sink:            sink,
		meter:           meter,
		runners:         make(map[string]*sourceRunner),
		eventsGenerated: eventsGenerated,
		deliveryErrors:  deliveryErrors,
		generateErrors:  generateErrors,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start begins periodic production for the source. A malformed spec is
// rejected here and affects this source only. Disabled sources are
// rejected the same way; callers filter them out.
func (s *Scheduler) Start(spec event.SourceSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid source spec: %w", err)
	}
	if !spec.Enabled {
		return fmt.Errorf("source %s is disabled", spec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runners[spec.Name]; exists {
		return fmt.Errorf("source %s is already running", spec.Name)
	}

	plan := SelectBatchPlan(spec.Frequency)

	r := &sourceRunner{
		updateCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.state.Store(&sourceState{spec: spec, plan: plan})
	s.runners[spec.Name] = r

	s.logger.Info("Starting source",
		zap.String("source", spec.Name),
		zap.Float64("frequency", spec.Frequency),
		zap.Duration("tick_interval", plan.TickInterval),
		zap.Int("events_per_tick", plan.EventsPerTick),
	)

	go s.run(r)
	return nil
}

// UpdateSpec hot-swaps the spec and derived plan of a running source.
// The swap takes effect on the next tick; the in-flight tick completes
// against the old plan.
func (s *Scheduler) UpdateSpec(spec event.SourceSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid source spec: %w", err)
	}

	s.mu.Lock()
	r, ok := s.runners[spec.Name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("source %s is not running", spec.Name)
	}

	plan := SelectBatchPlan(spec.Frequency)
	r.state.Store(&sourceState{spec: spec, plan: plan})

	// Nudge the runner to pick up the new tick interval. The channel is
	// buffered; a pending nudge already covers this update.
	select {
	case r.updateCh <- struct{}{}:
	default:
	}

	s.logger.Info("Updated source",
		zap.String("source", spec.Name),
		zap.Float64("frequency", spec.Frequency),
		zap.Duration("tick_interval", plan.TickInterval),
		zap.Int("events_per_tick", plan.EventsPerTick),
	)
	return nil
}

// Stop halts production for one source. Stop is cooperative: any
// in-flight tick completes, and no tick fires after Stop returns.
func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	r, ok := s.runners[name]
	if ok {
		delete(s.runners, name)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("source %s is not running", name)
	}

	close(r.stopCh)
	<-r.done

	s.logger.Info("Stopped source", zap.String("source", name))
	return nil
}

// StopAll halts production for every running source.
func (s *Scheduler) StopAll(ctx context.Context) error {
	s.mu.Lock()
	runners := s.runners
	s.runners = make(map[string]*sourceRunner)
	s.mu.Unlock()

	for name, r := range runners {
		close(r.stopCh)
		select {
		case <-r.done:
		case <-ctx.Done():
			return fmt.Errorf("stop cancelled while waiting for source %s: %w", name, ctx.Err())
		}
	}

	s.logger.Info("All sources stopped")
	return nil
}

// Running reports the names of the sources currently scheduled.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.runners))
	for name := range s.runners {
		names = append(names, name)
	}
	return names
}

// run is the tick loop for one source.
func (s *Scheduler) run(r *sourceRunner) {
	defer close(r.done)

	st := r.state.Load()
	ticker := time.NewTicker(st.plan.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.updateCh:
			st = r.state.Load()
			ticker.Reset(st.plan.TickInterval)
		case <-ticker.C:
			s.emitBatch(r, st)
		}
	}
}

// emitBatch produces one tick's worth of events and delivers them to the
// sink. Generation and delivery failures are counted and logged; they
// never stop the tick loop.
func (s *Scheduler) emitBatch(r *sourceRunner, st *sourceState) {
	attrs := metric.WithAttributeSet(
		attribute.NewSet(
			attribute.String("component", "frequency_scheduler"),
			attribute.String("source", st.spec.Name),
		),
	)

	events, err := s.produce(st)
	if err != nil {
		s.generateErrors.Add(context.Background(), 1, attrs)
		s.logger.Error("Failed to generate batch",
			zap.String("source", st.spec.Name),
			zap.Error(err))
		return
	}

	for _, ev := range events {
		// Bail out between deliveries once the source is stopped; the
		// delivery already in flight settles before Stop returns.
		select {
		case <-r.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), DefaultDeliveryTimeout)
		err := s.sink.Write(ctx, ev)
		cancel()
		if err != nil {
			s.deliveryErrors.Add(context.Background(), 1, attrs)
			s.logger.Error("Failed to deliver event",
				zap.String("source", st.spec.Name),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			continue
		}
		s.eventsGenerated.Add(context.Background(), 1, attrs)
	}
}

// produce obtains the tick's batch, via the pool when configured or
// rendered inline otherwise.
func (s *Scheduler) produce(st *sourceState) ([]event.Event, error) {
	if s.pool == nil {
		return produceBatch(st.spec, st.plan.EventsPerTick), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultGenerateTimeout)
	defer cancel()
	return s.pool.Generate(ctx, st.spec, st.plan.EventsPerTick)
}
