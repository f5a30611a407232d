// Package service wires the schedulers, worker pool and output
// together and manages their lifecycle.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/output"
	"github.com/logforge/logforge/replay"
	"github.com/logforge/logforge/schedule"
	"go.uber.org/zap"
)

const stopTimeout = 30 * time.Second

// Option configures optional service components.
type Option func(*Service)

// WithPool attaches a generation worker pool whose lifecycle the
// service manages.
func WithPool(pool *schedule.Pool) Option {
	return func(s *Service) {
		s.pool = pool
	}
}

// WithReplay attaches a replay session started alongside the
// frequency sources.
func WithReplay(scheduler *replay.Scheduler, opts replay.Options) Option {
	return func(s *Service) {
		s.replay = scheduler
		s.replayOpts = opts
	}
}

// Service runs the frequency scheduler, an optional replay session and
// the configured output as one unit.
type Service struct {
	logger    *zap.Logger
	scheduler *schedule.Scheduler
	output    output.Output
	sources   []event.SourceSpec

	pool       *schedule.Pool
	replay     *replay.Scheduler
	replayOpts replay.Options
}

// New creates a service driving the given sources through the
// scheduler into the output.
func New(logger *zap.Logger, scheduler *schedule.Scheduler, out output.Output, sources []event.SourceSpec, opts ...Option) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler cannot be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("output cannot be nil")
	}

	s := &Service{
		logger:    logger,
		scheduler: scheduler,
		output:    out,
		sources:   sources,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start starts every enabled source and, when configured, the replay
// session. A source that fails to start is logged and skipped so the
// remaining sources still run.
func (s *Service) Start(ctx context.Context) error {
	started := 0
	for _, spec := range s.sources {
		if err := s.scheduler.Start(spec); err != nil {
			s.logger.Error("failed to start source", zap.String("source", spec.Name), zap.Error(err))
			continue
		}
		started++
	}

	if started == 0 && len(s.sources) > 0 && s.replay == nil {
		return fmt.Errorf("no sources could be started")
	}

	if s.replay != nil {
		if err := s.replay.Start(ctx, s.replayOpts); err != nil {
			return fmt.Errorf("start replay: %w", err)
		}
	}

	s.logger.Info("service started",
		zap.Int("sources", started),
		zap.Bool("replay", s.replay != nil),
	)

	return nil
}

// UpdateSources reconciles the running sources against specs. Existing
// sources get their spec swapped in place, new ones are started and
// sources absent from specs are stopped.
func (s *Service) UpdateSources(specs []event.SourceSpec) {
	running := make(map[string]bool)
	for _, name := range s.scheduler.Running() {
		running[name] = true
	}

	desired := make(map[string]bool, len(specs))
	for _, spec := range specs {
		desired[spec.Name] = true

		var err error
		if running[spec.Name] {
			err = s.scheduler.UpdateSpec(spec)
		} else {
			err = s.scheduler.Start(spec)
		}
		if err != nil {
			s.logger.Error("failed to apply source update", zap.String("source", spec.Name), zap.Error(err))
		}
	}

	for name := range running {
		if !desired[name] {
			if err := s.scheduler.Stop(name); err != nil {
				s.logger.Error("failed to stop removed source", zap.String("source", name), zap.Error(err))
			}
		}
	}

	s.sources = specs
}

// Stop stops the service. Stop will block for up to 30 seconds.
// If a component does not stop within the timeout, an error is
// returned and the program can exit.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if s.replay != nil {
		s.replay.Stop()
	}

	if err := s.scheduler.StopAll(ctx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	if s.pool != nil {
		if err := s.pool.Stop(ctx); err != nil {
			return fmt.Errorf("stop pool: %w", err)
		}
	}

	if err := s.output.Stop(ctx); err != nil {
		return fmt.Errorf("stop output: %w", err)
	}

	return nil
}
