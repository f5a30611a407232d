package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/logforge/logforge/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BackpressurePolicy selects how Generate behaves when the task queue is full.
type BackpressurePolicy string

const (
	// BackpressureBlock makes Generate wait for queue space, bounded by
	// the enqueue timeout.
	BackpressureBlock BackpressurePolicy = "block"

	// BackpressureDropOldest makes Generate evict the oldest queued task
	// to make room. The evicted task fails with ErrTaskDropped.
	BackpressureDropOldest BackpressurePolicy = "drop-oldest"
)

const (
	// DefaultPoolWorkers is the default number of pool workers.
	DefaultPoolWorkers = 4

	// DefaultPoolQueueSize is the default task queue capacity.
	DefaultPoolQueueSize = 64

	// DefaultEnqueueTimeout bounds how long Generate waits for queue
	// space under the block policy.
	DefaultEnqueueTimeout = 5 * time.Second
)

var (
	// ErrTaskDropped is returned when a queued task was evicted under
	// the drop-oldest backpressure policy.
	ErrTaskDropped = errors.New("task dropped: queue full")

	// ErrPoolBusy is returned when the task queue stayed full past the
	// enqueue timeout under the block policy.
	ErrPoolBusy = errors.New("worker pool busy: enqueue timed out")

	// ErrPoolStopped is returned when the pool is shutting down.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Result is the outcome of one worker task. A task maps to exactly one
// result; tasks are never subdivided once dispatched.
type Result struct {
	Events   []event.Event
	WorkerID int
	Elapsed  time.Duration
	Err      error
}

type task struct {
	spec     event.SourceSpec
	count    int
	resultCh chan Result
	requeued bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets the task queue capacity.
func WithQueueSize(size int) PoolOption {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithBackpressure sets the backpressure policy and, for the block
// policy, the enqueue timeout.
func WithBackpressure(policy BackpressurePolicy, enqueueTimeout time.Duration) PoolOption {
	return func(p *Pool) {
		p.policy = policy
		if enqueueTimeout > 0 {
			p.enqueueTimeout = enqueueTimeout
		}
	}
}

// Pool is a fixed set of worker goroutines producing event batches from
// source templates. Workers pull tasks from a bounded queue; a panicking
// worker is respawned with exponential backoff and its in-flight task is
// requeued once before failing permanently.
type Pool struct {
	logger         *zap.Logger
	workers        int
	queueSize      int
	policy         BackpressurePolicy
	enqueueTimeout time.Duration

	tasks  chan *task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	meter  metric.Meter

	// Metrics
	tasksCompleted metric.Int64Counter
	tasksDropped   metric.Int64Counter
	workerRestarts metric.Int64Counter
}

// NewPool creates a pool and starts its workers.
func NewPool(logger *zap.Logger, workers int, opts ...PoolOption) (*Pool, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if workers < 1 {
		return nil, fmt.Errorf("workers must be 1 or greater, got %d", workers)
	}

	meter := otel.Meter("logforge-worker-pool")

	tasksCompleted, err := meter.Int64Counter(
		"logforge.pool.tasks.completed",
		metric.WithDescription("Total number of completed worker tasks"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tasks completed counter: %w", err)
	}

	tasksDropped, err := meter.Int64Counter(
		"logforge.pool.tasks.dropped",
		metric.WithDescription("Total number of tasks dropped under backpressure"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tasks dropped counter: %w", err)
	}

	workerRestarts, err := meter.Int64Counter(
		"logforge.pool.worker.restarts",
		metric.WithDescription("Total number of worker respawns after a crash"),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker restarts counter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		logger:         logger.Named("worker-pool"),
		workers:        workers,
		queueSize:      DefaultPoolQueueSize,
		policy:         BackpressureBlock,
		enqueueTimeout: DefaultEnqueueTimeout,
		ctx:            ctx,
		cancel:         cancel,
		meter:          meter,
		tasksCompleted: tasksCompleted,
		tasksDropped:   tasksDropped,
		workerRestarts: workerRestarts,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.tasks = make(chan *task, p.queueSize)

	p.logger.Info("Starting worker pool",
		zap.Int("workers", p.workers),
		zap.Int("queue_size", p.queueSize),
		zap.String("backpressure", string(p.policy)),
	)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}

	return p, nil
}

// Stop stops the pool and waits for workers to exit. Queued tasks that
// were never picked up fail with ErrPoolStopped via their result channel.
func (p *Pool) Stop(ctx context.Context) error {
	p.logger.Info("Stopping worker pool")

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("All pool workers stopped gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop cancelled due to context cancellation: %w", ctx.Err())
	}
}

// Generate produces count events from the spec's templates on a pool
// worker. The call suspends until the assigned worker responds, the
// context is done, or the backpressure policy rejects the task.
// Intra-batch ordering follows template rendering order.
func (p *Pool) Generate(ctx context.Context, spec event.SourceSpec, count int) ([]event.Event, error) {
	if count <= 0 {
		return nil, nil
	}
	if len(spec.Templates) == 0 {
		return nil, fmt.Errorf("source %s has no templates", spec.Name)
	}

	t := &task{
		spec:     spec,
		count:    count,
		resultCh: make(chan Result, 1),
	}

	if err := p.enqueue(ctx, t); err != nil {
		return nil, err
	}

	select {
	case res := <-t.resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Events, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while awaiting worker result: %w", ctx.Err())
	case <-p.ctx.Done():
		return nil, ErrPoolStopped
	}
}

// GenerateParallel divides totalCount evenly across all workers and
// awaits all results. Ordering across workers is not guaranteed; only
// ordering within a single worker's batch is preserved.
func (p *Pool) GenerateParallel(ctx context.Context, spec event.SourceSpec, totalCount int) ([]event.Event, error) {
	if totalCount <= 0 {
		return nil, nil
	}
	if len(spec.Templates) == 0 {
		return nil, fmt.Errorf("source %s has no templates", spec.Name)
	}

	per := totalCount / p.workers
	rem := totalCount % p.workers

	pending := make([]*task, 0, p.workers)
	for i := 0; i < p.workers; i++ {
		count := per
		if i < rem {
			count++
		}
		if count == 0 {
			continue
		}
		t := &task{
			spec:     spec,
			count:    count,
			resultCh: make(chan Result, 1),
		}
		if err := p.enqueue(ctx, t); err != nil {
			return nil, err
		}
		pending = append(pending, t)
	}

	events := make([]event.Event, 0, totalCount)
	for _, t := range pending {
		select {
		case res := <-t.resultCh:
			if res.Err != nil {
				return nil, res.Err
			}
			events = append(events, res.Events...)
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled while awaiting worker results: %w", ctx.Err())
		case <-p.ctx.Done():
			return nil, ErrPoolStopped
		}
	}

	return events, nil
}

// enqueue places a task on the queue according to the backpressure policy.
func (p *Pool) enqueue(ctx context.Context, t *task) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolStopped
	default:
	}

	switch p.policy {
	case BackpressureDropOldest:
		for {
			select {
			case p.tasks <- t:
				return nil
			default:
			}

			// Queue full. Evict the oldest queued task to make room.
			select {
			case old := <-p.tasks:
				p.tasksDropped.Add(ctx, 1, poolAttrs)
				p.logger.Warn("Dropped oldest queued task",
					zap.String("source", old.spec.Name),
					zap.Int("count", old.count))
				old.resultCh <- Result{Err: ErrTaskDropped}
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while enqueueing task: %w", ctx.Err())
			case <-p.ctx.Done():
				return ErrPoolStopped
			}
		}

	default: // BackpressureBlock
		timer := time.NewTimer(p.enqueueTimeout)
		defer timer.Stop()

		select {
		case p.tasks <- t:
			return nil
		case <-timer.C:
			return ErrPoolBusy
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while enqueueing task: %w", ctx.Err())
		case <-p.ctx.Done():
			return ErrPoolStopped
		}
	}
}

// runWorker runs one worker until shutdown, respawning the work loop with
// exponential backoff after a crash.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	backoffPolicy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.1),
		backoff.WithMaxElapsedTime(0),
	)

	for {
		crashed, err := p.workLoop(id)
		if err == nil {
			// Clean shutdown.
			return
		}

		p.workerRestarts.Add(context.Background(), 1, poolAttrs)
		p.logger.Error("Pool worker crashed",
			zap.Int("worker_id", id),
			zap.Error(err))

		if crashed != nil {
			p.retryOrFail(crashed, err)
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(backoffPolicy.NextBackOff()):
		}
	}
}

// retryOrFail requeues a crashed worker's task once; a second crash on
// the same task surfaces a permanent failure to the caller.
func (p *Pool) retryOrFail(t *task, cause error) {
	if t.requeued {
		t.resultCh <- Result{Err: fmt.Errorf("task failed permanently after retry: %w", cause)}
		return
	}
	t.requeued = true

	select {
	case p.tasks <- t:
		p.logger.Warn("Requeued task from crashed worker",
			zap.String("source", t.spec.Name),
			zap.Int("count", t.count))
	default:
		t.resultCh <- Result{Err: fmt.Errorf("task lost: queue full after worker crash: %w", cause)}
	}
}

// workLoop pulls and executes tasks until shutdown. A panic in task
// execution is recovered and reported along with the in-flight task.
func (p *Pool) workLoop(id int) (crashed *task, err error) {
	var current *task
	defer func() {
		if r := recover(); r != nil {
			crashed = current
			err = fmt.Errorf("worker %d panic: %v", id, r)
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			p.drainPending()
			return nil, nil
		case t := <-p.tasks:
			current = t
			start := time.Now()
			events := produceBatch(t.spec, t.count)
			current = nil

			t.resultCh <- Result{
				Events:   events,
				WorkerID: id,
				Elapsed:  time.Since(start),
			}
			p.tasksCompleted.Add(context.Background(), 1, poolAttrs)
		}
	}
}

// drainPending fails queued tasks that will never run because the pool
// is stopping.
func (p *Pool) drainPending() {
	for {
		select {
		case t := <-p.tasks:
			t.resultCh <- Result{Err: ErrPoolStopped}
		default:
			return
		}
	}
}

// produceBatch renders count events from the spec's template set.
func produceBatch(spec event.SourceSpec, count int) []event.Event {
	events := make([]event.Event, 0, count)
	for i := 0; i < count; i++ {
		tpl := event.PickTemplate(spec.Templates)
		events = append(events, event.New(spec, tpl))
	}
	return events
}

var poolAttrs = metric.WithAttributeSet(
	attribute.NewSet(
		attribute.String("component", "worker_pool"),
	),
)
