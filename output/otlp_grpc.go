package output

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/internal/workermanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

const (
	// DefaultOTLPGrpcChannelSize is the default size of the event channel
	DefaultOTLPGrpcChannelSize = 100

	// DefaultOTLPGrpcWorkers is the default number of worker goroutines
	DefaultOTLPGrpcWorkers = 1

	// DefaultOTLPGrpcHost is the default host for OTLP gRPC connections
	DefaultOTLPGrpcHost = "localhost"

	// DefaultOTLPGrpcPort is the default port for OTLP gRPC connections
	DefaultOTLPGrpcPort = "4317"

	// DefaultOTLPGrpcBatchTimeout is the default timeout for batching log records
	DefaultOTLPGrpcBatchTimeout = 5 * time.Second

	// DefaultOTLPGrpcMaxExportBatchSize is the default maximum batch size for export
	DefaultOTLPGrpcMaxExportBatchSize = 512
)

// OTLPGrpcOption is a functional option for configuring OTLP gRPC output
type OTLPGrpcOption func(*OTLPGrpcConfig) error

// OTLPGrpcConfig holds configuration for OTLP gRPC output
type OTLPGrpcConfig struct {
	host               string
	port               string
	workers            int
	batchTimeout       time.Duration
	maxExportBatchSize int
	insecure           bool
	tlsConfig          *tls.Config
}

// WithHost sets the host for OTLP gRPC connections
func WithHost(host string) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.host = host
		return nil
	}
}

// WithPort sets the port for OTLP gRPC connections
func WithPort(port string) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.port = port
		return nil
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(workers int) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.workers = workers
		return nil
	}
}

// WithBatchTimeout sets the timeout for batching log records
func WithBatchTimeout(timeout time.Duration) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.batchTimeout = timeout
		return nil
	}
}

// WithMaxExportBatchSize sets the maximum batch size for export
func WithMaxExportBatchSize(size int) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.maxExportBatchSize = size
		return nil
	}
}

// WithInsecure controls whether insecure transport credentials are used
func WithInsecure(ins bool) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.insecure = ins
		return nil
	}
}

// WithTLSConfig sets the TLS configuration for OTLP gRPC connections
func WithTLSConfig(tlsConfig *tls.Config) OTLPGrpcOption {
	return func(cfg *OTLPGrpcConfig) error {
		cfg.tlsConfig = tlsConfig
		return nil
	}
}

// OTLPGrpc implements the Output interface for OTLP log export over gRPC.
type OTLPGrpc struct {
	logger        *zap.Logger
	host          string
	port          string
	workers       int
	insecure      bool
	tlsConfig     *tls.Config
	eventChan     chan event.Event
	ctx           context.Context
	cancel        context.CancelFunc
	workerManager *workermanager.WorkerManager
	meter         metric.Meter

	// Metrics
	otlpEventsReceived metric.Int64Counter
	otlpRequestLatency metric.Float64Histogram
	otlpRequestSize    metric.Int64Histogram
	otlpSendErrors     metric.Int64Counter

	// Configuration
	batchTimeout       time.Duration
	maxExportBatchSize int
}

// NewOTLPGrpc creates a new OTLP gRPC output instance using functional options
func NewOTLPGrpc(logger *zap.Logger, opts ...OTLPGrpcOption) (*OTLPGrpc, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cfg := &OTLPGrpcConfig{
		host:               DefaultOTLPGrpcHost,
		port:               DefaultOTLPGrpcPort,
		workers:            DefaultOTLPGrpcWorkers,
		batchTimeout:       DefaultOTLPGrpcBatchTimeout,
		maxExportBatchSize: DefaultOTLPGrpcMaxExportBatchSize,
		insecure:           true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if cfg.host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if cfg.port == "" {
		return nil, fmt.Errorf("port cannot be empty")
	}
	if cfg.workers <= 0 {
		cfg.workers = DefaultOTLPGrpcWorkers
	}
	if cfg.maxExportBatchSize <= 0 {
		cfg.maxExportBatchSize = DefaultOTLPGrpcMaxExportBatchSize
	}

	meter := otel.Meter("logforge-otlp-grpc-output")

	otlpEventsReceived, err := meter.Int64Counter(
		"logforge.otlp_grpc.events.received",
		metric.WithDescription("Number of events received from the write channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events received counter: %w", err)
	}

	otlpRequestLatency, err := meter.Float64Histogram(
		"logforge.otlp_grpc.request.latency",
		metric.WithDescription("Request latency in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request latency histogram: %w", err)
	}

	otlpRequestSize, err := meter.Int64Histogram(
		"logforge.otlp_grpc.request.size.bytes",
		metric.WithDescription("Size of requests in bytes"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request size histogram: %w", err)
	}

	otlpSendErrors, err := meter.Int64Counter(
		"logforge.otlp_grpc.send.errors",
		metric.WithDescription("Total number of send errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create send errors counter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &OTLPGrpc{
		logger:             logger.Named("output-otlp-grpc"),
		host:               cfg.host,
		port:               cfg.port,
		workers:            cfg.workers,
		insecure:           cfg.insecure,
		tlsConfig:          cfg.tlsConfig,
		eventChan:          make(chan event.Event, DefaultOTLPGrpcChannelSize),
		ctx:                ctx,
		cancel:             cancel,
		meter:              meter,
		otlpEventsReceived: otlpEventsReceived,
		otlpRequestLatency: otlpRequestLatency,
		otlpRequestSize:    otlpRequestSize,
		otlpSendErrors:     otlpSendErrors,
		batchTimeout:       cfg.batchTimeout,
		maxExportBatchSize: cfg.maxExportBatchSize,
	}

	o.logger.Info("Starting OTLP gRPC output",
		zap.String("host", o.host),
		zap.String("port", o.port),
		zap.Int("workers", o.workers),
		zap.Duration("batch_timeout", o.batchTimeout),
		zap.Int("max_export_batch_size", o.maxExportBatchSize),
		zap.Bool("insecure", cfg.insecure),
		zap.Bool("tls_enabled", cfg.tlsConfig != nil),
	)

	o.workerManager = workermanager.NewWorkerManager(o.logger, cfg.workers, o.otlpWorker)
	o.workerManager.Start()

	return o, nil
}

// Write queues an event for export by the worker goroutines.
// Write shall not be called after Stop is called.
func (o *OTLPGrpc) Write(ctx context.Context, ev event.Event) error {
	select {
	case o.eventChan <- ev:
		o.otlpEventsReceived.Add(ctx, 1,
			metric.WithAttributeSet(
				attribute.NewSet(
					attribute.String("component", "output_otlp_grpc"),
				),
			),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting to write event: %w", ctx.Err())
	case <-o.ctx.Done():
		return fmt.Errorf("OTLP gRPC output is shutting down")
	}
}

// Stop gracefully shuts down all workers and closes OTLP gRPC connections.
// Stop shall not be called more than once.
func (o *OTLPGrpc) Stop(_ context.Context) error {
	o.logger.Info("Stopping OTLP gRPC output")

	close(o.eventChan)
	o.cancel()
	o.workerManager.Stop()

	o.logger.Info("OTLP gRPC output stopped successfully")
	return nil
}

// otlpWorker batches events from the channel and exports them to the
// configured endpoint. Designed to work with the worker manager, which
// restarts the worker with exponential backoff on export failures.
func (o *OTLPGrpc) otlpWorker(id int) {
	o.logger.Info("Starting OTLP gRPC worker", zap.Int("worker_id", id))

	conn, err := o.connect()
	if err != nil {
		o.logger.Error("Failed to establish initial OTLP gRPC connection",
			zap.Int("worker_id", id),
			zap.Error(err))
		return
	}
	defer conn.Close()

	client := collectorlogs.NewLogsServiceClient(conn)

	batch := newEventBatch(o.maxExportBatchSize, o.batchTimeout)

	for {
		select {
		case ev, ok := <-o.eventChan:
			if !ok {
				o.logger.Info("OTLP gRPC worker exiting - channel closed", zap.Int("worker_id", id))
				if err := o.flushBatch(client, batch); err != nil {
					o.logger.Error("Failed to flush final batch", zap.Int("worker_id", id), zap.Error(err))
				}
				return
			}

			batch.add(ev)

			if batch.isFull() {
				if !batch.timer.Stop() {
					select {
					case <-batch.timer.C:
					default:
					}
				}
				if err := o.sendBatch(client, batch); err != nil {
					o.logger.Error("Failed to send OTLP gRPC batch",
						zap.Int("worker_id", id),
						zap.Error(err))
					return
				}
				batch = newEventBatch(o.maxExportBatchSize, o.batchTimeout)
			}

		case <-batch.timer.C:
			if !batch.isEmpty() {
				if err := o.sendBatch(client, batch); err != nil {
					o.logger.Error("Failed to send OTLP gRPC batch",
						zap.Int("worker_id", id),
						zap.Error(err))
					return
				}
			}
			batch = newEventBatch(o.maxExportBatchSize, o.batchTimeout)

		case <-o.ctx.Done():
			o.logger.Info("OTLP gRPC worker exiting - context cancelled", zap.Int("worker_id", id))
			if err := o.flushBatch(client, batch); err != nil {
				o.logger.Error("Failed to flush final batch", zap.Int("worker_id", id), zap.Error(err))
			}
			return
		}
	}
}

// connect establishes a gRPC connection to the configured host and port
func (o *OTLPGrpc) connect() (*grpc.ClientConn, error) {
	endpoint := fmt.Sprintf("%s:%s", o.host, o.port)

	var opts []grpc.DialOption

	if o.insecure || o.tlsConfig == nil {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(o.tlsConfig)))
	}

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", endpoint, err)
	}

	return conn, nil
}

// eventBatch holds a batch of events to be exported
type eventBatch struct {
	events  []event.Event
	maxSize int
	timer   *time.Timer
	mu      sync.Mutex
}

func newEventBatch(maxSize int, timeout time.Duration) *eventBatch {
	return &eventBatch{
		events:  make([]event.Event, 0, maxSize),
		maxSize: maxSize,
		timer:   time.NewTimer(timeout),
	}
}

func (b *eventBatch) add(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *eventBatch) isFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) >= b.maxSize
}

func (b *eventBatch) isEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) == 0
}

func (b *eventBatch) getAndClear() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = make([]event.Event, 0, b.maxSize)
	return events
}

// sendBatch exports a batch of events via OTLP gRPC
func (o *OTLPGrpc) sendBatch(client collectorlogs.LogsServiceClient, batch *eventBatch) error {
	startTime := time.Now()

	events := batch.getAndClear()
	if len(events) == 0 {
		return nil
	}

	request := buildOTLPRequest(events)

	ctx, cancel := context.WithTimeout(context.Background(), o.batchTimeout)
	defer cancel()

	ctx = metadata.NewOutgoingContext(ctx, metadata.New(map[string]string{}))

	_, err := client.Export(ctx, request)
	if err != nil {
		o.recordSendError("export_error")
		return fmt.Errorf("failed to export logs: %w", err)
	}

	latency := time.Since(startTime).Seconds()
	requestSize := int64(proto.Size(request))

	attrs := metric.WithAttributeSet(
		attribute.NewSet(
			attribute.String("component", "output_otlp_grpc"),
		),
	)
	o.otlpRequestSize.Record(context.Background(), requestSize, attrs)
	o.otlpRequestLatency.Record(context.Background(), latency, attrs)

	return nil
}

// flushBatch flushes any remaining events in the batch
func (o *OTLPGrpc) flushBatch(client collectorlogs.LogsServiceClient, batch *eventBatch) error {
	if !batch.timer.Stop() {
		select {
		case <-batch.timer.C:
		default:
		}
	}
	if batch.isEmpty() {
		return nil
	}
	return o.sendBatch(client, batch)
}

// buildOTLPRequest builds an OTLP ExportLogsServiceRequest from events
func buildOTLPRequest(events []event.Event) *collectorlogs.ExportLogsServiceRequest {
	resourceLogs := &logspb.ResourceLogs{
		Resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{
				stringAttribute("service.name", "logforge"),
			},
		},
		ScopeLogs: []*logspb.ScopeLogs{
			{
				LogRecords: make([]*logspb.LogRecord, 0, len(events)),
			},
		},
	}

	for _, ev := range events {
		attrs := []*commonpb.KeyValue{
			stringAttribute("event.id", ev.ID),
			stringAttribute("event.source", ev.Source),
			stringAttribute("event.category", ev.Category),
		}
		if ev.Replay != nil {
			attrs = append(attrs,
				boolAttribute("replay", ev.Replay.Replay),
				stringAttribute("replay.original_timestamp", ev.Replay.OriginalTimestamp.Format(time.RFC3339Nano)),
				stringAttribute("replay.speed", strconv.FormatFloat(ev.Replay.Speed, 'f', -1, 64)),
			)
		}

		logRecord := &logspb.LogRecord{
			TimeUnixNano:         timeToUnixNanoUint64(ev.Timestamp),
			ObservedTimeUnixNano: timeToUnixNanoUint64(time.Now()),
			SeverityNumber:       mapSeverityNumber(ev.Level),
			SeverityText:         ev.Level,
			Body: &commonpb.AnyValue{
				Value: &commonpb.AnyValue_StringValue{
					StringValue: ev.Message,
				},
			},
			Attributes: attrs,
		}
		resourceLogs.ScopeLogs[0].LogRecords = append(resourceLogs.ScopeLogs[0].LogRecords, logRecord)
	}

	return &collectorlogs.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{resourceLogs},
	}
}

func stringAttribute(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key: key,
		Value: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: value},
		},
	}
}

func boolAttribute(key string, value bool) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key: key,
		Value: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_BoolValue{BoolValue: value},
		},
	}
}

// recordSendError records metrics for send errors
func (o *OTLPGrpc) recordSendError(errorType string) {
	o.otlpSendErrors.Add(context.Background(), 1,
		metric.WithAttributeSet(
			attribute.NewSet(
				attribute.String("component", "output_otlp_grpc"),
				attribute.String("error_type", errorType),
			),
		),
	)
}

// mapSeverityNumber maps string log levels to OTLP severity numbers
func mapSeverityNumber(level string) logspb.SeverityNumber {
	switch level {
	case event.LevelDebug:
		return logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	case event.LevelInfo:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	case event.LevelWarn:
		return logspb.SeverityNumber_SEVERITY_NUMBER_WARN
	case event.LevelError:
		return logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
	case event.LevelFatal:
		return logspb.SeverityNumber_SEVERITY_NUMBER_FATAL2
	default:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	}
}
