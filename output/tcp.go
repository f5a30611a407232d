package output

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/internal/workermanager"
	"go.uber.org/zap"
)

const (
	// DefaultTCPChannelSize is the default size of the event channel
	DefaultTCPChannelSize = 100

	// DefaultTCPWorkers is the default number of worker goroutines
	DefaultTCPWorkers = 1

	// DefaultTCPConnectTimeout is the default timeout for establishing TCP connections
	DefaultTCPConnectTimeout = 10 * time.Second

	// DefaultTCPWriteTimeout is the default timeout for writing data to TCP connections
	DefaultTCPWriteTimeout = 5 * time.Second
)

// TCP implements the Output interface for newline-delimited JSON over TCP.
type TCP struct {
	logger        *zap.Logger
	host          string
	port          string
	workers       int
	tlsConfig     *tls.Config
	eventChan     chan event.Event
	ctx           context.Context
	cancel        context.CancelFunc
	workerManager *workermanager.WorkerManager
}

// NewTCP creates a new TCP output instance. A non nil tlsConfig
// enables TLS for the connection.
func NewTCP(logger *zap.Logger, host, port string, workers int, tlsConfig *tls.Config) (*TCP, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if port == "" {
		return nil, fmt.Errorf("port cannot be empty")
	}
	if workers <= 0 {
		workers = DefaultTCPWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	tcp := &TCP{
		logger:    logger.Named("output-tcp"),
		host:      host,
		port:      port,
		workers:   workers,
		tlsConfig: tlsConfig,
		eventChan: make(chan event.Event, DefaultTCPChannelSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	tcp.logger.Info("Starting TCP output",
		zap.String("host", tcp.host),
		zap.String("port", tcp.port),
		zap.Int("workers", tcp.workers),
		zap.Bool("tls", tcp.tlsConfig != nil),
		zap.Int("channel_size", DefaultTCPChannelSize),
	)

	tcp.workerManager = workermanager.NewWorkerManager(tcp.logger, workers, tcp.tcpWorker)
	tcp.workerManager.Start()

	return tcp, nil
}

// Write queues an event for delivery by the worker goroutines.
// Write shall not be called after Stop is called.
// If the provided context is done, Write will return immediately
// even if the event is not queued.
func (t *TCP) Write(ctx context.Context, ev event.Event) error {
	select {
	case t.eventChan <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting to write event: %w", ctx.Err())
	case <-t.ctx.Done():
		return fmt.Errorf("TCP output is shutting down")
	}
}

// Stop gracefully shuts down all workers and closes TCP connections.
// Stop shall not be called more than once.
func (t *TCP) Stop(_ context.Context) error {
	t.logger.Info("Stopping TCP output")

	// Close the channel to ensure workers do not process new events.
	close(t.eventChan)

	// Signal the workers to stop.
	t.cancel()

	t.workerManager.Stop()

	t.logger.Info("TCP output stopped successfully")
	return nil
}

// tcpWorker encodes events from the channel and sends them to the configured
// host and port. Designed to work with the worker manager, which restarts the
// worker with exponential backoff when it exits on a connection failure.
func (t *TCP) tcpWorker(id int) {
	t.logger.Info("Starting TCP worker", zap.Int("worker_id", id))

	conn, err := t.connect()
	if err != nil {
		t.logger.Error("Failed to establish initial TCP connection",
			zap.Int("worker_id", id),
			zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		select {
		case ev, ok := <-t.eventChan:
			if !ok {
				t.logger.Info("TCP worker exiting - channel closed", zap.Int("worker_id", id))
				return
			}

			data, err := ev.Encode()
			if err != nil {
				t.logger.Error("Failed to encode event",
					zap.Int("worker_id", id),
					zap.String("event_id", ev.ID),
					zap.Error(err))
				continue
			}

			if err := t.sendData(conn, append(data, '\n')); err != nil {
				t.logger.Error("Failed to send TCP data",
					zap.Int("worker_id", id),
					zap.Error(err))
				return
			}

		case <-t.ctx.Done():
			t.logger.Info("TCP worker exiting - context cancelled", zap.Int("worker_id", id))
			return
		}
	}
}

// connect establishes a TCP connection to the configured host and port
func (t *TCP) connect() (net.Conn, error) {
	address := net.JoinHostPort(t.host, t.port)

	if t.tlsConfig != nil {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: DefaultTCPConnectTimeout},
			Config:    t.tlsConfig,
		}
		conn, err := dialer.DialContext(t.ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s with tls: %w", address, err)
		}
		return conn, nil
	}

	conn, err := net.DialTimeout("tcp", address, DefaultTCPConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return conn, nil
}

// sendData sends data to the TCP connection with a timeout
func (t *TCP) sendData(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(DefaultTCPWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	_, err := conn.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	return nil
}
