package output

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/internal/workermanager"
	"go.uber.org/zap"
)

const (
	// DefaultUDPChannelSize is the default size of the event channel
	DefaultUDPChannelSize = 100

	// DefaultUDPWorkers is the default number of worker goroutines
	DefaultUDPWorkers = 1

	// DefaultUDPWriteTimeout is the default timeout for writing data to UDP connections
	DefaultUDPWriteTimeout = 5 * time.Second
)

// UDP implements the Output interface for JSON datagrams over UDP.
type UDP struct {
	logger        *zap.Logger
	host          string
	port          string
	workers       int
	eventChan     chan event.Event
	ctx           context.Context
	cancel        context.CancelFunc
	workerManager *workermanager.WorkerManager
}

// NewUDP creates a new UDP output instance.
func NewUDP(logger *zap.Logger, host, port string, workers int) (*UDP, error) {
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
		workers = DefaultUDPWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	udp := &UDP{
		logger:    logger.Named("output-udp"),
		host:      host,
		port:      port,
		workers:   workers,
		eventChan: make(chan event.Event, DefaultUDPChannelSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	udp.logger.Info("Starting UDP output",
		zap.String("host", udp.host),
		zap.String("port", udp.port),
		zap.Int("workers", udp.workers),
		zap.Int("channel_size", DefaultUDPChannelSize),
	)

	udp.workerManager = workermanager.NewWorkerManager(udp.logger, workers, udp.udpWorker)
	udp.workerManager.Start()

	return udp, nil
}

// Write queues an event for delivery by the worker goroutines.
// Write shall not be called after Stop is called.
// If the provided context is done, Write will return immediately
// even if the event is not queued.
func (u *UDP) Write(ctx context.Context, ev event.Event) error {
	select {
	case u.eventChan <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting to write event: %w", ctx.Err())
	case <-u.ctx.Done():
		return fmt.Errorf("UDP output is shutting down")
	}
}

// Stop gracefully shuts down all workers and closes UDP connections.
// Stop shall not be called more than once.
func (u *UDP) Stop(_ context.Context) error {
	u.logger.Info("Stopping UDP output")

	close(u.eventChan)
	u.cancel()
	u.workerManager.Stop()

	u.logger.Info("UDP output stopped successfully")
	return nil
}

// udpWorker encodes events from the channel and sends them as datagrams to
// the configured host and port. Restarted by the worker manager with
// exponential backoff when it exits on a send failure.
func (u *UDP) udpWorker(id int) {
	u.logger.Info("Starting UDP worker", zap.Int("worker_id", id))

	conn, err := u.connect()
	if err != nil {
		u.logger.Error("Failed to establish initial UDP connection",
			zap.Int("worker_id", id),
			zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		select {
		case ev, ok := <-u.eventChan:
			if !ok {
				u.logger.Info("UDP worker exiting - channel closed", zap.Int("worker_id", id))
				return
			}

			data, err := ev.Encode()
			if err != nil {
				u.logger.Error("Failed to encode event",
					zap.Int("worker_id", id),
					zap.String("event_id", ev.ID),
					zap.Error(err))
				continue
			}

			if err := u.sendData(conn, data); err != nil {
				u.logger.Error("Failed to send UDP data",
					zap.Int("worker_id", id),
					zap.Error(err))
				return
			}

		case <-u.ctx.Done():
			u.logger.Info("UDP worker exiting - context cancelled", zap.Int("worker_id", id))
			return
		}
	}
}

// connect establishes a UDP connection to the configured host and port
func (u *UDP) connect() (net.Conn, error) {
	address := net.JoinHostPort(u.host, u.port)

	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return conn, nil
}

// sendData sends data to the UDP connection with a timeout
func (u *UDP) sendData(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(DefaultUDPWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	_, err := conn.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	return nil
}
