// Package metrics provides a Prometheus exporter
// for serving metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	serviceName = "logforge"

	readHeaderTimeout = 10 * time.Second
)

// Prometheus is an OpenTelemetry Prometheus exporter served over HTTP.
type Prometheus struct {
	address   string
	resources *resource.Resource
	provider  *sdkmetric.MeterProvider
	server    *http.Server
}

// NewPrometheus creates a new Prometheus provider listening on address.
func NewPrometheus(address string) (*Prometheus, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}

	r := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.HostNameKey.String(hostname),
	}

	return &Prometheus{
		address:   address,
		resources: resource.NewWithAttributes(semconv.SchemaURL, r...),
	}, nil
}

// Start starts the Prometheus exporter and serves the metrics endpoint.
// Serving errors after startup are reported on the returned channel.
func (p *Prometheus) Start(_ context.Context) (<-chan error, error) {
	exporter, err := prometheus.New(prometheus.WithNamespace(serviceName))
	if err != nil {
		return nil, err
	}

	p.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(p.resources),
	)

	otel.SetMeterProvider(p.provider)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	p.server = &http.Server{
		Addr:              p.address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown stops the metrics endpoint and the Prometheus exporter
func (p *Prometheus) Shutdown(ctx context.Context) error {
	var errs error

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	if p.provider != nil {
		if err := p.provider.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
