// Package main is the main package for LogForge.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/logforge/logforge/event"
	"github.com/logforge/logforge/internal/config"
	"github.com/logforge/logforge/internal/logging"
	"github.com/logforge/logforge/internal/service"
	"github.com/logforge/logforge/internal/telemetry/metrics"
	"github.com/logforge/logforge/output"
	"github.com/logforge/logforge/replay"
	"github.com/logforge/logforge/schedule"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Bind overrides to flags and environment variables
	flags := pflag.NewFlagSet("logforge", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to the YAML configuration file")
	for _, override := range config.DefaultOverrides() {
		if err := override.Bind(flags); err != nil {
			fmt.Printf("Failed to bind override %s: %s", override.Field, err.Error())
			os.Exit(1)
		}
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Printf("Failed to parse flags: %s", err.Error())
		os.Exit(1)
	}

	// Configure Viper to handle env overrides
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if *configPath != "" {
		viper.SetConfigFile(*configPath)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Failed to read config file %s: %s", *configPath, err.Error())
			os.Exit(1)
		}
	}

	cfg := config.NewConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Printf("Failed to unmarshal config: %s", err.Error())
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Failed to validate config: %s", err.Error())
		os.Exit(1)
	}
	cfg.ApplyDefaults()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %s", err.Error())
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("logforge started")

	// Create signal context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	}()

	// Serve internal metrics when enabled
	var prom *metrics.Prometheus
	if cfg.Telemetry.Enabled {
		prom, err = metrics.NewPrometheus(cfg.Telemetry.Address)
		if err != nil {
			logger.Error("Failed to create metrics exporter", zap.Error(err))
			os.Exit(1)
		}
		errCh, err := prom.Start(ctx)
		if err != nil {
			logger.Error("Failed to start metrics exporter", zap.Error(err))
			os.Exit(1)
		}
		go func() {
			if serveErr := <-errCh; serveErr != nil {
				logger.Error("Metrics endpoint failed", zap.Error(serveErr))
			}
		}()
	}

	outputInstance, err := newOutput(logger, cfg)
	if err != nil {
		logger.Error("Failed to create output", zap.Error(err))
		os.Exit(1)
	}

	// Scheduler, optionally backed by the generation worker pool
	schedulerOpts := []schedule.SchedulerOption{}
	var pool *schedule.Pool
	if cfg.Pool.Enabled {
		pool, err = schedule.NewPool(logger, cfg.Pool.Workers,
			schedule.WithQueueSize(cfg.Pool.QueueSize),
			schedule.WithBackpressure(schedule.BackpressurePolicy(cfg.Pool.Backpressure), cfg.Pool.EnqueueTimeout),
		)
		if err != nil {
			logger.Error("Failed to create worker pool", zap.Error(err))
			os.Exit(1)
		}
		schedulerOpts = append(schedulerOpts, schedule.WithPool(pool))
	}

	scheduler, err := schedule.NewScheduler(logger, outputInstance, schedulerOpts...)
	if err != nil {
		logger.Error("Failed to create scheduler", zap.Error(err))
		os.Exit(1)
	}

	serviceOpts := []service.Option{}
	if pool != nil {
		serviceOpts = append(serviceOpts, service.WithPool(pool))
	}

	if cfg.Replay.Enabled {
		store, err := replay.NewFileStore(logger, cfg.Replay.File)
		if err != nil {
			logger.Error("Failed to open replay file", zap.Error(err))
			os.Exit(1)
		}
		replayScheduler, err := replay.NewScheduler(logger, store, outputInstance)
		if err != nil {
			logger.Error("Failed to create replay scheduler", zap.Error(err))
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, service.WithReplay(replayScheduler, replayOptions(cfg.Replay)))
	}

	svc, err := service.New(logger, scheduler, outputInstance, enabledSpecs(cfg), serviceOpts...)
	if err != nil {
		logger.Error("Failed to create service", zap.Error(err))
		os.Exit(1)
	}

	if err := svc.Start(ctx); err != nil {
		logger.Error("Failed to start service", zap.Error(err))
		os.Exit(1)
	}

	// Hot reload source definitions when the config file changes
	if *configPath != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed, reloading sources", zap.String("file", e.Name))

			updated := config.NewConfig()
			if err := viper.Unmarshal(updated); err != nil {
				logger.Error("Failed to unmarshal updated config", zap.Error(err))
				return
			}
			if err := updated.Validate(); err != nil {
				logger.Error("Failed to validate updated config", zap.Error(err))
				return
			}

			svc.UpdateSources(enabledSpecs(updated))
		})
		viper.WatchConfig()
	}

	<-ctx.Done()

	if err := svc.Stop(); err != nil {
		logger.Error("Failed to stop service", zap.Error(err))
		os.Exit(1)
	}

	if prom != nil {
		if err := prom.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to stop metrics exporter", zap.Error(err))
		}
	}

	logger.Info("logforge shutdown complete")
}

// newOutput creates the configured output destination
func newOutput(logger *zap.Logger, cfg *config.Config) (output.Output, error) {
	switch cfg.Output.Type {
	case config.OutputTypeNop:
		return output.NewNopOutput(logger)
	case config.OutputTypeTCP:
		tlsConfig, err := tcpTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("tcp tls config: %w", err)
		}
		return output.NewTCP(
			logger,
			cfg.Output.TCP.Host,
			strconv.Itoa(cfg.Output.TCP.Port),
			cfg.Output.TCP.Workers,
			tlsConfig,
		)
	case config.OutputTypeUDP:
		return output.NewUDP(
			logger,
			cfg.Output.UDP.Host,
			strconv.Itoa(cfg.Output.UDP.Port),
			cfg.Output.UDP.Workers,
		)
	case config.OutputTypeOTLPGrpc:
		opts := []output.OTLPGrpcOption{
			output.WithHost(cfg.Output.OTLPGrpc.Host),
			output.WithPort(strconv.Itoa(cfg.Output.OTLPGrpc.Port)),
			output.WithWorkers(cfg.Output.OTLPGrpc.Workers),
			output.WithBatchTimeout(cfg.Output.OTLPGrpc.BatchTimeout),
			output.WithMaxExportBatchSize(cfg.Output.OTLPGrpc.MaxExportBatchSize),
			output.WithInsecure(cfg.Output.OTLPGrpc.Insecure),
		}
		if !cfg.Output.OTLPGrpc.Insecure {
			tlsConfig, err := cfg.Output.OTLPGrpc.TLS.Convert()
			if err != nil {
				return nil, fmt.Errorf("otlp grpc tls config: %w", err)
			}
			opts = append(opts, output.WithTLSConfig(tlsConfig))
		}
		return output.NewOTLPGrpc(logger, opts...)
	default:
		return nil, fmt.Errorf("invalid output type: %s", cfg.Output.Type)
	}
}

// tcpTLSConfig converts the TCP TLS settings, returning nil when TLS
// is not configured.
func tcpTLSConfig(cfg *config.Config) (*tls.Config, error) {
	t := cfg.Output.TCP.TLS
	if !t.TLSEnabled() && len(t.CertificateAuthority) == 0 && !t.InsecureSkipVerify {
		return nil, nil
	}
	return t.Convert()
}

// enabledSpecs returns the specs of all enabled sources
func enabledSpecs(cfg *config.Config) []event.SourceSpec {
	specs := make([]event.SourceSpec, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		specs = append(specs, src.Spec())
	}
	return specs
}

// replayOptions maps the replay configuration to session options
func replayOptions(cfg config.Replay) replay.Options {
	var filter *replay.Filter
	if len(cfg.Sources) > 0 || len(cfg.Categories) > 0 || len(cfg.Levels) > 0 || !cfg.From.IsZero() || !cfg.To.IsZero() {
		filter = &replay.Filter{
			Sources:    cfg.Sources,
			Categories: cfg.Categories,
			Levels:     cfg.Levels,
			From:       cfg.From,
			To:         cfg.To,
		}
	}

	return replay.Options{
		Speed:     cfg.Speed,
		Loop:      cfg.Loop,
		Filter:    filter,
		TimeRange: replay.TimeRange{From: cfg.From, To: cfg.To},
	}
}
