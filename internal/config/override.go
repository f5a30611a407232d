package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Override is a configuration override
type Override struct {
	// Field is the config field to override
	Field string
	// Flag is the flag that will override the field
	Flag string
	// Env is the environment variable that will override the field
	Env string
	// Usage is the usage for the override
	Usage string
	// Default is the default value for the override
	Default any
}

// NewOverride creates a new override
func NewOverride(field, usage string, def any) *Override {
	return &Override{
		Field:   field,
		Flag:    createFlagName(field),
		Env:     createEnvName(field),
		Usage:   usage,
		Default: def,
	}
}

// Bind binds the override to the viper instance
func (o *Override) Bind(flags *pflag.FlagSet) error {
	flag := o.createFlag(flags)
	if err := viper.BindPFlag(o.Field, flag); err != nil {
		return err
	}
	if err := viper.BindEnv(o.Field, o.Env); err != nil {
		return err
	}
	return nil
}

// createFlag creates a flag for the override
func (o *Override) createFlag(flags *pflag.FlagSet) *pflag.Flag {
	if exitingFlag := flags.Lookup(o.Flag); exitingFlag != nil {
		return exitingFlag
	}

	switch v := o.Default.(type) {
	case string:
		_ = flags.String(o.Flag, v, o.Usage)
	case []string:
		_ = flags.StringSlice(o.Flag, v, o.Usage)
	case LogLevel:
		_ = flags.String(o.Flag, string(v), o.Usage)
	case OutputType:
		_ = flags.String(o.Flag, string(v), o.Usage)
	case int:
		_ = flags.Int(o.Flag, v, o.Usage)
	case float64:
		_ = flags.Float64(o.Flag, v, o.Usage)
	case time.Duration:
		_ = flags.Duration(o.Flag, v, o.Usage)
	case bool:
		_ = flags.Bool(o.Flag, v, o.Usage)
	default:
		_ = flags.String(o.Flag, "", o.Usage)
	}

	return flags.Lookup(o.Flag)
}

// createFlagName creates a flag name from a field
func createFlagName(field string) string {
	updatedField := strings.ReplaceAll(field, ".", "-")
	return strings.ToLower(updatedField)
}

// createEnvName creates an environment variable name from a field
func createEnvName(field string) string {
	updatedField := strings.ReplaceAll(field, ".", "_")
	updatedField = strings.ToUpper(updatedField)
	return "LOGFORGE_" + updatedField
}

// tcpTLSOverrides creates TCP TLS overrides with readable flag names
func tcpTLSOverrides() []*Override {
	return []*Override{
		{
			Field:   "output.tcp.tlsCert",
			Flag:    "output-tcp-tls-cert",
			Env:     "LOGFORGE_OUTPUT_TCP_TLS_CERT",
			Usage:   "the path to the TLS certificate for TCP connections",
			Default: "",
		},
		{
			Field:   "output.tcp.tlsKey",
			Flag:    "output-tcp-tls-key",
			Env:     "LOGFORGE_OUTPUT_TCP_TLS_KEY",
			Usage:   "the path to the TLS private key for TCP connections",
			Default: "",
		},
		{
			Field:   "output.tcp.tlsCa",
			Flag:    "output-tcp-tls-ca",
			Env:     "LOGFORGE_OUTPUT_TCP_TLS_CA",
			Usage:   "the path to the TLS CA files. Optional, if not provided the host's root CA set will be used",
			Default: []string{},
		},
		{
			Field:   "output.tcp.tlsSkipVerify",
			Flag:    "output-tcp-tls-skip-verify",
			Env:     "LOGFORGE_OUTPUT_TCP_TLS_SKIP_VERIFY",
			Usage:   "whether to skip TLS verification for TCP connections",
			Default: false,
		},
		{
			Field:   "output.tcp.tlsMinVersion",
			Flag:    "output-tcp-tls-min-version",
			Env:     "LOGFORGE_OUTPUT_TCP_TLS_MIN_VERSION",
			Usage:   "the minimum TLS version to use for TCP connections. One of: 1.2|1.3",
			Default: "1.2",
		},
	}
}

// otlpGrpcTLSOverrides creates OTLP gRPC TLS overrides
func otlpGrpcTLSOverrides() []*Override {
	return []*Override{
		{
			Field:   "output.otlpGrpc.insecure",
			Flag:    "otlp-grpc-insecure",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_INSECURE",
			Usage:   "whether to use insecure credentials (no TLS) for OTLP gRPC connections",
			Default: true,
		},
		{
			Field:   "output.otlpGrpc.tlsCert",
			Flag:    "otlp-grpc-tls-cert",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_TLS_CERT",
			Usage:   "the path to the TLS certificate for OTLP gRPC connections",
			Default: "",
		},
		{
			Field:   "output.otlpGrpc.tlsKey",
			Flag:    "otlp-grpc-tls-key",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_TLS_KEY",
			Usage:   "the path to the TLS private key for OTLP gRPC connections",
			Default: "",
		},
		{
			Field:   "output.otlpGrpc.tlsCa",
			Flag:    "otlp-grpc-tls-ca",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_TLS_CA",
			Usage:   "the path to the TLS CA files. Optional, if not provided the host's root CA set will be used",
			Default: []string{},
		},
		{
			Field:   "output.otlpGrpc.tlsSkipVerify",
			Flag:    "otlp-grpc-tls-skip-verify",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_TLS_SKIP_VERIFY",
			Usage:   "whether to skip TLS verification for OTLP gRPC connections",
			Default: false,
		},
		{
			Field:   "output.otlpGrpc.tlsMinVersion",
			Flag:    "otlp-grpc-tls-min-version",
			Env:     "LOGFORGE_OUTPUT_OTLPGRPC_TLS_MIN_VERSION",
			Usage:   "the minimum TLS version to use for OTLP gRPC connections. One of: 1.2|1.3",
			Default: "1.2",
		},
	}
}

// DefaultOverrides returns all overrides for the application
func DefaultOverrides() []*Override {
	overrides := []*Override{
		NewOverride("logging.type", "output of the log. One of: stdout", LoggingTypeStdout),
		NewOverride("logging.level", "log level to use. One of: debug|info|warn|error", LogLevelInfo),
		NewOverride("telemetry.enabled", "whether to serve internal metrics", false),
		NewOverride("telemetry.address", "listen address for the metrics endpoint", DefaultTelemetryAddress),
		NewOverride("pool.enabled", "whether to generate events through the worker pool", false),
		NewOverride("pool.workers", "number of pool workers", DefaultPoolWorkers),
		NewOverride("pool.queueSize", "pool task queue capacity", DefaultPoolQueueSize),
		NewOverride("pool.backpressure", "pool backpressure policy. One of: block|drop-oldest", BackpressureBlock),
		NewOverride("pool.enqueueTimeout", "how long a blocked enqueue waits for queue space", DefaultPoolEnqueueTimeout),
		NewOverride("replay.enabled", "whether to replay historical events", false),
		NewOverride("replay.file", "path to the historical event file to replay", ""),
		NewOverride("replay.speed", "replay speed multiplier", 1.0),
		NewOverride("replay.loop", "whether to restart replay after the last event", false),
		NewOverride("replay.sources", "source names to include in replay", []string{}),
		NewOverride("replay.categories", "categories to include in replay", []string{}),
		NewOverride("replay.levels", "severity levels to include in replay", []string{}),
		NewOverride("output.type", "output type. One of: nop|tcp|udp|otlp-grpc", OutputTypeNop),
		NewOverride("output.udp.host", "UDP output target host", ""),
		NewOverride("output.udp.port", "UDP output target port", 0),
		NewOverride("output.udp.workers", "number of UDP output workers", 1),
		NewOverride("output.tcp.host", "TCP output target host", ""),
		NewOverride("output.tcp.port", "TCP output target port", 0),
		NewOverride("output.tcp.workers", "number of TCP output workers", 1),
		NewOverride("output.otlpGrpc.host", "OTLP gRPC output target host", DefaultOTLPGrpcHost),
		NewOverride("output.otlpGrpc.port", "OTLP gRPC output target port", DefaultOTLPGrpcPort),
		NewOverride("output.otlpGrpc.workers", "number of OTLP gRPC output workers", DefaultOTLPGrpcWorkers),
		NewOverride("output.otlpGrpc.batchTimeout", "OTLP gRPC output batch timeout", DefaultOTLPGrpcBatchTimeout),
		NewOverride("output.otlpGrpc.maxExportBatchSize", "OTLP gRPC output maximum export batch size", DefaultOTLPGrpcMaxExportBatchSize),
	}

	overrides = append(overrides, tcpTLSOverrides()...)
	overrides = append(overrides, otlpGrpcTLSOverrides()...)
	return overrides
}
