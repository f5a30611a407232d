package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSource(name string) Source {
	return Source{
		Name:      name,
		Category:  "firewall",
		Enabled:   true,
		Frequency: 600,
		Templates: []SourceTemplate{
			{Level: "INFO", Message: "connection from {{IP_ADDRESS}}"},
		},
	}
}

func TestConfigValidate_Empty(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_Sources(t *testing.T) {
	cfg := NewConfig()
	cfg.Sources = []Source{validSource("fw"), validSource("ids")}
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_DuplicateSourceNames(t *testing.T) {
	cfg := NewConfig()
	cfg.Sources = []Source{validSource("fw"), validSource("fw")}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source name: fw")
}

func TestConfigValidate_InvalidSource(t *testing.T) {
	cfg := NewConfig()
	bad := validSource("fw")
	bad.Frequency = 0
	cfg.Sources = []Source{bad}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frequency must be positive")
}

func TestConfigValidate_InvalidPool(t *testing.T) {
	cfg := NewConfig()
	cfg.Pool.Backpressure = "spill"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pool backpressure policy")
}

func TestConfigValidate_InvalidReplay(t *testing.T) {
	cfg := NewConfig()
	cfg.Replay.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay file cannot be empty")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := NewConfig()
	cfg.ApplyDefaults()

	assert.Equal(t, LoggingTypeStdout, cfg.Logging.Type)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, DefaultTelemetryAddress, cfg.Telemetry.Address)
	assert.Equal(t, DefaultPoolWorkers, cfg.Pool.Workers)
	assert.Equal(t, DefaultPoolQueueSize, cfg.Pool.QueueSize)
	assert.Equal(t, BackpressureBlock, cfg.Pool.Backpressure)
	assert.Equal(t, DefaultPoolEnqueueTimeout, cfg.Pool.EnqueueTimeout)
	assert.Equal(t, 1.0, cfg.Replay.Speed)
	assert.Equal(t, OutputTypeNop, cfg.Output.Type)
	assert.Equal(t, 1, cfg.Output.TCP.Workers)
	assert.Equal(t, 1, cfg.Output.UDP.Workers)
	assert.Equal(t, DefaultOTLPGrpcHost, cfg.Output.OTLPGrpc.Host)
	assert.Equal(t, DefaultOTLPGrpcPort, cfg.Output.OTLPGrpc.Port)
	assert.Equal(t, DefaultOTLPGrpcBatchTimeout, cfg.Output.OTLPGrpc.BatchTimeout)
}

func TestConfigApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = LogLevelDebug
	cfg.Pool.Workers = 8
	cfg.Replay.Speed = 4
	cfg.Output.Type = OutputTypeTCP

	cfg.ApplyDefaults()

	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Pool.Workers)
	assert.Equal(t, 4.0, cfg.Replay.Speed)
	assert.Equal(t, OutputTypeTCP, cfg.Output.Type)
}

func TestPoolValidate(t *testing.T) {
	cases := []struct {
		name    string
		pool    Pool
		wantErr string
	}{
		{name: "empty", pool: Pool{}},
		{name: "block", pool: Pool{Backpressure: BackpressureBlock}},
		{name: "drop-oldest", pool: Pool{Backpressure: BackpressureDropOldest}},
		{name: "negative workers", pool: Pool{Workers: -1}, wantErr: "workers cannot be negative"},
		{name: "negative queue", pool: Pool{QueueSize: -1}, wantErr: "queue size cannot be negative"},
		{name: "bad policy", pool: Pool{Backpressure: "spill"}, wantErr: "invalid pool backpressure policy"},
		{name: "negative timeout", pool: Pool{EnqueueTimeout: -time.Second}, wantErr: "enqueue timeout cannot be negative"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pool.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestReplayValidate(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		replay  Replay
		wantErr string
	}{
		{name: "disabled", replay: Replay{}},
		{name: "disabled ignores bad fields", replay: Replay{Speed: -1}},
		{name: "enabled with file", replay: Replay{Enabled: true, File: "events.ndjson"}},
		{name: "enabled without file", replay: Replay{Enabled: true}, wantErr: "replay file cannot be empty"},
		{name: "negative speed", replay: Replay{Enabled: true, File: "f", Speed: -2}, wantErr: "speed must be positive"},
		{
			name:    "inverted range",
			replay:  Replay{Enabled: true, File: "f", From: now, To: now.Add(-time.Hour)},
			wantErr: "time range is inverted",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.replay.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTelemetryValidate(t *testing.T) {
	cases := []struct {
		name      string
		telemetry Telemetry
		wantErr   bool
	}{
		{name: "disabled", telemetry: Telemetry{}},
		{name: "enabled empty address", telemetry: Telemetry{Enabled: true}},
		{name: "enabled valid address", telemetry: Telemetry{Enabled: true, Address: "localhost:8888"}},
		{name: "enabled bad address", telemetry: Telemetry{Enabled: true, Address: "no-port"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.telemetry.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSourceSpecConversion(t *testing.T) {
	src := Source{
		Name:      "auth-svc",
		Category:  "auth",
		Enabled:   true,
		Frequency: 120,
		Templates: []SourceTemplate{
			{
				Level:     "WARN",
				Message:   "failed login for {{USER}}",
				Users:     []string{"root"},
				IPs:       []string{"192.0.2.1"},
				Hostnames: []string{"dc-01"},
				Ports:     []int{22},
			},
		},
	}

	spec := src.Spec()

	assert.Equal(t, "auth-svc", spec.Name)
	assert.Equal(t, "auth", spec.Category)
	assert.True(t, spec.Enabled)
	assert.Equal(t, 120.0, spec.Frequency)
	require.Len(t, spec.Templates, 1)
	assert.Equal(t, "WARN", spec.Templates[0].Level)
	assert.Equal(t, []string{"root"}, spec.Templates[0].Users)
	assert.Equal(t, []int{22}, spec.Templates[0].Ports)
}

func TestSourceValidate_EmptyTemplateMessage(t *testing.T) {
	src := validSource("fw")
	src.Templates = append(src.Templates, SourceTemplate{Level: "INFO"})

	err := src.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message cannot be empty")
}
