// Package logging contains the logging logic for LogForge
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/logforge/logforge/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a new Logger for the specified config.
// If the config is empty, it defaults to stdout at info level.
func NewLogger(cfg config.Logging) (*zap.Logger, error) {
	level := parseZapLevel(cfg.Level)

	// Only stdout supported for now. Default to stdout when empty.
	output := strings.TrimSpace(strings.ToLower(cfg.Type))
	if output == "" {
		output = config.LoggingTypeStdout
	}
	if output != config.LoggingTypeStdout {
		return nil, fmt.Errorf("unknown output type: %s", cfg.Type)
	}

	core := newStdoutCore(level)
	return zap.New(core), nil
}

func parseZapLevel(level config.LogLevel) zapcore.Level {
	switch strings.ToLower(string(level)) {
	case string(config.LogLevelDebug):
		return zapcore.DebugLevel
	case string(config.LogLevelWarn):
		return zapcore.WarnLevel
	case string(config.LogLevelError):
		return zapcore.ErrorLevel
	case string(config.LogLevelInfo):
		fallthrough
	case "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

func newStdoutCore(level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stdout), level)
}

func newEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.CallerKey = ""
	encoderConfig.StacktraceKey = ""
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
