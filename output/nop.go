package output

import (
	"context"
	"fmt"

	"github.com/logforge/logforge/event"
	"go.uber.org/zap"
)

// NopOutput is a no-operation output that discards all events.
type NopOutput struct {
	logger *zap.Logger
}

// NewNopOutput creates a new no-operation output.
func NewNopOutput(logger *zap.Logger) (*NopOutput, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &NopOutput{
		logger: logger.Named("output-nop"),
	}, nil
}

// Write discards the event.
func (o *NopOutput) Write(_ context.Context, _ event.Event) error {
	return nil
}

// Stop performs no work.
func (o *NopOutput) Stop(_ context.Context) error {
	o.logger.Info("Stopping NOP output")
	return nil
}
