package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink delivers a preformatted report text block. Sinks are passed
// explicitly to the reporting layer; logging stays separate.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// LogSink writes reports to the structured log. Used when no messaging
// transport is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, text string) error {
	s.logger.Info("report", zap.String("text", text))
	return nil
}
