package report

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"distributionScope/internal/decode"
	"distributionScope/internal/notify"
)

// Scheduler sends the aggregate report for every active event type on a cron
// cadence.
type Scheduler struct {
	cron      *cron.Cron
	generator *Generator
	sink      notify.Sink
	registry  *decode.Registry
	logger    *zap.Logger
}

func NewScheduler(generator *Generator, sink notify.Sink, registry *decode.Registry, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		generator: generator,
		sink:      sink,
		registry:  registry,
		logger:    logger,
	}
}

// Start schedules report delivery with the given cron spec and begins
// running. An invalid cron spec is a configuration error.
func (s *Scheduler) Start(ctx context.Context, cronSpec string) error {
	_, err := s.cron.AddFunc(cronSpec, func() {
		s.SendAll(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("report scheduler started", zap.String("cron", cronSpec))
	return nil
}

// Stop halts scheduling. A report already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// SendAll generates and delivers one report per active event type. A failure
// for one type does not block the others.
func (s *Scheduler) SendAll(ctx context.Context) {
	for _, spec := range s.registry.Specs() {
		if !spec.Active {
			continue
		}

		text, err := s.generator.Generate(ctx, spec)
		if err != nil {
			s.logger.Error("report generation failed",
				zap.Error(err),
				zap.String("event", spec.Name),
			)
			continue
		}

		if err := s.sink.Send(ctx, text); err != nil {
			s.logger.Error("report delivery failed",
				zap.Error(err),
				zap.String("event", spec.Name),
			)
			continue
		}

		s.logger.Info("report sent", zap.String("event", spec.Name))
	}
}
