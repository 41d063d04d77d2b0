package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/service"
	"github.com/pahal-edu/pahal-api/pkg/config"
)

// Scheduler runs the recurring background jobs: monthly fee generation,
// due-fee reminders and statement file cleanup. Generation is idempotent
// so the daily trigger is safe even when the process restarts mid-month.
type Scheduler struct {
	cron         *cron.Cron
	fees         *service.FeeService
	reminders    *service.ReminderService
	statements   *service.StatementService
	generation   config.GenerationConfig
	reminderCfg  config.RemindersConfig
	cleanupEvery time.Duration
	logger       *zap.Logger

	cancel context.CancelFunc
}

// New constructs the scheduler. Nil services disable their jobs.
func New(fees *service.FeeService, reminders *service.ReminderService, statements *service.StatementService, generation config.GenerationConfig, reminderCfg config.RemindersConfig, cleanupEvery time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		fees:         fees,
		reminders:    reminders,
		statements:   statements,
		generation:   generation,
		reminderCfg:  reminderCfg,
		cleanupEvery: cleanupEvery,
		logger:       logger,
	}
}

// Start registers the enabled jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.fees != nil && s.generation.Enabled {
		if _, err := s.cron.AddFunc(s.generation.CronSpec, func() { s.runGeneration(ctx) }); err != nil {
			return err
		}
		s.logger.Info("fee generation scheduled", zap.String("cron", s.generation.CronSpec))
	}

	if s.reminders != nil && s.reminderCfg.AutoEnabled {
		if _, err := s.cron.AddFunc(s.reminderCfg.CronSpec, func() { s.runReminders(ctx) }); err != nil {
			return err
		}
		s.logger.Info("auto reminders scheduled", zap.String("cron", s.reminderCfg.CronSpec))
	}

	if s.statements != nil && s.cleanupEvery > 0 {
		if _, err := s.cron.AddFunc("@every "+s.cleanupEvery.String(), func() { s.statements.CleanupExpired(ctx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) runGeneration(ctx context.Context) {
	result, err := s.fees.GenerateForPreviousMonth(ctx)
	if err != nil {
		s.logger.Error("scheduled fee generation failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled fee generation finished",
		zap.String("period", result.Period),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
}

func (s *Scheduler) runReminders(ctx context.Context) {
	result, err := s.reminders.SendDueReminders(ctx)
	if err != nil {
		s.logger.Error("scheduled reminder run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled reminder run finished",
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
}
