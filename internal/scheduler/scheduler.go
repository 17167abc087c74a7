package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/config"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
)

const jobTimeout = 5 * time.Minute

// Reconciler rebuilds the aggregates of every farm with records on the dates.
type Reconciler interface {
	ReconcileDates(ctx context.Context, dates ...string) error
}

// Reporter produces the daily report of every farm with records on date.
type Reporter interface {
	GenerateForDate(ctx context.Context, date string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	reporter   Reporter
	calendar   *calendar.Calendar
	cfg        config.ReportingConfig
	logger     *zap.Logger
}

// NewScheduler creates a new scheduler instance. Cron expressions are read in
// the farm's time zone.
func NewScheduler(cfg config.ReportingConfig, cal *calendar.Calendar, reconciler Reconciler, reporter Reporter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(cal.Location())),
		reconciler: reconciler,
		reporter:   reporter,
		calendar:   cal,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("reconcile_cron", s.cfg.ReconcileCron),
		zap.String("report_cron", s.cfg.ReportCron))

	if _, err := s.cron.AddFunc(s.cfg.ReconcileCron, s.reconcile); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.ReportCron, s.dailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// reconcile repairs yesterday and today, so records written just before
// midnight are covered.
func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	dates := []string{s.calendar.Yesterday(), s.calendar.Today()}
	s.logger.Info("running aggregate reconciliation", zap.Strings("dates", dates))

	if err := s.reconciler.ReconcileDates(ctx, dates...); err != nil {
		s.logger.Error("aggregate reconciliation failed", zap.Error(err))
		return
	}
	s.logger.Info("aggregate reconciliation finished")
}

func (s *Scheduler) dailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	date := s.calendar.Today()
	s.logger.Info("generating daily reports", zap.String("date", date))

	if err := s.reporter.GenerateForDate(ctx, date); err != nil {
		s.logger.Error("failed to generate daily reports", zap.Error(err))
		return
	}
	s.logger.Info("daily reports generated", zap.String("date", date))
}
