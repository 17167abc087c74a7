package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/repository"
)

// Mirror copies a finished report to an external destination such as a spreadsheet.
type Mirror interface {
	AppendReport(ctx context.Context, report models.DailyReport) error
}

// Notifier delivers a plain-text message to a recipient.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// Service builds daily farm reports from the persisted aggregates.
type Service struct {
	ledger    repository.LedgerRepository
	sessions  repository.SessionRepository
	summaries repository.SummaryRepository
	reports   repository.ReportRepository
	mirror    Mirror
	notifier  Notifier
	recipient string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a new reporting service instance. mirror and notifier are
// optional; a nil value disables that delivery.
func NewService(
	ledger repository.LedgerRepository,
	sessions repository.SessionRepository,
	summaries repository.SummaryRepository,
	reports repository.ReportRepository,
	mirror Mirror,
	notifier Notifier,
	recipient string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		sessions:  sessions,
		summaries: summaries,
		reports:   reports,
		mirror:    mirror,
		notifier:  notifier,
		recipient: recipient,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildDailyReport computes the report of one farm day without storing it.
func (s *Service) BuildDailyReport(ctx context.Context, farmID, date string) (models.DailyReport, error) {
	sessions, err := s.sessions.ListSessions(ctx, farmID, date)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load session aggregates: %w", err)
	}
	summaries, err := s.summaries.ListSummaries(ctx, farmID, date)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load daily summaries: %w", err)
	}

	report := models.DailyReport{FarmID: farmID, Date: date, CreatedAt: s.now().UTC()}
	for _, row := range sessions {
		switch row.Session {
		case models.SessionMorning:
			report.MorningYield = row.TotalYield
			report.MorningAnimals = row.AnimalCount
		case models.SessionEvening:
			report.EveningYield = row.TotalYield
			report.EveningAnimals = row.AnimalCount
		}
	}
	report.TotalYield = report.MorningYield + report.EveningYield
	report.AnimalsMilked = len(summaries)

	if len(summaries) > 0 {
		// Summaries arrive ordered by total, highest first.
		report.TopAnimalID = summaries[0].AnimalID
		report.TopAnimalYield = summaries[0].TotalYield
		report.AverageYield = round2(report.TotalYield / float64(len(summaries)))
	}

	return report, nil
}

// GenerateDailyReport builds, stores and delivers the report of one farm day.
// Delivery failures are logged; only building and storing can fail the call.
func (s *Service) GenerateDailyReport(ctx context.Context, farmID, date string) (models.DailyReport, error) {
	report, err := s.BuildDailyReport(ctx, farmID, date)
	if err != nil {
		return models.DailyReport{}, err
	}
	if err := s.reports.SaveDailyReport(ctx, report); err != nil {
		return models.DailyReport{}, fmt.Errorf("save daily report: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.AppendReport(ctx, report); err != nil {
			s.logger.Warn("failed to mirror daily report", zap.String("farm_id", farmID), zap.String("date", date), zap.Error(err))
		}
	}
	if s.notifier != nil && s.recipient != "" {
		if err := s.notifier.SendText(ctx, s.recipient, FormatReport(report)); err != nil {
			s.logger.Warn("failed to send daily report", zap.String("farm_id", farmID), zap.String("date", date), zap.Error(err))
		}
	}

	s.logger.Info("daily report generated",
		zap.String("farm_id", farmID),
		zap.String("date", date),
		zap.Float64("total_yield", report.TotalYield),
		zap.Int("animals_milked", report.AnimalsMilked))
	return report, nil
}

// GenerateForDate produces the report of every farm with records on date.
func (s *Service) GenerateForDate(ctx context.Context, date string) error {
	farms, err := s.ledger.DistinctFarms(ctx, []string{date})
	if err != nil {
		return fmt.Errorf("list farms: %w", err)
	}

	var errs []error
	for _, farmID := range farms {
		if _, err := s.GenerateDailyReport(ctx, farmID, date); err != nil {
			errs = append(errs, fmt.Errorf("farm %s: %w", farmID, err))
		}
	}
	return errors.Join(errs...)
}

// FormatReport renders a report as a short chat message.
func FormatReport(report models.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Milk report %s\n", report.Date)
	fmt.Fprintf(&b, "Morning: %.2f L from %d animals\n", report.MorningYield, report.MorningAnimals)
	fmt.Fprintf(&b, "Evening: %.2f L from %d animals\n", report.EveningYield, report.EveningAnimals)
	fmt.Fprintf(&b, "Total: %.2f L", report.TotalYield)

	if report.AnimalsMilked == 0 {
		b.WriteString("\nNo animals milked yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "\nAverage per animal: %.2f L", report.AverageYield)
	fmt.Fprintf(&b, "\nTop animal: %s (%.2f L)", report.TopAnimalID, report.TopAnimalYield)
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
