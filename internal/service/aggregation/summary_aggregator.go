package aggregation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/metrics"
	"github.com/mamadbah2/milkledger/internal/repository"
)

// SummaryAggregator rebuilds one animal's DailySummary from the ledger.
type SummaryAggregator struct {
	ledger    repository.LedgerRepository
	summaries repository.SummaryRepository
	retry     retryPolicy
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSummaryAggregator wires a summary aggregator.
func NewSummaryAggregator(ledger repository.LedgerRepository, summaries repository.SummaryRepository, opts Options, m *metrics.Metrics, logger *zap.Logger) *SummaryAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryAggregator{
		ledger:    ledger,
		summaries: summaries,
		retry:     newRetryPolicy(opts),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Recompute upserts the summary while the animal has records for the day and
// deletes it once none remain. The returned bool reports whether a summary row
// exists after the call.
func (a *SummaryAggregator) Recompute(ctx context.Context, key models.SummaryKey) (models.DailySummary, bool, error) {
	var (
		summary models.DailySummary
		exists  bool
	)

	err := a.retry.do(ctx, func(ctx context.Context) error {
		records, err := a.ledger.ListAnimalRecords(ctx, key)
		if err != nil {
			return fmt.Errorf("load animal records: %w", err)
		}

		// Presence, not the total, decides: a 0.0 record still keeps its row.
		if len(records) == 0 {
			if err := a.summaries.DeleteSummary(ctx, key); err != nil {
				return fmt.Errorf("delete summary: %w", err)
			}
			summary, exists = models.DailySummary{}, false
			return nil
		}

		summary = buildSummary(key, records, a.now().UTC())
		if err := a.summaries.UpsertSummary(ctx, summary); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		exists = true
		return nil
	}, func(attempt int, err error) {
		a.metrics.Recompute(kindSummary, "retry")
		a.logger.Warn("summary recompute failed, retrying",
			zap.String("key", key.String()), zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		a.metrics.Recompute(kindSummary, "failed")
		return models.DailySummary{}, false, &models.RecomputeError{Kind: kindSummary, Key: key.String(), Err: err}
	}

	a.metrics.Recompute(kindSummary, "ok")
	return summary, exists, nil
}

func buildSummary(key models.SummaryKey, records []models.YieldRecord, at time.Time) models.DailySummary {
	summary := models.DailySummary{
		FarmID:    key.FarmID,
		AnimalID:  key.AnimalID,
		Date:      key.Date,
		UpdatedAt: at,
	}
	for _, r := range records {
		switch r.Session {
		case models.SessionMorning:
			summary.MorningYield = r.Amount
		case models.SessionEvening:
			summary.EveningYield = r.Amount
		}
	}
	summary.TotalYield = summary.MorningYield + summary.EveningYield
	return summary
}
