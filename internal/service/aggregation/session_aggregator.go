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

const (
	kindSession = "session"
	kindSummary = "summary"
)

// SessionAggregator rebuilds SessionAggregate rows from the ledger.
type SessionAggregator struct {
	ledger   repository.LedgerRepository
	sessions repository.SessionRepository
	retry    retryPolicy
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionAggregator wires a session aggregator.
func NewSessionAggregator(ledger repository.LedgerRepository, sessions repository.SessionRepository, opts Options, m *metrics.Metrics, logger *zap.Logger) *SessionAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionAggregator{
		ledger:   ledger,
		sessions: sessions,
		retry:    newRetryPolicy(opts),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Recompute sums every ledger record of the key and overwrites the aggregate
// row with the result. The previous aggregate value is never read.
func (a *SessionAggregator) Recompute(ctx context.Context, key models.SessionKey) (models.SessionAggregate, error) {
	var row models.SessionAggregate

	err := a.retry.do(ctx, func(ctx context.Context) error {
		totals, err := a.ledger.SumSession(ctx, key)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		row, err = a.sessions.SaveSessionTotals(ctx, key, totals, a.now().UTC())
		if err != nil {
			return fmt.Errorf("save totals: %w", err)
		}
		return nil
	}, func(attempt int, err error) {
		a.metrics.Recompute(kindSession, "retry")
		a.logger.Warn("session recompute failed, retrying",
			zap.String("key", key.String()), zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		a.metrics.Recompute(kindSession, "failed")
		return models.SessionAggregate{}, &models.RecomputeError{Kind: kindSession, Key: key.String(), Err: err}
	}

	a.metrics.Recompute(kindSession, "ok")
	a.logger.Debug("session recomputed",
		zap.String("key", key.String()),
		zap.Float64("total_yield", row.TotalYield),
		zap.Int("animal_count", row.AnimalCount))
	return row, nil
}
