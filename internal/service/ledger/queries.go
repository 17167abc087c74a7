package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// ListRecords returns the records of a farm day. An empty session matches both.
func (s *Service) ListRecords(ctx context.Context, farmID, date string, session models.Session) ([]models.YieldRecord, error) {
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return nil, err
	}
	if session != "" && !session.Valid() {
		return nil, models.NewValidationError("session", "must be %q or %q, got %q",
			models.SessionMorning, models.SessionEvening, session)
	}

	records, err := s.ledger.ListRecords(ctx, farmID, date, session)
	if err != nil {
		return nil, fmt.Errorf("list yield records: %w", err)
	}
	if records == nil {
		records = []models.YieldRecord{}
	}
	return records, nil
}

// SessionAggregates returns the morning and evening rows of a farm day,
// creating zero-valued rows for sessions nobody has recorded yet. Existing
// totals are left as they are.
func (s *Service) SessionAggregates(ctx context.Context, farmID, date string) ([]models.SessionAggregate, error) {
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return nil, err
	}

	rows := make([]models.SessionAggregate, 0, len(models.Sessions))
	for _, session := range models.Sessions {
		row, err := s.sessions.EnsureSession(ctx, models.SessionKey{FarmID: farmID, Date: date, Session: session}, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("ensure %s session: %w", session, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SetSessionCompleted flags a session as finished (or reopens it). Totals are
// not touched.
func (s *Service) SetSessionCompleted(ctx context.Context, farmID, date string, session models.Session, completed bool) (models.SessionAggregate, error) {
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return models.SessionAggregate{}, err
	}
	if !session.Valid() {
		return models.SessionAggregate{}, models.NewValidationError("session", "must be %q or %q, got %q",
			models.SessionMorning, models.SessionEvening, session)
	}

	key := models.SessionKey{FarmID: farmID, Date: date, Session: session}
	row, err := s.sessions.SetSessionCompleted(ctx, key, completed, s.now().UTC())
	if err != nil {
		return models.SessionAggregate{}, fmt.Errorf("set session completion: %w", err)
	}
	s.logger.Info("session completion changed", zap.String("key", key.String()), zap.Bool("completed", completed))
	return row, nil
}

// DailySummaries lists the per-animal summaries of a farm day, highest total first.
func (s *Service) DailySummaries(ctx context.Context, farmID, date string) ([]models.DailySummary, error) {
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summaries.ListSummaries(ctx, farmID, date)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	if summaries == nil {
		summaries = []models.DailySummary{}
	}
	return summaries, nil
}
